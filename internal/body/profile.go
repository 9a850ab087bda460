// Package body defines the static per-body WMTS provider profiles.
package body

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cosmozoom/tilegate/internal/core/config"
)

type Body string

const (
	Earth   Body = "earth"
	Moon    Body = "moon"
	Mars    Body = "mars"
	Mercury Body = "mercury"
)

// Dialect selects the upstream URL template. GIBS places a literal "default"
// style segment and a date; Trek takes caller-suppliable version and style.
type Dialect int

const (
	DialectGIBS Dialect = iota
	DialectTrek
)

var ErrUnknownBody = errors.New("unknown celestial body")

// LayerInfo describes one allowlisted layer. Returned in unsupported_layer
// payloads and by the layer catalog endpoint.
type LayerInfo struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Resolution  string   `json:"resolution"`
	Source      string   `json:"source"`
	Type        string   `json:"type"`
	Coverage    string   `json:"coverage"`
	MinZoom     int      `json:"minZoom"`
	MaxZoom     int      `json:"maxZoom"`
	Formats     []string `json:"formats"`
	Aliases     []string `json:"aliases"`
	Description string   `json:"description"`
}

// Profile is pure data plus the tile matrix shape. Profiles are built once
// at startup and never mutated.
type Profile struct {
	ID         Body
	SourceName string

	BaseURL string
	Dialect Dialect

	DefaultLayer         string
	DefaultVersion       string
	DefaultStyle         string
	DefaultTileMatrixSet string
	DefaultFormat        string
	DefaultDate          string

	MinZoom      int
	MaxZoom      int
	RequiresDate bool

	// Twice as many columns as rows at every zoom (±180° longitude vs ±90°
	// latitude coverage). Mercury only.
	Equirect2x1 bool

	// Lowercase alias -> canonical layer ID. Nil means any layer string is
	// accepted and the upstream itself 404s on a bad one.
	LayerAliases map[string]string
	Layers       []LayerInfo

	Formats []string

	CacheMaxAge int
	Timeout     time.Duration
}

// TileMatrixShape returns (maxCols, maxRows) at the given zoom.
func (p Profile) TileMatrixShape(zoom int) (maxCols, maxRows int) {
	maxRows = 1 << uint(zoom)
	maxCols = maxRows
	if p.Equirect2x1 {
		maxCols = maxRows * 2
	}
	return maxCols, maxRows
}

// SupportsFormat reports whether the trimmed, lowercased format is allowed.
func (p Profile) SupportsFormat(format string) bool {
	f := strings.ToLower(strings.TrimSpace(format))
	for _, v := range p.Formats {
		if v == f {
			return true
		}
	}
	return false
}

type Registry struct {
	profiles map[Body]Profile
}

func (r *Registry) Get(id string) (Profile, error) {
	b := Body(strings.ToLower(strings.TrimSpace(id)))
	p, ok := r.profiles[b]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownBody, id)
	}
	return p, nil
}

func (r *Registry) All() []Profile {
	out := make([]Profile, 0, len(r.profiles))
	for _, b := range []Body{Earth, Moon, Mars, Mercury} {
		out = append(out, r.profiles[b])
	}
	return out
}

const (
	marsViking = "Mars_Viking_MDIM21_ClrMosaic_global_232m"
	marsMOLA   = "Mars_MGS_MOLA_MEGR_global_463m"
)

// New builds the four provider profiles from configuration.
func New(cfg config.Config) *Registry {
	trek := strings.TrimRight(cfg.TrekBaseURL, "/")

	marsLayers := []LayerInfo{
		{
			ID:          marsViking,
			Title:       "Viking Color Mosaic",
			Resolution:  "232 meters/pixel",
			Source:      "Viking Orbiter 1 & 2",
			Type:        "color mosaic",
			Coverage:    "Global",
			MinZoom:     0,
			MaxZoom:     cfg.MarsMaxZoom,
			Formats:     []string{"jpg", "png"},
			Aliases:     []string{"viking", "Viking Color Mosaic", "Mars_Viking"},
			Description: "Global color mosaic of Mars surface from Viking missions",
		},
		{
			ID:          marsMOLA,
			Title:       "MOLA Elevation",
			Resolution:  "463 meters/pixel",
			Source:      "Mars Global Surveyor MOLA",
			Type:        "elevation/topography",
			Coverage:    "Global",
			MinZoom:     0,
			MaxZoom:     cfg.MarsMaxZoom,
			Formats:     []string{"jpg", "png"},
			Aliases:     []string{"mola", "MOLA Elevation", "Mars_MGS_MOLA"},
			Description: "Topographic elevation data from Mars Global Surveyor MOLA instrument",
		},
	}

	marsAliases := map[string]string{
		"mars_viking_mdim21_clrmosaic_global_232m": marsViking,
		"viking":              marsViking,
		"viking color mosaic": marsViking,
		"mars_viking":         marsViking,

		"mars_mgs_mola_megr_global_463m": marsMOLA,
		"mola":                           marsMOLA,
		"mola elevation":                 marsMOLA,
		"mars_mgs_mola":                  marsMOLA,
	}

	mercuryFormats := []string{"jpg", "jpeg", "png", "tif", "tiff"}
	if cfg.MercuryStrictFormat {
		mercuryFormats = []string{"jpg"}
	}

	profiles := map[Body]Profile{
		Earth: {
			ID:                   Earth,
			SourceName:           "NASA-GIBS",
			BaseURL:              strings.TrimRight(cfg.GIBSBaseURL, "/"),
			Dialect:              DialectGIBS,
			DefaultLayer:         "VIIRS_SNPP_CorrectedReflectance_TrueColor",
			DefaultTileMatrixSet: "GoogleMapsCompatible_Level9",
			DefaultFormat:        "jpg",
			DefaultDate:          cfg.EarthDefaultDate,
			MinZoom:              0,
			MaxZoom:              9,
			RequiresDate:         true,
			Formats:              []string{"jpg", "jpeg", "png", "png8"},
			CacheMaxAge:          86400,
			Timeout:              cfg.UpstreamTimeout,
		},
		Moon: {
			ID:                   Moon,
			SourceName:           "NASA-Trek-Moon",
			BaseURL:              trek + "/Moon/EQ",
			Dialect:              DialectTrek,
			DefaultLayer:         "LRO_WAC_Mosaic_Global_303ppd_v02",
			DefaultVersion:       "1.0.0",
			DefaultStyle:         "default",
			DefaultTileMatrixSet: "default028mm",
			DefaultFormat:        "jpg",
			MinZoom:              0,
			MaxZoom:              10,
			Formats:              []string{"jpg", "jpeg", "png", "tif", "tiff"},
			CacheMaxAge:          2592000,
			Timeout:              cfg.UpstreamTimeout,
		},
		Mars: {
			ID:                   Mars,
			SourceName:           "NASA-Trek-Mars",
			BaseURL:              trek + "/Mars/EQ",
			Dialect:              DialectTrek,
			DefaultLayer:         marsViking,
			DefaultVersion:       "1.0.0",
			DefaultStyle:         "default",
			DefaultTileMatrixSet: "default028mm",
			DefaultFormat:        "jpg",
			MinZoom:              0,
			MaxZoom:              cfg.MarsMaxZoom,
			LayerAliases:         marsAliases,
			Layers:               marsLayers,
			Formats:              []string{"jpg", "jpeg", "png", "tif", "tiff"},
			CacheMaxAge:          2592000,
			Timeout:              cfg.UpstreamTimeout,
		},
		Mercury: {
			ID:                   Mercury,
			SourceName:           "NASA-Trek-Mercury",
			BaseURL:              trek + "/Mercury/EQ",
			Dialect:              DialectTrek,
			DefaultLayer:         "Mercury_MESSENGER_MDIS_Basemap_EnhancedColor_Mosaic_Global_665m",
			DefaultVersion:       "1.0.0",
			DefaultStyle:         "default",
			DefaultTileMatrixSet: "default028mm",
			DefaultFormat:        "jpg",
			MinZoom:              0,
			MaxZoom:              7,
			Equirect2x1:          true,
			Formats:              mercuryFormats,
			CacheMaxAge:          2592000,
			Timeout:              cfg.UpstreamTimeout,
		},
	}

	return &Registry{profiles: profiles}
}
