// Package router parses inbound tile requests, drives the resolution engine
// and fetcher, and translates error kinds into transport-level responses.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cosmozoom/tilegate/internal/body"
	"github.com/cosmozoom/tilegate/internal/core/observability"
	"github.com/cosmozoom/tilegate/internal/fetch"
	"github.com/cosmozoom/tilegate/internal/stats"
	"github.com/cosmozoom/tilegate/internal/tile"
)

type Handler struct {
	logger   *slog.Logger
	registry *body.Registry
	fetcher  fetch.Interface
	recorder *stats.Recorder
	nowUTC   func() time.Time // for tests
}

func New(logger *slog.Logger, registry *body.Registry, fetcher fetch.Interface, recorder *stats.Recorder) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		fetcher:  fetcher,
		recorder: recorder,
		nowUTC:   func() time.Time { return time.Now().UTC() },
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Tile serves GET /{body}/tile.
func (h *Handler) Tile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		bodyID := chi.URLParam(r, "body")

		h.serveTile(sw, r, bodyID)
		observability.ObserveHTTP(r.Method, "/{body}/tile", sw.code, time.Since(start).Seconds())
	}
}

func (h *Handler) serveTile(w http.ResponseWriter, r *http.Request, bodyID string) {
	profile, err := h.registry.Get(bodyID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":    "unknown_body",
			"message":  fmt.Sprintf("unknown celestial body %q; supported: earth, moon, mars, mercury", bodyID),
			"provided": bodyID,
		})
		return
	}

	req, perr := parseTileRequest(r)
	if perr != nil {
		observability.ObserveValidationFailure(string(profile.ID), "invalid_parameter")
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_parameter",
			"message": perr.Error(),
		})
		return
	}

	resolved, err := tile.Resolve(profile, req, h.nowUTC())
	if err != nil {
		var verr *tile.Error
		if !errors.As(err, &verr) {
			h.logger.Error("unexpected resolve error", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "internal",
				"message": "internal server error",
			})
			return
		}
		observability.ObserveValidationFailure(string(profile.ID), string(verr.Kind))
		writeValidationError(w, profile, verr)
		return
	}

	outcome := h.fetcher.Fetch(r.Context(), resolved.URL, profile.Timeout, profile.SourceName)
	observability.ObserveTileOutcome(string(profile.ID), string(outcome.Kind))

	switch outcome.Kind {
	case fetch.Success:
		key := tile.Key(string(profile.ID), resolved.Layer, resolved.Zoom, resolved.Row, resolved.Col)
		h.recorder.Record(key, string(profile.ID), resolved.Layer)

		hdr := w.Header()
		hdr.Set("Content-Type", resolved.ContentType)
		hdr.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", resolved.CacheMaxAge))
		hdr.Set("X-Tile-Source", profile.SourceName)
		hdr.Set("X-Tile-Layer", resolved.Layer)
		hdr.Set("X-Zoom-Level", strconv.Itoa(resolved.Zoom))
		hdr.Set("X-Tile-Coordinates", fmt.Sprintf("z=%d, y=%d, x=%d", resolved.Zoom, resolved.Row, resolved.Col))
		hdr.Set("X-Tile-Matrix", fmt.Sprintf("%d×%d", resolved.MaxCols, resolved.MaxRows))
		if resolved.Date != "" {
			hdr.Set("X-Tile-Date", resolved.Date)
		}
		hdr.Set("X-Request-Digest", tile.Digest(key))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(outcome.Bytes)

	case fetch.NotFound:
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "tile_not_found",
			"message": "the requested tile does not exist; check layer name, date, or coordinates",
			"parameters": map[string]any{
				"layer":  resolved.Layer,
				"z":      resolved.Zoom,
				"y":      resolved.Row,
				"x":      resolved.Col,
				"format": resolved.Format,
			},
			"requested_url": resolved.URL,
		})

	case fetch.UpstreamError:
		status := outcome.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, map[string]any{
			"error":         "upstream_error",
			"message":       fmt.Sprintf("%s returned HTTP %d", profile.SourceName, outcome.Status),
			"requested_url": resolved.URL,
		})

	case fetch.Timeout:
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":         "timeout",
			"message":       fmt.Sprintf("%s did not respond within %s", profile.SourceName, profile.Timeout),
			"requested_url": resolved.URL,
		})

	default: // fetch.NetworkError
		msg := "connection failed"
		if outcome.Err != nil {
			msg = outcome.Err.Error()
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":         "network_error",
			"message":       fmt.Sprintf("failed to reach %s: %s", profile.SourceName, msg),
			"requested_url": resolved.URL,
		})
	}
}

// Info serves GET /{body}: service metadata, defaults and usage example.
func (h *Handler) Info() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bodyID := chi.URLParam(r, "body")
		profile, err := h.registry.Get(bodyID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":    "unknown_body",
				"message":  fmt.Sprintf("unknown celestial body %q; supported: earth, moon, mars, mercury", bodyID),
				"provided": bodyID,
			})
			return
		}

		defaults := map[string]any{
			"layer":           profile.DefaultLayer,
			"tile_matrix_set": profile.DefaultTileMatrixSet,
			"format":          profile.DefaultFormat,
			"min_zoom":        profile.MinZoom,
			"max_zoom":        profile.MaxZoom,
		}
		if profile.RequiresDate {
			defaults["date"] = profile.DefaultDate
		} else {
			defaults["version"] = profile.DefaultVersion
			defaults["style"] = profile.DefaultStyle
		}

		example := fmt.Sprintf("/%s/tile?z=3&y=2&x=5&format=%s", profile.ID, profile.DefaultFormat)
		if profile.RequiresDate {
			example = fmt.Sprintf("/%s/tile?z=6&y=18&x=23&date=%s&format=%s",
				profile.ID, profile.DefaultDate, profile.DefaultFormat)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"service":        fmt.Sprintf("%s tile proxy", profile.SourceName),
			"celestial_body": string(profile.ID),
			"status":         "operational",
			"source":         profile.SourceName,
			"base_url":       profile.BaseURL,
			"defaults":       defaults,
			"endpoints": map[string]string{
				fmt.Sprintf("/%s", profile.ID):      "service information",
				fmt.Sprintf("/%s/tile", profile.ID): "fetch tiles",
			},
			"example": example,
		})
	}
}

// Layers serves GET /mars/layers: the catalog of allowlisted Mars layers.
func (h *Handler) Layers() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		profile, err := h.registry.Get(string(body.Mars))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "internal",
				"message": "mars profile missing",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"celestial_body": string(profile.ID),
			"count":          len(profile.Layers),
			"layers":         profile.Layers,
		})
	}
}

// Stats serves GET /stats.
func (h *Handler) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, h.recorder.Snapshot())
	}
}

// Index serves GET /: top-level service summary.
func (h *Handler) Index() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		bodies := make([]string, 0, 4)
		for _, p := range h.registry.All() {
			bodies = append(bodies, string(p.ID))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "planetary imagery tile proxy",
			"bodies":  bodies,
			"endpoints": map[string]string{
				"/{body}":      "per-body service information",
				"/{body}/tile": "fetch tiles (z, y, x query params)",
				"/mars/layers": "supported Mars layer catalog",
				"/healthz":     "liveness",
				"/stats":       "recent request summary",
				"/metrics":     "prometheus metrics",
			},
		})
	}
}

func parseTileRequest(r *http.Request) (tile.Request, error) {
	q := r.URL.Query()

	z, err := requiredInt(q.Get("z"), "z")
	if err != nil {
		return tile.Request{}, err
	}
	y, err := requiredInt(q.Get("y"), "y")
	if err != nil {
		return tile.Request{}, err
	}
	x, err := requiredInt(q.Get("x"), "x")
	if err != nil {
		return tile.Request{}, err
	}

	tms := strings.TrimSpace(q.Get("TileMatrixSet"))
	if tms == "" {
		tms = strings.TrimSpace(q.Get("tile_matrix_set"))
	}

	return tile.Request{
		Zoom:          z,
		Row:           y,
		Col:           x,
		Layer:         q.Get("layer"),
		Date:          q.Get("date"),
		Version:       q.Get("version"),
		Style:         q.Get("style"),
		TileMatrixSet: tms,
		Format:        q.Get("format"),
	}, nil
}

func requiredInt(v, name string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, fmt.Errorf("missing required parameter: %s", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s must be an integer (got %q)", name, v)
	}
	return n, nil
}

func writeValidationError(w http.ResponseWriter, p body.Profile, verr *tile.Error) {
	payload := map[string]any{
		"error":          string(verr.Kind),
		"message":        verr.Message,
		"provided":       verr.Provided,
		"celestial_body": string(p.ID),
	}
	for k, v := range verr.Details {
		payload[k] = v
	}
	writeJSON(w, statusFor(verr.Kind), payload)
}

func statusFor(kind tile.ErrorKind) int {
	switch kind {
	case tile.KindUnsupportedLayer:
		return http.StatusUnprocessableEntity
	case tile.KindUnsupportedFormat:
		return http.StatusNotAcceptable
	default:
		// invalid_date, invalid_zoom, coordinates_out_of_bounds
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
