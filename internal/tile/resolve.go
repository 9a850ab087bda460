package tile

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cosmozoom/tilegate/internal/body"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Resolve runs the full validation pipeline for one request against a body
// profile and returns either a fully-formed upstream resolution or a *Error.
// nowUTC is injected so the date rule is testable.
func Resolve(p body.Profile, req Request, nowUTC time.Time) (Resolved, error) {
	if err := ValidateZoom(p, req.Zoom); err != nil {
		return Resolved{}, err
	}

	maxCols, maxRows, err := ValidateCoordinates(p, req.Zoom, req.Row, req.Col)
	if err != nil {
		return Resolved{}, err
	}

	layer, err := ResolveLayer(p, req.Layer)
	if err != nil {
		return Resolved{}, err
	}

	format, err := resolveFormat(p, req.Format)
	if err != nil {
		return Resolved{}, err
	}

	date := ""
	if p.RequiresDate {
		date = strings.TrimSpace(req.Date)
		if date == "" {
			date = p.DefaultDate
		}
		if err := ValidateDate(date, nowUTC); err != nil {
			return Resolved{}, err
		}
	}

	res := Resolved{
		Layer:         layer,
		Zoom:          req.Zoom,
		Row:           req.Row,
		Col:           req.Col,
		Date:          date,
		Version:       defaultStr(req.Version, p.DefaultVersion),
		Style:         defaultStr(req.Style, p.DefaultStyle),
		TileMatrixSet: defaultStr(req.TileMatrixSet, p.DefaultTileMatrixSet),
		Format:        format,
		ContentType:   ContentTypeFor(format),
		CacheMaxAge:   p.CacheMaxAge,
		MaxCols:       maxCols,
		MaxRows:       maxRows,
	}
	res.URL = BuildURL(p, res)
	return res, nil
}

// ValidateZoom checks the profile's explicit zoom bounds. Zoom is checked
// before coordinates because coordinate bounds depend on it.
func ValidateZoom(p body.Profile, zoom int) error {
	if zoom < p.MinZoom || zoom > p.MaxZoom {
		e := newError(KindZoomOutOfRange, zoom,
			"z must be between %d and %d for %s tiles", p.MinZoom, p.MaxZoom, p.ID)
		e.Details = map[string]any{
			"minZoom": p.MinZoom,
			"maxZoom": p.MaxZoom,
		}
		return e
	}
	return nil
}

// ValidateCoordinates checks row/col against the tile matrix shape at the
// given zoom and returns the shape on success.
func ValidateCoordinates(p body.Profile, zoom, row, col int) (maxCols, maxRows int, err error) {
	maxCols, maxRows = p.TileMatrixShape(zoom)
	if col < 0 || col >= maxCols || row < 0 || row >= maxRows {
		e := newError(KindCoordsOutOfBounds,
			map[string]int{"x": col, "y": row, "z": zoom},
			"at zoom level %d, x must be 0 to %d and y must be 0 to %d",
			zoom, maxCols-1, maxRows-1)
		e.Details = map[string]any{
			"valid_range": map[string]any{
				"x": fmt.Sprintf("0 to %d", maxCols-1),
				"y": fmt.Sprintf("0 to %d", maxRows-1),
			},
			"matrix": fmt.Sprintf("%d×%d", maxCols, maxRows),
		}
		return 0, 0, e
	}
	return maxCols, maxRows, nil
}

// ResolveLayer maps a user-supplied layer to its canonical upstream ID.
// Bodies without an allowlist accept any trimmed non-empty string and let
// the upstream 404 on a bad layer.
func ResolveLayer(p body.Profile, layer string) (string, error) {
	layer = strings.TrimSpace(layer)
	if layer == "" {
		layer = p.DefaultLayer
	}
	if p.LayerAliases == nil {
		return layer, nil
	}

	canonical, ok := p.LayerAliases[strings.ToLower(layer)]
	if !ok {
		titles := make([]string, 0, len(p.Layers))
		for _, l := range p.Layers {
			titles = append(titles, l.Title)
		}
		e := newError(KindUnsupportedLayer, layer,
			"only %s are supported for %s tiles", strings.Join(titles, " and "), p.ID)
		e.Details = map[string]any{"supported": p.Layers}
		return "", e
	}
	return canonical, nil
}

func resolveFormat(p body.Profile, format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	if f == "" {
		f = p.DefaultFormat
	}
	if !p.SupportsFormat(f) {
		e := newError(KindUnsupportedFormat, format,
			"format %q is not supported for %s tiles", format, p.ID)
		e.Details = map[string]any{"supported": p.Formats}
		return "", e
	}
	return f, nil
}

// ValidateDate enforces strict YYYY-MM-DD and the not-in-the-future rule.
// Comparison is at day granularity against the current UTC date.
func ValidateDate(dateStr string, nowUTC time.Time) error {
	if !datePattern.MatchString(dateStr) {
		e := newError(KindInvalidDate, dateStr, "date must be in YYYY-MM-DD format")
		e.Details = map[string]any{"example": "2025-10-03"}
		return e
	}
	parsed, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		e := newError(KindInvalidDate, dateStr, "date %q is not a real calendar date", dateStr)
		e.Details = map[string]any{"example": "2025-10-03"}
		return e
	}

	today := time.Date(nowUTC.Year(), nowUTC.Month(), nowUTC.Day(), 0, 0, 0, 0, time.UTC)
	if parsed.After(today) {
		e := newError(KindInvalidDate, dateStr,
			"date cannot be in the future; current UTC date: %s", today.Format("2006-01-02"))
		e.Details = map[string]any{"current_utc_date": today.Format("2006-01-02")}
		return e
	}
	return nil
}

// BuildURL assembles the upstream path for the profile's WMTS dialect.
// Values are concatenated as-is; no extra URL-encoding is applied.
func BuildURL(p body.Profile, r Resolved) string {
	switch p.Dialect {
	case body.DialectGIBS:
		// {base}/{layer}/default/{date}/{tms}/{z}/{y}/{x}.{fmt}
		return fmt.Sprintf("%s/%s/default/%s/%s/%d/%d/%d.%s",
			p.BaseURL, r.Layer, r.Date, r.TileMatrixSet, r.Zoom, r.Row, r.Col, r.Format)
	default:
		// {base}/{layer}/{version}/{style}/{tms}/{z}/{y}/{x}.{fmt}
		return fmt.Sprintf("%s/%s/%s/%s/%s/%d/%d/%d.%s",
			p.BaseURL, r.Layer, r.Version, r.Style, r.TileMatrixSet, r.Zoom, r.Row, r.Col, r.Format)
	}
}

func defaultStr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
