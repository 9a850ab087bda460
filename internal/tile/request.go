// Package tile implements the request validator and URL-resolution engine.
//
// A Request flows zoom check -> coordinate check -> layer resolution ->
// format check -> date check -> URL build. Any failure short-circuits with a
// *Error; a Resolved value means every constraint has already passed and the
// fetch stage never re-validates.
package tile

import "strings"

// Request holds the raw per-call parameters. Empty optional fields fall back
// to the body profile's defaults during resolution.
type Request struct {
	Zoom int
	Row  int
	Col  int

	Layer         string
	Date          string // Earth only, YYYY-MM-DD
	Version       string
	Style         string
	TileMatrixSet string
	Format        string
}

// Resolved is the validated, canonicalized output of Resolve.
type Resolved struct {
	Layer         string
	Zoom          int
	Row           int
	Col           int
	Date          string
	Version       string
	Style         string
	TileMatrixSet string
	Format        string

	URL         string
	ContentType string
	CacheMaxAge int

	MaxCols int
	MaxRows int
}

var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"png8": "image/png",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// ContentTypeFor maps an image format to its MIME type. Unknown formats
// default to image/jpeg, matching upstream WMTS behavior.
func ContentTypeFor(format string) string {
	if ct, ok := contentTypes[strings.ToLower(strings.TrimSpace(format))]; ok {
		return ct
	}
	return "image/jpeg"
}
