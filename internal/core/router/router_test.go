package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cosmozoom/tilegate/internal/body"
	"github.com/cosmozoom/tilegate/internal/core/config"
	"github.com/cosmozoom/tilegate/internal/fetch"
	"github.com/cosmozoom/tilegate/internal/hotness/expdecay"
	"github.com/cosmozoom/tilegate/internal/stats"
)

var tileBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}

type stubFetcher struct {
	outcome fetch.Outcome
	lastURL string
}

func (s *stubFetcher) Fetch(_ context.Context, url string, _ time.Duration, _ string) fetch.Outcome {
	s.lastURL = url
	return s.outcome
}

func newTestMux(t *testing.T, f fetch.Interface) *chi.Mux {
	t.Helper()

	cfg := config.Config{
		GIBSBaseURL:         "https://gibs.earthdata.nasa.gov/wmts/epsg3857/best",
		TrekBaseURL:         "https://trek.nasa.gov/tiles",
		EarthDefaultDate:    "2025-10-03",
		MarsMaxZoom:         7,
		MercuryStrictFormat: true,
		UpstreamTimeout:     15 * time.Second,
	}
	recorder, err := stats.New(64, expdecay.New(time.Minute))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), body.New(cfg), f, recorder)
	h.nowUTC = func() time.Time {
		return time.Date(2025, 10, 4, 12, 0, 0, 0, time.UTC)
	}

	r := chi.NewRouter()
	r.Get("/", h.Index())
	r.Get("/stats", h.Stats())
	r.Get("/mars/layers", h.Layers())
	r.Get("/{body}", h.Info())
	r.Get("/{body}/tile", h.Tile())
	return r
}

func get(t *testing.T, mux *chi.Mux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeErr(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return payload
}

func TestTile_EarthSuccess(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Kind: fetch.Success, Status: 200, Bytes: tileBytes}}
	mux := newTestMux(t, f)

	rr := get(t, mux, "/earth/tile?z=6&y=18&x=23&date=2025-10-03&format=jpg")

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	wantURL := "https://gibs.earthdata.nasa.gov/wmts/epsg3857/best/" +
		"VIIRS_SNPP_CorrectedReflectance_TrueColor/default/2025-10-03/" +
		"GoogleMapsCompatible_Level9/6/18/23.jpg"
	if f.lastURL != wantURL {
		t.Fatalf("fetched %q\nwant %q", f.lastURL, wantURL)
	}

	hdr := rr.Header()
	if got := hdr.Get("Content-Type"); got != "image/jpeg" {
		t.Fatalf("content-type=%q", got)
	}
	if got := hdr.Get("Cache-Control"); got != "public, max-age=86400" {
		t.Fatalf("cache-control=%q", got)
	}
	if got := hdr.Get("X-Tile-Source"); got != "NASA-GIBS" {
		t.Fatalf("x-tile-source=%q", got)
	}
	if got := hdr.Get("X-Tile-Date"); got != "2025-10-03" {
		t.Fatalf("x-tile-date=%q", got)
	}
	if got := hdr.Get("X-Zoom-Level"); got != "6" {
		t.Fatalf("x-zoom-level=%q", got)
	}
	if got := hdr.Get("X-Tile-Matrix"); got != "64×64" {
		t.Fatalf("x-tile-matrix=%q", got)
	}
	if hdr.Get("X-Request-Digest") == "" {
		t.Fatal("missing X-Request-Digest")
	}
	if rr.Body.String() != string(tileBytes) {
		t.Fatal("tile bytes not passed through unmodified")
	}
}

func TestTile_EarthCoordinatesOutOfBounds(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Kind: fetch.Success, Status: 200}}
	mux := newTestMux(t, f)

	// max col at z=6 is 63
	rr := get(t, mux, "/earth/tile?z=6&y=0&x=64")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	payload := decodeErr(t, rr)
	if payload["error"] != "coordinates_out_of_bounds" {
		t.Fatalf("error=%v", payload["error"])
	}
	if f.lastURL != "" {
		t.Fatal("validation failure must not reach the fetcher")
	}
}

func TestTile_MarsAliasResolvesBeforeFetch(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Kind: fetch.Success, Status: 200, Bytes: tileBytes}}
	mux := newTestMux(t, f)

	rr := get(t, mux, "/mars/tile?layer=MOLA&z=4&y=7&x=9")

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(f.lastURL, "/Mars_MGS_MOLA_MEGR_global_463m/") {
		t.Fatalf("fetched %q, want canonical MOLA layer in path", f.lastURL)
	}
	if got := rr.Header().Get("X-Tile-Layer"); got != "Mars_MGS_MOLA_MEGR_global_463m" {
		t.Fatalf("x-tile-layer=%q", got)
	}
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=2592000" {
		t.Fatalf("cache-control=%q", got)
	}
}

func TestTile_MarsUnsupportedLayer(t *testing.T) {
	f := &stubFetcher{}
	mux := newTestMux(t, f)

	rr := get(t, mux, "/mars/tile?layer=CTX&z=4&y=7&x=9")

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d want 422", rr.Code)
	}
	payload := decodeErr(t, rr)
	if payload["error"] != "unsupported_layer" {
		t.Fatalf("error=%v", payload["error"])
	}
	sup, ok := payload["supported"].([]any)
	if !ok || len(sup) != 2 {
		t.Fatalf("supported=%v, want the two Mars layers", payload["supported"])
	}
	resp := rr.Body.String()
	if !strings.Contains(resp, "Viking Color Mosaic") || !strings.Contains(resp, "MOLA Elevation") {
		t.Fatalf("supported list missing layer titles: %s", resp)
	}
	if f.lastURL != "" {
		t.Fatal("unsupported layer must not reach the fetcher")
	}
}

func TestTile_MercuryWideMatrixBounds(t *testing.T) {
	f := &stubFetcher{}
	mux := newTestMux(t, f)

	// max col at z=3 is 15
	rr := get(t, mux, "/mercury/tile?z=3&y=0&x=16")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	payload := decodeErr(t, rr)
	if payload["error"] != "coordinates_out_of_bounds" {
		t.Fatalf("error=%v", payload["error"])
	}
	if payload["matrix"] != "16×8" {
		t.Fatalf("matrix=%v want 16×8", payload["matrix"])
	}
}

func TestTile_MercuryStrictFormat(t *testing.T) {
	f := &stubFetcher{}
	mux := newTestMux(t, f)

	rr := get(t, mux, "/mercury/tile?z=3&y=4&x=8&format=png")

	if rr.Code != http.StatusNotAcceptable {
		t.Fatalf("status=%d want 406", rr.Code)
	}
	payload := decodeErr(t, rr)
	if payload["error"] != "unsupported_format" {
		t.Fatalf("error=%v", payload["error"])
	}
}

func TestTile_FutureDate(t *testing.T) {
	f := &stubFetcher{}
	mux := newTestMux(t, f)

	rr := get(t, mux, "/earth/tile?z=1&y=0&x=0&date=2030-01-01")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	if payload := decodeErr(t, rr); payload["error"] != "invalid_date" {
		t.Fatalf("error=%v", payload["error"])
	}
}

func TestTile_UnknownBody(t *testing.T) {
	mux := newTestMux(t, &stubFetcher{})

	rr := get(t, mux, "/pluto/tile?z=1&y=0&x=0")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
	if payload := decodeErr(t, rr); payload["error"] != "unknown_body" {
		t.Fatalf("error=%v", payload["error"])
	}
}

func TestTile_MissingAndMalformedParams(t *testing.T) {
	mux := newTestMux(t, &stubFetcher{})

	for _, path := range []string{
		"/moon/tile?y=0&x=0",
		"/moon/tile?z=1&x=0",
		"/moon/tile?z=1&y=0",
		"/moon/tile?z=one&y=0&x=0",
		"/moon/tile?z=1&y=0&x=1.5",
	} {
		rr := get(t, mux, path)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d want 400", path, rr.Code)
		}
		if payload := decodeErr(t, rr); payload["error"] != "invalid_parameter" {
			t.Fatalf("%s: error=%v", path, payload["error"])
		}
	}
}

func TestTile_UpstreamOutcomes(t *testing.T) {
	cases := []struct {
		name       string
		outcome    fetch.Outcome
		wantStatus int
		wantError  string
	}{
		{"not found", fetch.Outcome{Kind: fetch.NotFound, Status: 404}, 404, "tile_not_found"},
		{"server error passthrough", fetch.Outcome{Kind: fetch.UpstreamError, Status: 503, Err: errors.New("upstream status 503")}, 503, "upstream_error"},
		{"weird status clamps to 502", fetch.Outcome{Kind: fetch.UpstreamError, Status: 302, Err: errors.New("upstream status 302")}, 502, "upstream_error"},
		{"timeout", fetch.Outcome{Kind: fetch.Timeout, Err: context.DeadlineExceeded}, 502, "timeout"},
		{"network", fetch.Outcome{Kind: fetch.NetworkError, Err: errors.New("connection refused")}, 502, "network_error"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mux := newTestMux(t, &stubFetcher{outcome: c.outcome})
			rr := get(t, mux, "/moon/tile?z=3&y=2&x=5")

			if rr.Code != c.wantStatus {
				t.Fatalf("status=%d want %d", rr.Code, c.wantStatus)
			}
			if payload := decodeErr(t, rr); payload["error"] != c.wantError {
				t.Fatalf("error=%v want %s", payload["error"], c.wantError)
			}
		})
	}
}

func TestInfo_PerBody(t *testing.T) {
	mux := newTestMux(t, &stubFetcher{})

	rr := get(t, mux, "/earth")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	payload := decodeErr(t, rr)
	if payload["celestial_body"] != "earth" {
		t.Fatalf("celestial_body=%v", payload["celestial_body"])
	}

	rr = get(t, mux, "/pluto")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}

func TestLayers_MarsCatalog(t *testing.T) {
	mux := newTestMux(t, &stubFetcher{})

	rr := get(t, mux, "/mars/layers")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	payload := decodeErr(t, rr)
	if payload["count"] != float64(2) {
		t.Fatalf("count=%v want 2", payload["count"])
	}
}

func TestStats_ReflectsServedTiles(t *testing.T) {
	f := &stubFetcher{outcome: fetch.Outcome{Kind: fetch.Success, Status: 200, Bytes: tileBytes}}
	mux := newTestMux(t, f)

	get(t, mux, "/moon/tile?z=3&y=2&x=5")
	get(t, mux, "/moon/tile?z=3&y=2&x=6")

	rr := get(t, mux, "/stats")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	payload := decodeErr(t, rr)
	if payload["recent_tiles"] != float64(2) {
		t.Fatalf("recent_tiles=%v want 2", payload["recent_tiles"])
	}
}
