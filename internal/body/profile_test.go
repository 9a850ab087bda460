package body

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cosmozoom/tilegate/internal/core/config"
)

func testConfig() config.Config {
	return config.Config{
		GIBSBaseURL:         "https://gibs.earthdata.nasa.gov/wmts/epsg3857/best",
		TrekBaseURL:         "https://trek.nasa.gov/tiles",
		EarthDefaultDate:    "2025-10-03",
		MarsMaxZoom:         7,
		MercuryStrictFormat: true,
		UpstreamTimeout:     15 * time.Second,
	}
}

func TestRegistry_Get(t *testing.T) {
	reg := New(testConfig())

	for _, id := range []string{"earth", "moon", "mars", "mercury", "Earth", " MARS "} {
		if _, err := reg.Get(id); err != nil {
			t.Fatalf("Get(%q): unexpected err %v", id, err)
		}
	}

	_, err := reg.Get("pluto")
	if !errors.Is(err, ErrUnknownBody) {
		t.Fatalf("Get(pluto) err=%v want ErrUnknownBody", err)
	}
}

func TestTileMatrixShape_Square(t *testing.T) {
	reg := New(testConfig())
	for _, id := range []Body{Earth, Moon, Mars} {
		p, _ := reg.Get(string(id))
		for z := p.MinZoom; z <= p.MaxZoom; z++ {
			cols, rows := p.TileMatrixShape(z)
			want := 1 << uint(z)
			if cols != want || rows != want {
				t.Fatalf("%s z=%d shape=(%d,%d) want (%d,%d)", id, z, cols, rows, want, want)
			}
		}
	}
}

func TestTileMatrixShape_Mercury2x1(t *testing.T) {
	reg := New(testConfig())
	p, _ := reg.Get("mercury")
	for z := 0; z <= 7; z++ {
		cols, rows := p.TileMatrixShape(z)
		if rows != 1<<uint(z) {
			t.Fatalf("z=%d rows=%d want %d", z, rows, 1<<uint(z))
		}
		if cols != 2*rows {
			t.Fatalf("z=%d cols=%d want %d", z, cols, 2*rows)
		}
	}
}

func TestTileMatrixShape_MonotonicNonDecreasing(t *testing.T) {
	reg := New(testConfig())
	for _, p := range reg.All() {
		prevCols, prevRows := 0, 0
		for z := p.MinZoom; z <= p.MaxZoom; z++ {
			cols, rows := p.TileMatrixShape(z)
			if cols < prevCols || rows < prevRows {
				t.Fatalf("%s z=%d shape shrank: (%d,%d) after (%d,%d)", p.ID, z, cols, rows, prevCols, prevRows)
			}
			prevCols, prevRows = cols, rows
		}
	}
}

func TestMarsMaxZoom_FromConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MarsMaxZoom = 5

	p, _ := New(cfg).Get("mars")
	if p.MaxZoom != 5 {
		t.Fatalf("mars MaxZoom=%d want 5", p.MaxZoom)
	}
	for _, l := range p.Layers {
		if l.MaxZoom != 5 {
			t.Fatalf("layer %s MaxZoom=%d want 5", l.ID, l.MaxZoom)
		}
	}
}

func TestMercuryStrictFormat_Toggle(t *testing.T) {
	cfg := testConfig()

	p, _ := New(cfg).Get("mercury")
	if len(p.Formats) != 1 || p.Formats[0] != "jpg" {
		t.Fatalf("strict formats=%v want [jpg]", p.Formats)
	}
	if p.SupportsFormat("png") {
		t.Fatal("strict mercury should not support png")
	}

	cfg.MercuryStrictFormat = false
	p, _ = New(cfg).Get("mercury")
	if !p.SupportsFormat("png") {
		t.Fatal("non-strict mercury should support png")
	}
}

func TestProfiles_Invariants(t *testing.T) {
	reg := New(testConfig())
	for _, p := range reg.All() {
		if p.MinZoom > p.MaxZoom {
			t.Fatalf("%s: minZoom %d > maxZoom %d", p.ID, p.MinZoom, p.MaxZoom)
		}
		if p.BaseURL == "" || strings.HasSuffix(p.BaseURL, "/") {
			t.Fatalf("%s: bad base url %q", p.ID, p.BaseURL)
		}
		if p.DefaultLayer == "" || p.DefaultFormat == "" {
			t.Fatalf("%s: missing defaults", p.ID)
		}
		if p.CacheMaxAge <= 0 {
			t.Fatalf("%s: cache max age %d", p.ID, p.CacheMaxAge)
		}
	}

	earth, _ := reg.Get("earth")
	if !earth.RequiresDate || earth.Dialect != DialectGIBS {
		t.Fatal("earth must be GIBS dialect with a date")
	}
	moon, _ := reg.Get("moon")
	if moon.RequiresDate || moon.Dialect != DialectTrek {
		t.Fatal("moon must be Trek dialect without a date")
	}
}

func TestMarsAliases_CoverBothLayers(t *testing.T) {
	p, _ := New(testConfig()).Get("mars")

	canon := map[string]bool{}
	for _, c := range p.LayerAliases {
		canon[c] = true
	}
	if len(canon) != 2 {
		t.Fatalf("aliases resolve to %d canonical layers, want 2", len(canon))
	}
	if !canon[marsViking] || !canon[marsMOLA] {
		t.Fatalf("canonical set %v missing viking or mola", canon)
	}
}
