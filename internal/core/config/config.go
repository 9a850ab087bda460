package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr     string
	LogLevel string

	GIBSBaseURL      string
	TrekBaseURL      string
	EarthDefaultDate string

	// Mars keeps its zoom ceiling overridable; the other bodies are fixed
	// profile constants.
	MarsMaxZoom int

	// When set, Mercury only accepts jpg tiles.
	MercuryStrictFormat bool

	UpstreamTimeout time.Duration
	UpstreamRPS     float64

	HotHalfLife     time.Duration
	StatsRecentSize int

	Metrics MetricsCfg
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		GIBSBaseURL:      getenv("GIBS_BASE_URL", "https://gibs.earthdata.nasa.gov/wmts/epsg3857/best"),
		TrekBaseURL:      getenv("TREK_BASE_URL", "https://trek.nasa.gov/tiles"),
		EarthDefaultDate: getenv("EARTH_DEFAULT_DATE", "2025-10-03"),

		MarsMaxZoom:         getint("MARS_MAX_ZOOM", 7),
		MercuryStrictFormat: getbool("MERCURY_STRICT_FORMAT", true),

		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 15*time.Second),
		UpstreamRPS:     getfloat("UPSTREAM_RPS", 0),

		HotHalfLife:     getduration("HOT_HALF_LIFE", time.Minute),
		StatsRecentSize: getint("STATS_RECENT_SIZE", 1024),

		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
