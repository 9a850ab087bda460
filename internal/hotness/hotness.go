// Package hotness tracks per-tile request hotness. Observability only: the
// gateway never serves from it.
package hotness

type Interface interface {
	Inc(key string)
	Score(key string) float64
	Reset(keys ...string)
}
