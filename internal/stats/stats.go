// Package stats keeps a bounded window of recently requested tiles and
// summarizes it for the /stats endpoint. Like the Prometheus counters this is
// observability-only cross-request state; tile bytes are never cached.
package stats

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cosmozoom/tilegate/internal/hotness"
)

type entry struct {
	Body  string
	Layer string
}

type Recorder struct {
	mu     sync.Mutex
	recent *lru.Cache[string, entry]
	hot    hotness.Interface
}

type LayerCount struct {
	Body    string  `json:"body"`
	Layer   string  `json:"layer"`
	Tiles   int     `json:"tiles"`
	Hotness float64 `json:"hotness"`
}

type Snapshot struct {
	RecentTiles  int          `json:"recent_tiles"`
	TrackedTiles int          `json:"tracked_tiles"`
	TopLayers    []LayerCount `json:"top_layers"`
}

func New(size int, hot hotness.Interface) (*Recorder, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Recorder{recent: c, hot: hot}, nil
}

// Record notes one served tile request.
func (r *Recorder) Record(key, body, layer string) {
	r.hot.Inc(key)
	r.mu.Lock()
	r.recent.Add(key, entry{Body: body, Layer: layer})
	r.mu.Unlock()
}

type sizer interface{ Size() int }

// Snapshot aggregates the recent window per body/layer, with decayed hotness
// summed over each layer's tiles. Top ten layers, hottest first.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	keys := r.recent.Keys()
	entries := make([]entry, 0, len(keys))
	kept := keys[:0]
	for _, k := range keys {
		if e, ok := r.recent.Peek(k); ok {
			entries = append(entries, e)
			kept = append(kept, k)
		}
	}
	r.mu.Unlock()

	type agg struct {
		count int
		hot   float64
	}
	byLayer := map[entry]*agg{}
	for i, e := range entries {
		a := byLayer[e]
		if a == nil {
			a = &agg{}
			byLayer[e] = a
		}
		a.count++
		a.hot += r.hot.Score(kept[i])
	}

	top := make([]LayerCount, 0, len(byLayer))
	for e, a := range byLayer {
		top = append(top, LayerCount{Body: e.Body, Layer: e.Layer, Tiles: a.count, Hotness: a.hot})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Hotness != top[j].Hotness {
			return top[i].Hotness > top[j].Hotness
		}
		return top[i].Tiles > top[j].Tiles
	})
	if len(top) > 10 {
		top = top[:10]
	}

	snap := Snapshot{RecentTiles: len(entries), TopLayers: top}
	if s, ok := r.hot.(sizer); ok {
		snap.TrackedTiles = s.Size()
	}
	return snap
}
