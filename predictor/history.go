package predictor

import (
	"strings"
	"sync"
)

type tradeStats struct {
	Attempts    int
	Successes   int
	TotalProfit float64
	AvgProfit   float64
}

// History is the per-route success memo, keyed by
// pair_buyDex_sellDex. It is owned by the Predictor instance and seeded
// from persisted execution history at startup instead of living in
// ambient package state.
type History struct {
	mu    sync.RWMutex
	stats map[string]*tradeStats
}

func NewHistory() *History {
	return &History{stats: make(map[string]*tradeStats)}
}

func Key(pair, buyDex, sellDex string) string {
	return pair + "_" + buyDex + "_" + sellDex
}

// Seed replaces the memo with persisted attempt/success counts.
func (h *History) Seed(rates map[string][2]int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats = make(map[string]*tradeStats, len(rates))
	for key, counts := range rates {
		if counts[0] <= 0 {
			continue
		}
		h.stats[key] = &tradeStats{Attempts: counts[0], Successes: counts[1]}
	}
}

// Update records one realized execution outcome.
func (h *History) Update(pair, buyDex, sellDex string, success bool, actualProfit float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := Key(pair, buyDex, sellDex)
	stats, ok := h.stats[key]
	if !ok {
		stats = &tradeStats{}
		h.stats[key] = stats
	}
	stats.Attempts++
	if success {
		stats.Successes++
		stats.TotalProfit += actualProfit
		stats.AvgProfit = stats.TotalProfit / float64(stats.Successes)
	}
}

// Rate returns the exact success ratio for a route.
func (h *History) Rate(pair, buyDex, sellDex string) (float64, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	stats, ok := h.stats[Key(pair, buyDex, sellDex)]
	if !ok || stats.Attempts == 0 {
		return 0, false
	}
	return float64(stats.Successes) / float64(stats.Attempts), true
}

// Score returns the exact route rate when known, otherwise the best
// same-pair route discounted to 0.8x, with 0.5 as the floor.
func (h *History) Score(pair, buyDex, sellDex string) float64 {
	if rate, ok := h.Rate(pair, buyDex, sellDex); ok {
		return rate
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	similar := 0.5
	for key, stats := range h.stats {
		if stats.Attempts == 0 || !strings.Contains(key, pair) {
			continue
		}
		rate := float64(stats.Successes) / float64(stats.Attempts)
		if rate*0.8 > similar {
			similar = rate * 0.8
		}
	}
	return similar
}
