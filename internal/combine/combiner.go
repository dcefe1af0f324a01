package combine

import (
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"

	"momentumwatch/internal/model"
)

// Filters are the momentum thresholds a candidate must clear.
type Filters struct {
	MinPrice     float64 `yaml:"min_price"`
	MaxPrice     float64 `yaml:"max_price"`
	MinChangePct float64 `yaml:"min_change_pct"`
	MinRVol      float64 `yaml:"min_rvol"`
	MaxFloat     float64 `yaml:"max_float"`
}

// DefaultFilters returns the small-cap momentum profile: low-priced movers
// up double digits on heavy relative volume with a tight float.
func DefaultFilters() Filters {
	return Filters{
		MinPrice:     1.0,
		MaxPrice:     20.0,
		MinChangePct: 10.0,
		MinRVol:      5.0,
		MaxFloat:     10_000_000,
	}
}

// FilterProvider yields the thresholds in effect for one poll window. The
// combiner re-reads it every Combine, so a runtime `set` takes effect on the
// next cycle. A plain Filters value provides itself; session.Settings
// provides the live operator values.
type FilterProvider interface {
	Filters() Filters
}

// Filters returns f, letting a fixed Filters value act as its own provider.
func (f Filters) Filters() Filters { return f }

// SeenChecker reports symbols already alerted this session.
type SeenChecker interface {
	Seen(symbol string) bool
}

// Stats is a snapshot of combiner activity across polls.
type Stats struct {
	Grouped     int64
	FilteredOut int64
	DroppedSeen int64
	Survivors   int64
}

// Combiner merges scanner rows into filtered, deduplicated candidates.
type Combiner struct {
	provider FilterProvider
	logger   *slog.Logger

	stats Stats
}

// New creates a Combiner reading its thresholds from the given provider.
func New(provider FilterProvider, logger *slog.Logger) *Combiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Combiner{provider: provider, logger: logger}
}

// Stats returns accumulated counters. Combine runs on the poll goroutine
// only, so no locking is needed.
func (c *Combiner) Stats() Stats { return c.stats }

// Combine groups one poll window's rows by symbol, applies the momentum
// filter and the seen-set, and returns survivors ordered by relative volume
// then change percentage, both descending.
func (c *Combiner) Combine(now time.Time, rowSets [][]model.ScanRow, seen SeenChecker) []model.Candidate {
	rows := lo.Flatten(rowSets)
	grouped := lo.GroupBy(rows, func(r model.ScanRow) string { return r.Symbol })
	c.stats.Grouped += int64(len(grouped))

	// Thresholds are read once per window, never cached across cycles.
	filters := c.provider.Filters()

	candidates := make([]model.Candidate, 0, len(grouped))
	for symbol, group := range grouped {
		cand := merge(symbol, group, now)

		if seen != nil && seen.Seen(symbol) {
			c.stats.DroppedSeen++
			continue
		}
		if !passes(cand, filters) {
			c.stats.FilteredOut++
			continue
		}
		candidates = append(candidates, cand)
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := deref(candidates[i].RVol), deref(candidates[j].RVol)
		if ri != rj {
			return ri > rj
		}
		return deref(candidates[i].ChangePct) > deref(candidates[j].ChangePct)
	})

	c.stats.Survivors += int64(len(candidates))
	c.logger.Debug("poll window combined",
		"symbols", len(grouped), "survivors", len(candidates))
	return candidates
}

// merge folds one symbol's rows into a Candidate: sorted unique scanner
// codes, first reported value per market field.
func merge(symbol string, rows []model.ScanRow, now time.Time) model.Candidate {
	scanners := lo.Uniq(lo.Map(rows, func(r model.ScanRow, _ int) string { return r.Scanner }))
	sort.Strings(scanners)

	cand := model.Candidate{
		Symbol:    symbol,
		FirstSeen: now,
		LastSeen:  now,
		Scanners:  scanners,
	}
	for _, r := range rows {
		if cand.LastPrice == nil {
			cand.LastPrice = r.LastPrice
		}
		if cand.ChangePct == nil {
			cand.ChangePct = r.ChangePct
		}
		if cand.RVol == nil {
			cand.RVol = r.RVol
		}
		if cand.FloatShares == nil {
			cand.FloatShares = r.FloatShares
		}
	}
	return cand
}

// Passes applies the momentum filter with the provider's current thresholds.
func (c *Combiner) Passes(cand model.Candidate) bool {
	return passes(cand, c.provider.Filters())
}

// passes applies the momentum filter. A missing field fails the candidate:
// no judgment without data.
func passes(cand model.Candidate, f Filters) bool {
	if cand.LastPrice == nil || *cand.LastPrice < f.MinPrice || *cand.LastPrice > f.MaxPrice {
		return false
	}
	if cand.ChangePct == nil || *cand.ChangePct < f.MinChangePct {
		return false
	}
	if cand.RVol == nil || *cand.RVol < f.MinRVol {
		return false
	}
	if cand.FloatShares == nil || *cand.FloatShares > f.MaxFloat {
		return false
	}
	return true
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
