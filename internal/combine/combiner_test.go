package combine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentumwatch/internal/model"
)

func f64(v float64) *float64 { return &v }

func row(symbol, scanner string, last, chg, rvol, flt *float64) model.ScanRow {
	return model.ScanRow{
		Symbol:      symbol,
		Scanner:     scanner,
		LastPrice:   last,
		ChangePct:   chg,
		RVol:        rvol,
		FloatShares: flt,
	}
}

// passing returns a row clearing every default threshold.
func passing(symbol, scanner string) model.ScanRow {
	return row(symbol, scanner, f64(4.50), f64(12.5), f64(6.0), f64(8_000_000))
}

type seenSet map[string]bool

func (s seenSet) Seen(symbol string) bool { return s[symbol] }

func newCombiner() *Combiner {
	return New(DefaultFilters(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCombine_UnionsScanners(t *testing.T) {
	c := newCombiner()
	now := time.Now()

	got := c.Combine(now, [][]model.ScanRow{
		{passing("AAPL", "TOP_PERC_GAIN")},
		{passing("AAPL", "HOT_BY_VOLUME")},
	}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, []string{"HOT_BY_VOLUME", "TOP_PERC_GAIN"}, got[0].Scanners)
	assert.Equal(t, 2, got[0].Hits())
}

func TestCombine_MissingFieldFailsClosed(t *testing.T) {
	c := newCombiner()
	now := time.Now()

	cases := map[string]model.ScanRow{
		"no price":  row("A", "X", nil, f64(12), f64(6), f64(5e6)),
		"no change": row("B", "X", f64(5), nil, f64(6), f64(5e6)),
		"no rvol":   row("C", "X", f64(5), f64(12), nil, f64(5e6)),
		"no float":  row("D", "X", f64(5), f64(12), f64(6), nil),
	}
	for name, r := range cases {
		got := c.Combine(now, [][]model.ScanRow{{r}}, nil)
		assert.Empty(t, got, name)
	}
}

func TestCombine_Thresholds(t *testing.T) {
	c := newCombiner()
	now := time.Now()

	cases := []struct {
		name string
		row  model.ScanRow
		want bool
	}{
		{"all boundaries pass", row("A", "X", f64(1.0), f64(10.0), f64(5.0), f64(10_000_000)), true},
		{"upper price boundary", row("B", "X", f64(20.0), f64(10.0), f64(5.0), f64(1e6)), true},
		{"price too low", row("C", "X", f64(0.99), f64(15), f64(6), f64(1e6)), false},
		{"price too high", row("D", "X", f64(20.01), f64(15), f64(6), f64(1e6)), false},
		{"change too low", row("E", "X", f64(5), f64(9.9), f64(6), f64(1e6)), false},
		{"rvol too low", row("F", "X", f64(5), f64(15), f64(4.9), f64(1e6)), false},
		{"float too big", row("G", "X", f64(5), f64(15), f64(6), f64(10_000_001)), false},
	}
	for _, tc := range cases {
		got := c.Combine(now, [][]model.ScanRow{{tc.row}}, nil)
		if tc.want {
			assert.Len(t, got, 1, tc.name)
		} else {
			assert.Empty(t, got, tc.name)
		}
	}
}

func TestCombine_SeenSymbolsDropped(t *testing.T) {
	c := newCombiner()
	now := time.Now()

	got := c.Combine(now, [][]model.ScanRow{
		{passing("AAPL", "TOP_PERC_GAIN"), passing("GME", "TOP_PERC_GAIN")},
	}, seenSet{"AAPL": true})

	require.Len(t, got, 1)
	assert.Equal(t, "GME", got[0].Symbol)
	assert.Equal(t, int64(1), c.Stats().DroppedSeen)
}

func TestCombine_OrderedByRVolThenChange(t *testing.T) {
	c := newCombiner()
	now := time.Now()

	a := row("LOWRV", "X", f64(5), f64(40), f64(5.5), f64(1e6))
	b := row("HIGHRV", "X", f64(5), f64(11), f64(9.0), f64(1e6))
	tie1 := row("TIE_SMALL", "X", f64(5), f64(12), f64(7.0), f64(1e6))
	tie2 := row("TIE_BIG", "X", f64(5), f64(30), f64(7.0), f64(1e6))

	got := c.Combine(now, [][]model.ScanRow{{a, b, tie1, tie2}}, nil)
	require.Len(t, got, 4)

	symbols := []string{got[0].Symbol, got[1].Symbol, got[2].Symbol, got[3].Symbol}
	assert.Equal(t, []string{"HIGHRV", "TIE_BIG", "TIE_SMALL", "LOWRV"}, symbols)
}

type liveFilters struct {
	f Filters
}

func (l *liveFilters) Filters() Filters { return l.f }

// A threshold changed between cycles must apply on the very next Combine;
// the combiner may not hold a stale copy.
func TestCombine_ReadsFiltersEachCycle(t *testing.T) {
	provider := &liveFilters{f: DefaultFilters()}
	c := New(provider, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Now()

	r := row("AAPL", "TOP_PERC_GAIN", f64(4.50), f64(12.5), f64(6.0), f64(8e6))
	require.Len(t, c.Combine(now, [][]model.ScanRow{{r}}, nil), 1)

	provider.f.MinPrice = 5.0
	assert.Empty(t, c.Combine(now, [][]model.ScanRow{{r}}, nil),
		"raised price floor must exclude the candidate on the next cycle")

	provider.f.MinPrice = 1.0
	assert.Len(t, c.Combine(now, [][]model.ScanRow{{r}}, nil), 1)
}

// The gateway reports AAPL on two scanners with strong tape: it must come
// through as a single candidate with both codes attached.
func TestCombine_TwoScannersOneCandidate(t *testing.T) {
	c := newCombiner()
	now := time.Now()

	gain := row("AAPL", "TOP_PERC_GAIN", f64(4.50), f64(12.5), f64(6.2), f64(9_000_000))
	hot := row("AAPL", "HOT_BY_VOLUME", nil, nil, nil, nil)

	got := c.Combine(now, [][]model.ScanRow{{gain}, {hot}}, seenSet{})
	require.Len(t, got, 1)

	cand := got[0]
	assert.Equal(t, []string{"HOT_BY_VOLUME", "TOP_PERC_GAIN"}, cand.Scanners)
	assert.Equal(t, 4.50, *cand.LastPrice)
	assert.Equal(t, 12.5, *cand.ChangePct)
	assert.Equal(t, now, cand.FirstSeen)
}
