package aggregation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/salescope-lab/salescope/internal/core/period"
	"github.com/salescope-lab/salescope/internal/core/storage"
)

// fakeStore pages through canned records, recording the filters and offsets
// it is asked for. Implements storage.VectorStore.
type fakeStore struct {
	pages   [][]storage.Record
	filters []storage.Filter
	offsets []any
	err     error
}

func (f *fakeStore) Scroll(_ context.Context, _ string, filter storage.Filter, _ int, offset any) ([]storage.Record, any, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.filters = append(f.filters, filter)
	f.offsets = append(f.offsets, offset)

	idx := 0
	if offset != nil {
		idx = offset.(int)
	}
	if idx >= len(f.pages) {
		return nil, nil, nil
	}
	var next any
	if idx+1 < len(f.pages) {
		next = idx + 1
	}
	return f.pages[idx], next, nil
}

func (f *fakeStore) Search(context.Context, string, []float64, int) ([]storage.ScoredRecord, error) {
	return nil, nil
}
func (f *fakeStore) Upsert(context.Context, string, []storage.Point) error       { return nil }
func (f *fakeStore) EnsureCollection(context.Context, string, int) error         { return nil }
func (f *fakeStore) Ping(context.Context) error                                  { return nil }

func mustPeriod(t *testing.T, year, month int) period.Period {
	t.Helper()
	p, err := period.New(year, month)
	require.NoError(t, err)
	return p
}

func TestSumMonthSkipsCorruptRecords(t *testing.T) {
	store := &fakeStore{pages: [][]storage.Record{{
		{"sales": 100.0},
		{"sales": "bad"},
		{"sales": 200.0},
		{"sales": math.NaN()},
		{"sales": math.Inf(1)},
		{"units": 5}, // revenue field missing entirely
		{"sales": nil},
		{"sales_amount": "1,250.50"}, // alias key, thousands separator
	}}}

	engine := NewEngine(store, 500)
	res, err := engine.SumMonth(context.Background(), "sales", mustPeriod(t, 2024, 1), FieldRevenue)
	require.NoError(t, err)

	require.Equal(t, 3, res.RecordsAggregated)
	require.Equal(t, 5, res.RecordsSkipped)
	require.True(t, res.Total.Equal(decimal.RequireFromString("1550.5")),
		"got total %s", res.Total)
}

func TestSumMonthValidPlusCorruptCounts(t *testing.T) {
	var page []storage.Record
	want := decimal.Zero
	for i := 1; i <= 40; i++ { // N valid
		page = append(page, storage.Record{"sales": float64(i)})
		want = want.Add(decimal.NewFromInt(int64(i)))
	}
	for i := 0; i < 17; i++ { // M corrupt
		page = append(page, storage.Record{"sales": "not-a-number"})
	}

	store := &fakeStore{pages: [][]storage.Record{page}}
	engine := NewEngine(store, 500)
	res, err := engine.SumMonth(context.Background(), "sales", mustPeriod(t, 2024, 1), FieldRevenue)
	require.NoError(t, err)
	require.Equal(t, 40, res.RecordsAggregated)
	require.Equal(t, 17, res.RecordsSkipped)
	require.True(t, res.Total.Equal(want))
}

func TestSumMonthPagesUntilExhaustion(t *testing.T) {
	store := &fakeStore{pages: [][]storage.Record{
		{{"sales": 1.0}, {"sales": 2.0}},
		{{"sales": 3.0}},
		{{"sales": 4.0}},
	}}

	engine := NewEngine(store, 2)
	res, err := engine.SumMonth(context.Background(), "sales", mustPeriod(t, 2024, 1), FieldRevenue)
	require.NoError(t, err)
	require.Equal(t, 4, res.RecordsAggregated)
	require.True(t, res.Total.Equal(decimal.NewFromInt(10)))

	// Three pages requested, each after the prior's continuation offset.
	require.Equal(t, []any{nil, 1, 2}, store.offsets)
}

func TestSumMonthFilterBounds(t *testing.T) {
	store := &fakeStore{pages: [][]storage.Record{{}}}
	engine := NewEngine(store, 500)

	_, err := engine.SumMonth(context.Background(), "sales", mustPeriod(t, 2023, 12), FieldRevenue)
	require.NoError(t, err)

	require.Len(t, store.filters, 1)
	require.Len(t, store.filters[0].Ranges, 1)
	rng := store.filters[0].Ranges[0]
	require.Equal(t, "month_year", rng.Key)
	require.Equal(t, "2023-12-01T00:00:00Z", rng.GTE)
	// December's upper bound must land on Dec 31, not spill into January.
	require.Equal(t, "2023-12-31T23:59:59Z", rng.LTE)
}

func TestSumMonthVolumeAliases(t *testing.T) {
	store := &fakeStore{pages: [][]storage.Record{{
		{"sales_vol": 10},
		{"quantity": int64(20)},
		{"sales_volume": "30"},
		{"sales": 99.0}, // revenue-only record does not count as volume
	}}}

	engine := NewEngine(store, 500)
	res, err := engine.SumMonth(context.Background(), "sales", mustPeriod(t, 2024, 6), FieldVolume)
	require.NoError(t, err)
	require.Equal(t, 3, res.RecordsAggregated)
	require.Equal(t, 1, res.RecordsSkipped)
	require.True(t, res.Total.Equal(decimal.NewFromInt(60)))
}

func TestSumMonthIdempotent(t *testing.T) {
	store := &fakeStore{pages: [][]storage.Record{
		{{"sales": 0.1}, {"sales": 0.2}},
		{{"sales": 0.3}},
	}}
	engine := NewEngine(store, 2)
	p := mustPeriod(t, 2024, 1)

	first, err := engine.SumMonth(context.Background(), "sales", p, FieldRevenue)
	require.NoError(t, err)
	second, err := engine.SumMonth(context.Background(), "sales", p, FieldRevenue)
	require.NoError(t, err)

	require.Equal(t, first.RecordsAggregated, second.RecordsAggregated)
	require.Equal(t, first.RecordsSkipped, second.RecordsSkipped)
	require.True(t, first.Total.Equal(second.Total))
	// Decimal accumulation is exact even for float-hostile values.
	require.True(t, first.Total.Equal(decimal.RequireFromString("0.6")))
}

func TestSumMonthBackendError(t *testing.T) {
	store := &fakeStore{err: storage.ErrUnavailable}
	engine := NewEngine(store, 500)

	_, err := engine.SumMonth(context.Background(), "sales", mustPeriod(t, 2024, 1), FieldRevenue)
	require.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestSumMonthEmptyPeriod(t *testing.T) {
	store := &fakeStore{pages: [][]storage.Record{{}}}
	engine := NewEngine(store, 500)

	res, err := engine.SumMonth(context.Background(), "sales", mustPeriod(t, 2024, 2), FieldRevenue)
	require.NoError(t, err)
	require.Equal(t, 0, res.RecordsAggregated)
	require.Equal(t, 0, res.RecordsSkipped)
	require.True(t, res.Total.IsZero())
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   string
		wantOK bool
	}{
		{name: "float", value: 12.5, want: "12.5", wantOK: true},
		{name: "int", value: 7, want: "7", wantOK: true},
		{name: "int64", value: int64(9), want: "9", wantOK: true},
		{name: "numeric string", value: "123.45", want: "123.45", wantOK: true},
		{name: "comma separated string", value: "1,234,567.89", want: "1234567.89", wantOK: true},
		{name: "negative string", value: "-50", want: "-50", wantOK: true},
		{name: "exponent string", value: "1e3", want: "1000", wantOK: true},
		{name: "garbage string", value: "bad"},
		{name: "empty string", value: ""},
		{name: "nan float", value: math.NaN()},
		{name: "inf float", value: math.Inf(1)},
		{name: "neg inf float", value: math.Inf(-1)},
		{name: "nan string", value: "NaN"},
		{name: "inf string", value: "Infinity"},
		{name: "nil", value: nil},
		{name: "bool", value: true},
		{name: "slice", value: []any{1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := ParseAmount(tc.value)
			require.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				require.True(t, d.Equal(decimal.RequireFromString(tc.want)),
					"got %s want %s", d, tc.want)
			}
		})
	}
}

func TestMonthFilterNeverCrossesYear(t *testing.T) {
	for month := 1; month <= 12; month++ {
		p := mustPeriod(t, 2024, month)
		f := monthFilter(p)
		gte, err := time.Parse(time.RFC3339, f.Ranges[0].GTE)
		require.NoError(t, err)
		lte, err := time.Parse(time.RFC3339, f.Ranges[0].LTE)
		require.NoError(t, err)
		require.True(t, p.Contains(gte))
		require.True(t, p.Contains(lte))
		require.True(t, lte.After(gte))
	}
}
