package answer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	coreagg "github.com/salescope-lab/salescope/internal/core/aggregation"
	"github.com/salescope-lab/salescope/internal/core/intent"
	"github.com/salescope-lab/salescope/internal/core/period"
	"github.com/salescope-lab/salescope/internal/core/storage"
	"github.com/salescope-lab/salescope/internal/retrieval"
)

type fakeAggregator struct {
	result coreagg.Result
	err    error
	calls  int
	field  coreagg.Field
	period period.Period
}

func (f *fakeAggregator) SumMonth(_ context.Context, _ string, p period.Period, field coreagg.Field) (coreagg.Result, error) {
	f.calls++
	f.field = field
	f.period = p
	return f.result, f.err
}

type fakeRetriever struct {
	hits  []retrieval.Hit
	err   error
	calls int
}

func (f *fakeRetriever) Retrieve(context.Context, string, string) ([]retrieval.Hit, error) {
	f.calls++
	return f.hits, f.err
}

type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(context.Context, string, string) (string, error) {
	f.calls++
	return f.reply, f.err
}

var testNow = time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

func newTestService(agg *fakeAggregator, ret *fakeRetriever, comp *fakeCompleter) *Service {
	// A nil *fakeCompleter must become a nil interface, not a typed nil.
	if comp == nil {
		return NewService(nil, agg, ret, nil, "sales_vol_staging", 4000)
	}
	return NewService(nil, agg, ret, comp, "sales_vol_staging", 4000)
}

func TestRespondRevenueAggregation(t *testing.T) {
	p, _ := period.New(2024, 1)
	agg := &fakeAggregator{result: coreagg.Result{
		Period:            p,
		RecordsAggregated: 2,
		RecordsSkipped:    1,
		Total:             decimal.NewFromInt(300),
	}}
	ret := &fakeRetriever{}
	comp := &fakeCompleter{reply: "Total revenue in January 2024 was 300 across 2 records."}

	svc := newTestService(agg, ret, comp)
	reply, err := svc.Respond(context.Background(), "total revenue for January 2024", "", testNow)
	require.NoError(t, err)

	require.Equal(t, StateDone, reply.State)
	require.Equal(t, comp.reply, reply.Answer)
	require.Equal(t, coreagg.FieldRevenue, agg.field)
	require.Equal(t, p, agg.period)
	require.Zero(t, ret.calls)
	require.Empty(t, reply.Sources)
}

func TestRespondVolumeAggregation(t *testing.T) {
	p, _ := period.New(2024, 1)
	agg := &fakeAggregator{result: coreagg.Result{Period: p, RecordsAggregated: 5, Total: decimal.NewFromInt(42)}}
	svc := newTestService(agg, &fakeRetriever{}, &fakeCompleter{reply: "42 units."})

	reply, err := svc.Respond(context.Background(), "how many units sold in January 2024", "", testNow)
	require.NoError(t, err)
	require.Equal(t, StateDone, reply.State)
	require.Equal(t, coreagg.FieldVolume, agg.field)
}

func TestRespondLLMFailureFallsBackToDeterministicSentence(t *testing.T) {
	p, _ := period.New(2024, 1)
	agg := &fakeAggregator{result: coreagg.Result{
		Period:            p,
		RecordsAggregated: 2,
		Total:             decimal.NewFromInt(300),
	}}
	comp := &fakeCompleter{err: errors.New("model timeout")}

	svc := newTestService(agg, &fakeRetriever{}, comp)
	reply, err := svc.Respond(context.Background(), "total revenue for January 2024", "", testNow)
	require.NoError(t, err)

	require.Equal(t, StateDone, reply.State)
	require.Equal(t, "Total revenue in 2024-01: 300 across 2 records.", reply.Answer)
	require.Equal(t, 1, comp.calls)
}

func TestRespondAggregationBackendFailure(t *testing.T) {
	agg := &fakeAggregator{err: storage.ErrUnavailable}
	svc := newTestService(agg, &fakeRetriever{}, &fakeCompleter{})

	reply, err := svc.Respond(context.Background(), "total revenue for January 2024", "", testNow)
	require.ErrorIs(t, err, storage.ErrUnavailable)
	require.Equal(t, StateFailed, reply.State)
}

// The fallback law: an aggregation intent without a resolvable period must
// route to retrieval, never error out.
func TestRespondAggregationIntentWithoutPeriodFallsBackToRetrieval(t *testing.T) {
	agg := &fakeAggregator{}
	ret := &fakeRetriever{hits: []retrieval.Hit{
		{Record: storage.Record{"product_name": "Desk", "sales": "100"}, Score: 0.9, Rank: 0},
	}}
	comp := &fakeCompleter{reply: "Desks sold well."}

	svc := newTestService(agg, ret, comp)
	reply, err := svc.Respond(context.Background(), "what was the total revenue", "", testNow)
	require.NoError(t, err)

	require.Zero(t, agg.calls)
	require.Equal(t, 1, ret.calls)
	require.Equal(t, StateDone, reply.State)
	require.Equal(t, "Desks sold well.", reply.Answer)
	require.Len(t, reply.Sources, 1)
}

func TestRespondRetrievalNoHits(t *testing.T) {
	svc := newTestService(&fakeAggregator{}, &fakeRetriever{}, &fakeCompleter{reply: "should not be used"})

	reply, err := svc.Respond(context.Background(), "tell me about office chairs", "", testNow)
	require.NoError(t, err)
	require.Equal(t, StateNoContext, reply.State)
	require.Contains(t, reply.Answer, "No relevant records found")
	require.Empty(t, reply.Sources)
}

func TestRespondRetrievalErrorDegradesToNoContext(t *testing.T) {
	ret := &fakeRetriever{err: errors.New("embedding service down")}
	svc := newTestService(&fakeAggregator{}, ret, &fakeCompleter{})

	reply, err := svc.Respond(context.Background(), "popular products", "", testNow)
	require.NoError(t, err)
	require.Equal(t, StateNoContext, reply.State)
}

func TestRespondRetrievalLLMFailureReturnsRawContext(t *testing.T) {
	ret := &fakeRetriever{hits: []retrieval.Hit{
		{Record: storage.Record{"product_name": "Desk", "sales": "100"}, Rank: 0},
	}}
	comp := &fakeCompleter{err: errors.New("model down")}

	svc := newTestService(&fakeAggregator{}, ret, comp)
	reply, err := svc.Respond(context.Background(), "popular products", "", testNow)
	require.NoError(t, err)

	require.Equal(t, StateDone, reply.State)
	require.Contains(t, reply.Answer, "- Desk: sales=100")
	require.Len(t, reply.Sources, 1)
}

func TestRespondNilCompleter(t *testing.T) {
	p, _ := period.New(2024, 1)
	agg := &fakeAggregator{result: coreagg.Result{Period: p, RecordsAggregated: 1, Total: decimal.NewFromInt(7)}}

	svc := newTestService(agg, &fakeRetriever{}, nil)
	reply, err := svc.Respond(context.Background(), "revenue in January 2024", "", testNow)
	require.NoError(t, err)
	require.Equal(t, "Total revenue in 2024-01: 7 across 1 records.", reply.Answer)
}

// The "last month" phrase resolves against the injected now, not the wall
// clock.
func TestRespondRelativePeriodUsesInjectedNow(t *testing.T) {
	agg := &fakeAggregator{result: coreagg.Result{Total: decimal.Zero}}
	svc := newTestService(agg, &fakeRetriever{}, nil)

	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.Respond(context.Background(), "total revenue last month", "", now)
	require.NoError(t, err)
	require.Equal(t, 1, agg.calls)
	require.Equal(t, 2023, agg.period.Year)
	require.Equal(t, time.December, agg.period.Month)
}

func TestRespondCustomRules(t *testing.T) {
	rules := []intent.Rule{{Intent: intent.VolumeAggregation, Keywords: []string{"shipments"}}}
	agg := &fakeAggregator{result: coreagg.Result{Total: decimal.Zero}}
	svc := NewService(rules, agg, &fakeRetriever{}, nil, "c", 4000)

	_, err := svc.Respond(context.Background(), "shipments in January 2024", "", testNow)
	require.NoError(t, err)
	require.Equal(t, coreagg.FieldVolume, agg.field)
}
