// Package answer is the top-level question router: it classifies a question,
// resolves its time period, dispatches to deterministic aggregation or
// semantic retrieval, and synthesizes a reply. The chat model is an
// enhancement on every path — each terminal state has a deterministic
// fallback so an LLM outage never fails a numeric answer.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/salescope-lab/salescope/internal/chat"
	coreagg "github.com/salescope-lab/salescope/internal/core/aggregation"
	"github.com/salescope-lab/salescope/internal/core/intent"
	"github.com/salescope-lab/salescope/internal/core/period"
	"github.com/salescope-lab/salescope/internal/retrieval"
)

// State is the terminal state of one routed question.
type State string

const (
	StateDone      State = "done"       // answered, possibly via the LLM
	StateNoContext State = "no_context" // retrieval found nothing relevant
	StateFailed    State = "failed"     // aggregation backend unreachable
)

// Reply is the routed outcome. Sources is populated only on the retrieval
// path, where the grounding records are part of the answer's provenance.
type Reply struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Sources  []retrieval.Hit `json:"sources,omitempty"`
	State    State           `json:"-"`
}

// Aggregator is the deterministic summation surface.
type Aggregator interface {
	SumMonth(ctx context.Context, collection string, p period.Period, field coreagg.Field) (coreagg.Result, error)
}

// Retriever is the semantic retrieval surface.
type Retriever interface {
	Retrieve(ctx context.Context, collection, question string) ([]retrieval.Hit, error)
}

type Service struct {
	rules             []intent.Rule
	aggregator        Aggregator
	retriever         Retriever
	completer         chat.Completer
	defaultCollection string
	contextBudget     int
}

func NewService(rules []intent.Rule, aggregator Aggregator, retriever Retriever, completer chat.Completer, defaultCollection string, contextBudget int) *Service {
	if aggregator == nil {
		panic("answer: aggregator must not be nil")
	}
	if retriever == nil {
		panic("answer: retriever must not be nil")
	}
	if len(rules) == 0 {
		rules = intent.DefaultRules()
	}
	if contextBudget <= 0 {
		contextBudget = 4000
	}
	return &Service{
		rules:             rules,
		aggregator:        aggregator,
		retriever:         retriever,
		completer:         completer,
		defaultCollection: defaultCollection,
		contextBudget:     contextBudget,
	}
}

// Respond routes one question. now is injected so relative period phrases
// ("last month") stay deterministic and testable.
//
// Aggregation intents without a resolvable period fall back to retrieval:
// that fallback is load-bearing, it is the only thing standing between a
// vague aggregation question and a dead-end error.
func (s *Service) Respond(ctx context.Context, question, collection string, now time.Time) (Reply, error) {
	if collection == "" {
		collection = s.defaultCollection
	}

	in := intent.Classify(question, s.rules)
	p, hasPeriod := period.Extract(question, now)

	slog.Info("Routing question",
		"intent", in.String(),
		"has_period", hasPeriod,
		"collection", collection,
	)

	if in.IsAggregation() && hasPeriod {
		return s.respondAggregation(ctx, question, collection, p, in)
	}
	return s.respondRetrieval(ctx, question, collection)
}

func (s *Service) respondAggregation(ctx context.Context, question, collection string, p period.Period, in intent.Intent) (Reply, error) {
	field := coreagg.FieldRevenue
	if in == intent.VolumeAggregation {
		field = coreagg.FieldVolume
	}

	res, err := s.aggregator.SumMonth(ctx, collection, p, field)
	if err != nil {
		// Exact numbers cannot be approximated; surface the failure.
		return Reply{Question: question, State: StateFailed}, err
	}

	reply := Reply{Question: question, State: StateDone, Answer: aggregationSentence(res, field)}

	if s.completer == nil {
		return reply, nil
	}
	gloss, err := s.completer.Complete(ctx,
		fmt.Sprintf("You summarize sales %s clearly and concisely.", field),
		fmt.Sprintf("Question: %s\nResult: %s\nRespond in one sentence with the total and records_aggregated.",
			question, aggregationJSON(res, field)),
	)
	if err != nil {
		slog.Warn("Chat model failed, returning deterministic summary", "error", err)
		return reply, nil
	}
	reply.Answer = gloss
	return reply, nil
}

func (s *Service) respondRetrieval(ctx context.Context, question, collection string) (Reply, error) {
	hits, err := s.retriever.Retrieve(ctx, collection, question)
	if err != nil {
		// Retrieval degrades instead of failing: an explicit empty context
		// still produces a usable reply.
		slog.Warn("Retrieval failed, degrading to no-context reply", "error", err)
		hits = nil
	}

	if len(hits) == 0 {
		reply := Reply{
			Question: question,
			State:    StateNoContext,
			Answer:   "No relevant records found. Please specify the month/year or product.",
		}
		return reply, nil
	}

	reply := Reply{Question: question, State: StateDone, Sources: hits}
	grounding := retrieval.BuildContext(hits, s.contextBudget)

	if s.completer == nil {
		reply.Answer = grounding
		return reply, nil
	}
	answer, err := s.completer.Complete(ctx,
		"You answer questions about sales data using only the provided context. If asked for totals, request a month/year to compute deterministically.",
		fmt.Sprintf("Question: %s\nContext:\n%s\nAnswer succinctly using only the context.", question, grounding),
	)
	if err != nil {
		slog.Warn("Chat model failed, returning raw retrieval context", "error", err)
		reply.Answer = "I retrieved relevant records but could not summarize them:\n" + grounding
		return reply, nil
	}
	reply.Answer = answer
	return reply, nil
}

// aggregationSentence is the deterministic fallback answer for the numeric
// path; it must carry the same facts the LLM gloss would.
func aggregationSentence(res coreagg.Result, field coreagg.Field) string {
	noun := "revenue"
	if field == coreagg.FieldVolume {
		noun = "units"
	}
	return fmt.Sprintf("Total %s in %s: %s across %d records.",
		noun, res.Period, res.Total, res.RecordsAggregated)
}

func aggregationJSON(res coreagg.Result, field coreagg.Field) string {
	totalKey := "total_sales"
	if field == coreagg.FieldVolume {
		totalKey = "total_volume"
	}
	data, _ := json.Marshal(map[string]any{
		"period":             res.Period.String(),
		"records_aggregated": res.RecordsAggregated,
		"records_skipped":    res.RecordsSkipped,
		totalKey:             json.Number(res.Total.String()),
	})
	return string(data)
}
