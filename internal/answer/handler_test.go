package answer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	coreagg "github.com/salescope-lab/salescope/internal/core/aggregation"
	"github.com/salescope-lab/salescope/internal/core/period"
	"github.com/salescope-lab/salescope/internal/core/storage"
	"github.com/salescope-lab/salescope/internal/retrieval"
)

func postChat(t *testing.T, svc *Service, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	return w
}

func TestChatHandlerEmptyQuestion(t *testing.T) {
	svc := newTestService(&fakeAggregator{}, &fakeRetriever{}, nil)

	for _, form := range []url.Values{
		{},
		{"question": {""}},
		{"question": {"   "}},
	} {
		w := postChat(t, svc, form)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestChatHandlerAggregationAnswer(t *testing.T) {
	p, _ := period.New(2024, 1)
	agg := &fakeAggregator{result: coreagg.Result{
		Period:            p,
		RecordsAggregated: 2,
		Total:             decimal.NewFromInt(300),
	}}
	svc := newTestService(agg, &fakeRetriever{}, nil)

	w := postChat(t, svc, url.Values{"question": {"total revenue for January 2024"}})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Question string          `json:"question"`
		Answer   string          `json:"answer"`
		Sources  []retrieval.Hit `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "total revenue for January 2024", body.Question)
	require.Contains(t, body.Answer, "300")
	// Aggregation replies carry no sources.
	require.Empty(t, body.Sources)
	require.NotContains(t, w.Body.String(), `"sources"`)
}

func TestChatHandlerRetrievalSources(t *testing.T) {
	ret := &fakeRetriever{hits: []retrieval.Hit{
		{Record: storage.Record{"product_name": "Desk"}, Score: 0.8, Rank: 0},
	}}
	svc := newTestService(&fakeAggregator{}, ret, &fakeCompleter{reply: "Desks."})

	w := postChat(t, svc, url.Values{"question": {"what sells best"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"sources"`)
}

func TestChatHandlerBackendDown(t *testing.T) {
	agg := &fakeAggregator{err: storage.ErrUnavailable}
	svc := newTestService(agg, &fakeRetriever{}, nil)

	w := postChat(t, svc, url.Values{"question": {"total revenue for January 2024"}})
	require.Equal(t, http.StatusBadGateway, w.Code)
	require.Contains(t, w.Body.String(), "backend_unavailable")
}
