package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/programme-advisor/internal/ai"
	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/metrics"
)

const (
	sampleProfile   = "jobTitle: Marketing Manager\nindustry: FMCG"
	sampleCatalogue = "TITLE: Brand Leadership\nURL: https://example.com/brand"
)

var sampleTitles = []string{"Brand Leadership", "Digital Marketing & AI", "Finance for Non-Financial Managers"}

func recommendationArgs(titles ...string) map[string]any {
	recs := make([]any, 0, len(titles))
	for _, title := range titles {
		recs = append(recs, map[string]any{
			"title":    title,
			"category": "Marketing",
			"reason":   "It builds on " + title + " experience.",
		})
	}
	return map[string]any{"recommendations": recs, "outreachEmail": "Dear Jane,\n\nWe would love to talk."}
}

func recommendationJSON(t *testing.T, titles ...string) string {
	t.Helper()
	raw, err := json.Marshal(recommendationArgs(titles...))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func newTestMetrics(t *testing.T) *metrics.Metrics {
	t.Helper()
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	return m
}

func pathCount(m *metrics.Metrics, path string) float64 {
	return testutil.ToFloat64(m.DecodePaths.WithLabelValues(path))
}

func TestSynthesizePrimaryPath(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	model := newFakeModel(functionCall(contract.RecommendationFunctionName, recommendationArgs(sampleTitles...)))
	synth := NewSynthesizer(model, SynthesizerOptions{OutreachWords: 120, Metrics: m}, zap.NewNop())

	set, err := synth.Synthesize(context.Background(), sampleProfile, sampleCatalogue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(set.Recommendations))
	}

	req := model.requests[0]
	if !strings.HasSuffix(strings.TrimSpace(req.System), sampleCatalogue) {
		t.Fatalf("expected catalogue embedded verbatim in system turn:\n%s", req.System)
	}
	if !strings.Contains(req.System, "at most 120 words") {
		t.Fatal("expected outreach word limit in system turn")
	}
	if !strings.Contains(req.Parts[0].Text, sampleProfile) {
		t.Fatalf("expected profile in user turn: %q", req.Parts[0].Text)
	}
	if req.Function == nil || req.Function.Name != contract.RecommendationFunctionName {
		t.Fatalf("expected forced recommendation function, got %+v", req.Function)
	}

	if pathCount(m, metrics.PathPrimary) != 1 || pathCount(m, metrics.PathSecondary) != 0 {
		t.Fatal("expected only the primary path to be used")
	}
}

func TestSynthesizePrimaryPathTakesPrecedence(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	m := newTestMetrics(t)

	// Invalid function arguments next to perfectly valid JSON text.
	model := newFakeModel(fakeResult{resp: &ai.Response{
		FunctionCall: &ai.FunctionCall{Name: contract.RecommendationFunctionName, Args: map[string]any{}},
		Text:         recommendationJSON(t, sampleTitles...),
	}})
	synth := NewSynthesizer(model, SynthesizerOptions{Metrics: m}, zap.New(core))

	_, err := synth.Synthesize(context.Background(), sampleProfile, sampleCatalogue)
	failure, ok := contract.AsFailure(err)
	if !ok || failure.Kind != contract.KindUpstreamFormatError {
		t.Fatalf("expected format error, got %v", err)
	}

	if pathCount(m, metrics.PathSecondary) != 0 {
		t.Fatal("secondary path must not be attempted when a function call is present")
	}
	entries := logs.FilterMessage("synthesis response rejected").All()
	if len(entries) != 1 || entries[0].ContextMap()["decode_path"] != metrics.PathPrimary {
		t.Fatalf("expected rejection logged on primary path, got %+v", entries)
	}
}

func TestSynthesizeFencedJSONMatchesUnfenced(t *testing.T) {
	t.Parallel()

	body := recommendationJSON(t, sampleTitles...)

	plain := newFakeModel(textResult(body))
	fenced := newFakeModel(textResult("```json\n" + body + "\n```"))

	m := newTestMetrics(t)
	want, err := NewSynthesizer(plain, SynthesizerOptions{Metrics: m}, nil).Synthesize(context.Background(), sampleProfile, sampleCatalogue)
	if err != nil {
		t.Fatalf("unfenced: unexpected error: %v", err)
	}
	got, err := NewSynthesizer(fenced, SynthesizerOptions{Metrics: m}, nil).Synthesize(context.Background(), sampleProfile, sampleCatalogue)
	if err != nil {
		t.Fatalf("fenced: unexpected error: %v", err)
	}

	if !reflect.DeepEqual(want, got) {
		t.Fatalf("fenced result differs:\n%+v\n%+v", want, got)
	}
	if pathCount(m, metrics.PathSecondary) != 2 {
		t.Fatal("expected both decodes on the secondary path")
	}
}

func TestSynthesizeFormatErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result fakeResult
		path   string
	}{
		{name: "empty arguments", result: functionCall(contract.RecommendationFunctionName, map[string]any{}), path: metrics.PathPrimary},
		{name: "empty recommendations", result: functionCall(contract.RecommendationFunctionName, map[string]any{"recommendations": []any{}, "outreachEmail": "hi"}), path: metrics.PathPrimary},
		{name: "two picks", result: functionCall(contract.RecommendationFunctionName, recommendationArgs(sampleTitles[:2]...)), path: metrics.PathPrimary},
		{name: "prose", result: textResult("Here are my picks: Brand Leadership."), path: metrics.PathSecondary},
		{name: "recommendations not array", result: textResult(`{"recommendations": "Brand Leadership", "outreachEmail": "hi"}`), path: metrics.PathSecondary},
		{name: "nothing", result: fakeResult{resp: &ai.Response{Text: "  "}}, path: metrics.PathNone},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := newTestMetrics(t)
			_, err := NewSynthesizer(newFakeModel(tt.result), SynthesizerOptions{Metrics: m}, nil).Synthesize(context.Background(), sampleProfile, sampleCatalogue)

			failure, ok := contract.AsFailure(err)
			if !ok || failure.Kind != contract.KindUpstreamFormatError {
				t.Fatalf("expected format error, got %v", err)
			}
			if pathCount(m, tt.path) != 1 {
				t.Fatalf("expected decode path %s recorded", tt.path)
			}
		})
	}
}

func TestSynthesizeKeepsTopThree(t *testing.T) {
	t.Parallel()

	titles := append(append([]string(nil), sampleTitles...), "Negotiation Skills")
	model := newFakeModel(functionCall(contract.RecommendationFunctionName, recommendationArgs(titles...)))

	set, err := NewSynthesizer(model, SynthesizerOptions{}, nil).Synthesize(context.Background(), sampleProfile, sampleCatalogue)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(set.Recommendations) != 3 || set.Recommendations[2].Title != sampleTitles[2] {
		t.Fatalf("unexpected recommendations: %+v", set.Recommendations)
	}
}

func TestSynthesizeThrottleAndQuotaAreDistinct(t *testing.T) {
	t.Parallel()

	run := func(code int) error {
		model := newFakeModel(errResult(&ai.StatusError{Code: code}))
		_, err := NewSynthesizer(model, SynthesizerOptions{}, nil).Synthesize(context.Background(), sampleProfile, sampleCatalogue)
		return err
	}

	throttled := run(http.StatusTooManyRequests)
	quota := run(http.StatusPaymentRequired)

	if f, _ := contract.AsFailure(throttled); f == nil || f.Kind != contract.KindRateLimited {
		t.Fatalf("expected rate limited, got %v", throttled)
	}
	if f, _ := contract.AsFailure(quota); f == nil || f.Kind != contract.KindQuotaExceeded {
		t.Fatalf("expected quota exceeded, got %v", quota)
	}
	if UserMessage(throttled) == UserMessage(quota) {
		t.Fatal("expected distinct caller messages for throttling and quota")
	}
	if HTTPStatus(throttled) != http.StatusTooManyRequests || HTTPStatus(quota) != http.StatusPaymentRequired {
		t.Fatalf("unexpected statuses: %d %d", HTTPStatus(throttled), HTTPStatus(quota))
	}
}

func TestSynthesizeRejectsEmptyInputs(t *testing.T) {
	t.Parallel()

	model := newFakeModel()
	synth := NewSynthesizer(model, SynthesizerOptions{}, nil)

	if _, err := synth.Synthesize(context.Background(), " ", sampleCatalogue); HTTPStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected bad request for empty profile, got %v", err)
	}
	_, err := synth.Synthesize(context.Background(), sampleProfile, "")
	if f, ok := contract.AsFailure(err); !ok || f.Kind != contract.KindCatalogueUnavailable {
		t.Fatalf("expected catalogue unavailable, got %v", err)
	}
	if model.calls() != 0 {
		t.Fatalf("expected no model calls, got %d", model.calls())
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{name: "plain", raw: `{"a":1}`},
		{name: "json fence", raw: "```json\n{\"a\":1}\n```"},
		{name: "upper tag", raw: "```JSON\n{\"a\":1}\n```"},
		{name: "bare fence", raw: "```\n{\"a\":1}\n```"},
		{name: "same line", raw: "```json {\"a\":1}```"},
		{name: "unterminated", raw: "  ```json\n{\"a\":1}\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := extractJSON(tt.raw); got != `{"a":1}` {
				t.Fatalf("unexpected result: %q", got)
			}
		})
	}
}
