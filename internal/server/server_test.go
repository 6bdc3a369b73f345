package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/advisor"
	"github.com/spigell/programme-advisor/internal/ai"
	"github.com/spigell/programme-advisor/internal/catalogue"
	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/metrics"
)

type fakePipeline struct {
	mu          sync.Mutex
	extractIn   []advisor.Input
	recommendIn []advisor.RecommendationInput
	profile     contract.Profile
	set         contract.RecommendationSet
	err         error
}

func (f *fakePipeline) RunExtraction(_ context.Context, in advisor.Input) (contract.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extractIn = append(f.extractIn, in)
	return f.profile, f.err
}

func (f *fakePipeline) RunRecommendation(_ context.Context, in advisor.RecommendationInput) (contract.RecommendationSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommendIn = append(f.recommendIn, in)
	return f.set, f.err
}

type fakeCatalogue struct {
	entries contract.Catalogue
	err     error
}

func (f fakeCatalogue) Snapshot(context.Context) (contract.Catalogue, error) {
	return f.entries, f.err
}

type recordingSink struct {
	submissions []contract.Submission
}

func (r *recordingSink) Submit(_ context.Context, s contract.Submission) error {
	r.submissions = append(r.submissions, s)
	return nil
}

func sampleSet() contract.RecommendationSet {
	return contract.RecommendationSet{
		Recommendations: []contract.Recommendation{
			{Title: "Brand Leadership", Reason: "a"},
			{Title: "Digital Marketing & AI", Reason: "b"},
			{Title: "Finance for Non-Financial Managers", Reason: "c"},
		},
		OutreachEmail: "Dear Jane",
	}
}

func do(t *testing.T, h http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 && strings.Contains(rec.Header().Get("Content-Type"), "json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealth(t *testing.T) {
	srv := New(Config{}, Deps{}, zap.NewNop())

	rec, body := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["ready"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight(t *testing.T) {
	srv := New(Config{}, Deps{}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/recommend", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestExtractJSON(t *testing.T) {
	pipeline := &fakePipeline{profile: contract.Profile{Name: "Jane", JobTitle: "Engineer"}}
	srv := New(Config{}, Deps{Pipeline: pipeline}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"text": "Jane, engineer", "careerGoals": "lead"}`))
	req.Header.Set("Content-Type", "application/json")

	rec, body := do(t, srv.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jane", body["profile"].(map[string]any)["name"])

	require.Len(t, pipeline.extractIn, 1)
	assert.Equal(t, advisor.KindText, pipeline.extractIn[0].Kind)
	assert.Equal(t, "lead", pipeline.extractIn[0].CareerGoals)
}

func TestExtractMultipart(t *testing.T) {
	pipeline := &fakePipeline{profile: contract.Profile{Name: "Jane", JobTitle: "Engineer"}}
	srv := New(Config{}, Deps{Pipeline: pipeline}, zap.NewNop())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "cv.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("careerGoals", "become CMO"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec, _ := do(t, srv.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, pipeline.extractIn, 1)
	in := pipeline.extractIn[0]
	assert.Equal(t, advisor.KindDocument, in.Kind)
	assert.Equal(t, "cv.pdf", in.Filename)
	assert.Equal(t, []byte("%PDF-1.4"), in.Data)
	assert.Equal(t, "become CMO", in.CareerGoals)
}

func TestExtractRejectsBadInput(t *testing.T) {
	pipeline := &fakePipeline{}
	srv := New(Config{}, Deps{Pipeline: pipeline}, zap.NewNop())

	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{name: "missing text", body: `{"careerGoals": "lead"}`, contentType: "application/json"},
		{name: "broken json", body: `{"text":`, contentType: "application/json"},
		{name: "multipart without file", body: "--x--\r\n", contentType: "multipart/form-data; boundary=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			rec, body := do(t, srv.Handler(), req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.Empty(t, pipeline.extractIn)
}

func TestRecommendMapsFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "throttled", err: contract.FromUpstream(&ai.StatusError{Code: 429}), status: http.StatusTooManyRequests},
		{name: "quota", err: contract.FromUpstream(&ai.StatusError{Code: 402}), status: http.StatusPaymentRequired},
		{name: "catalogue", err: contract.NewFailure(contract.KindCatalogueUnavailable, "none", nil), status: http.StatusInternalServerError},
		{name: "format", err: contract.FormatError("bad", nil), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New(Config{}, Deps{Pipeline: &fakePipeline{err: tt.err}}, zap.NewNop())

			req := httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(`{"fields": {"jobTitle": "Marketing Manager"}}`))
			rec, body := do(t, srv.Handler(), req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, advisor.UserMessage(tt.err), body["error"])
			assert.NotContains(t, body, "recommendations")
		})
	}
}

func TestRecommendSuccessRecordsSubmission(t *testing.T) {
	pipeline := &fakePipeline{set: sampleSet()}
	sink := &recordingSink{}
	srv := New(Config{}, Deps{Pipeline: pipeline, Sink: sink}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(`{
		"fields": {"jobTitle": "Marketing Manager", "industry": "FMCG", "yearsExperience": 8},
		"catalogue": "TITLE: Brand Leadership",
		"contact": {"name": "Jane", "email": "jane@example.com"}
	}`))

	rec, body := do(t, srv.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["recommendations"], 3)
	assert.Equal(t, "Dear Jane", body["outreachEmail"])

	require.Len(t, pipeline.recommendIn, 1)
	assert.Equal(t, "TITLE: Brand Leadership", pipeline.recommendIn[0].InlineCatalogue)

	require.Len(t, sink.submissions, 1)
	assert.Equal(t, contract.InputForm, sink.submissions[0].InputMethod)
	assert.Equal(t, "jane@example.com", sink.submissions[0].Contact.Email)
	assert.Equal(t, "8", sink.submissions[0].Profile["yearsExperience"])
}

func TestRecommendValidation(t *testing.T) {
	pipeline := &fakePipeline{set: sampleSet()}
	srv := New(Config{}, Deps{Pipeline: pipeline}, zap.NewNop())

	for _, body := range []string{
		`{}`,
		`{"fields": {"jobTitle": "x"}, "contact": {"email": "not-an-email"}}`,
		`{"fields": {"jobTitle": "x"}, "inputMethod": "fax"}`,
	} {
		rec, _ := do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/recommend", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Empty(t, pipeline.recommendIn)
}

func TestProgrammes(t *testing.T) {
	long := strings.Repeat("x", 300)
	srv := New(Config{}, Deps{Catalogue: fakeCatalogue{entries: contract.Catalogue{
		{Title: "Brand Leadership", URL: "https://example.com/brand", Description: long},
	}}}, zap.NewNop())

	rec, body := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/programmes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	programmes := body["programmes"].([]any)
	description := programmes[0].(map[string]any)["description"].(string)
	assert.Len(t, description, catalogue.ListingDescriptionLimit)
}

func TestProgrammesStoreFailure(t *testing.T) {
	srv := New(Config{}, Deps{Catalogue: fakeCatalogue{err: errors.New("down")}}, zap.NewNop())

	rec, body := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/programmes", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.ObserveDecodePath(metrics.PathPrimary)

	srv := New(Config{}, Deps{Gatherer: reg}, zap.NewNop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `programme_advisor_decode_path_total{path="primary"} 1`)
}
