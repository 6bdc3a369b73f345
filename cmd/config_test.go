package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/advisor"
	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/filtering"
)

func TestDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("PA_AI_GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("PA_CATALOGUE_SOURCE", "files")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	require.NoError(t, v.Unmarshal(&cfg))

	require.NotNil(t, cfg.AI)
	require.NotNil(t, cfg.AI.Gemini)
	assert.Equal(t, "gemini-2.5-pro", cfg.AI.Gemini.Model)
	assert.Equal(t, 1, cfg.AI.Gemini.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.AI.ExtractionTimeout)
	assert.Equal(t, 60*time.Second, cfg.AI.SynthesisTimeout)
	assert.Equal(t, 6000, cfg.Extraction.MaxInputChars)
	assert.Equal(t, 250, cfg.Recommendation.OutreachWords)
	assert.Equal(t, "files", cfg.Catalogue.Source)
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestNewStore(t *testing.T) {
	log := zap.NewNop()

	store, closeStore, err := newStore(t.Context(), &CatalogueConfig{}, log)
	require.NoError(t, err)
	assert.Nil(t, store)
	closeStore()

	store, _, err = newStore(t.Context(), &CatalogueConfig{Source: "files", Files: &FilesConfig{Dir: t.TempDir()}}, log)
	require.NoError(t, err)
	assert.NotNil(t, store)

	store, _, err = newStore(t.Context(), &CatalogueConfig{Source: "rest", REST: &RESTConfig{URL: "http://localhost/programmes"}}, log)
	require.NoError(t, err)
	assert.NotNil(t, store)

	for _, cfg := range []*CatalogueConfig{
		{Source: "postgres"},
		{Source: "rest"},
		{Source: "files"},
		{Source: "mongo"},
	} {
		_, _, err := newStore(t.Context(), cfg, log)
		assert.Error(t, err, cfg.Source)
	}
}

func TestNewModelRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := newModel(t.Context(), &AIConfig{Gemini: &GeminiConfig{}}, zap.NewNop())
	assert.Error(t, err)

	_, err = newModel(t.Context(), &AIConfig{Provider: "openai", Gemini: &GeminiConfig{APIKey: "k"}}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported ai provider")
}

func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"jobTitle=Marketing Manager", " industry = FMCG ", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"jobTitle": "Marketing Manager",
		"industry": "FMCG",
		"note":     "a=b",
	}, fields)

	_, err = parseFields([]string{"jobTitle"})
	assert.Error(t, err)
	_, err = parseFields([]string{"=x"})
	assert.Error(t, err)
}

func TestReadProfileAcceptsExtractOutput(t *testing.T) {
	dir := t.TempDir()

	wrapped := filepath.Join(dir, "wrapped.json")
	require.NoError(t, os.WriteFile(wrapped, []byte(`{"profile": {"name": "Jane", "jobTitle": "Engineer"}}`), 0o600))
	bare := filepath.Join(dir, "bare.json")
	require.NoError(t, os.WriteFile(bare, []byte(`{"name": "Jane", "jobTitle": "Engineer"}`), 0o600))

	for _, path := range []string{wrapped, bare} {
		profile, err := readProfile(path)
		require.NoError(t, err)
		assert.Equal(t, contract.Profile{Name: "Jane", JobTitle: "Engineer"}, profile)
	}
}

func TestRecommendationInput(t *testing.T) {
	in, method, err := recommendationInput("", []string{"jobTitle=Engineer"}, false)
	require.NoError(t, err)
	assert.Equal(t, contract.InputForm, method)
	assert.Equal(t, map[string]any{"jobTitle": "Engineer"}, in.Fields)

	_, _, err = recommendationInput("", nil, false)
	assert.Error(t, err)
}

func TestExtractInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.txt")
	require.NoError(t, os.WriteFile(path, []byte("Jane Doe"), 0o600))

	in, err := extractInput([]string{path}, "", "lead a team")
	require.NoError(t, err)
	assert.Equal(t, advisor.KindDocument, in.Kind)
	assert.Equal(t, "cv.txt", in.Filename)
	assert.Equal(t, "lead a team", in.CareerGoals)

	in, err = extractInput(nil, "Jane Doe", "")
	require.NoError(t, err)
	assert.Equal(t, advisor.KindText, in.Kind)

	_, err = extractInput([]string{path}, "Jane Doe", "")
	assert.Error(t, err)
	_, err = extractInput(nil, "", "")
	assert.Error(t, err)
}

func TestOpenSink(t *testing.T) {
	sink, closeSink, err := openSink(&Config{})
	require.NoError(t, err)
	assert.Nil(t, sink)
	closeSink()

	path := filepath.Join(t.TempDir(), "submissions.jsonl")
	sink, closeSink, err = openSink(&Config{Recommendation: &RecommendationConfig{SubmissionsFile: path}})
	require.NoError(t, err)
	require.NotNil(t, sink)

	require.NoError(t, sink.Submit(t.Context(), contract.Submission{ID: "1"}))
	closeSink()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"1"`)
}

func TestPrintFiltersShowsConfiguredDetails(t *testing.T) {
	steps, err := filtering.Prepare(&filtering.Config{ExcludeCategories: []string{"Accounting And Finance"}})
	require.NoError(t, err)
	filtering.DisableByName(steps, "required_fields", "raw catalogue requested")

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetErr(&out)

	require.NoError(t, printFilters(cmd, steps))
	assert.Contains(t, out.String(), "required_fields: disabled (raw catalogue requested)")
	assert.Contains(t, out.String(), "categories: enabled categories=Accounting And Finance")
	assert.Contains(t, out.String(), "exclude_file: enabled")
}

func TestPrepareRejectsMissingExcludeFile(t *testing.T) {
	_, err := filtering.Prepare(&filtering.Config{ExcludeFile: filepath.Join(t.TempDir(), "missing.txt")})
	assert.ErrorContains(t, err, "exclude_file")
}
