package advisor

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/ai"
	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/logger"
	"github.com/spigell/programme-advisor/internal/metrics"
)

const (
	componentSynthesis = "synthesis"

	defaultOutreachWords    = 250
	defaultSynthesisTimeout = 60 * time.Second
)

//go:embed synthesis_prompt.md
var synthesisPrompt string

// SynthesizerOptions tune the Synthesizer. Zero values fall back to defaults.
type SynthesizerOptions struct {
	OutreachWords int
	Timeout       time.Duration
	Metrics       *metrics.Metrics
}

// Synthesizer picks the top programmes for a profile from a rendered catalogue.
type Synthesizer struct {
	model         ai.Model
	outreachWords int
	timeout       time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewSynthesizer creates a Synthesizer backed by model.
func NewSynthesizer(model ai.Model, opts SynthesizerOptions, log *zap.Logger) *Synthesizer {
	if opts.OutreachWords <= 0 {
		opts.OutreachWords = defaultOutreachWords
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSynthesisTimeout
	}

	return &Synthesizer{
		model:         model,
		outreachWords: opts.OutreachWords,
		timeout:       opts.Timeout,
		metrics:       opts.Metrics,
		logger:        logger.WithCommonFields(log, componentSynthesis, model.Provider(), model.Name()),
	}
}

// Synthesize embeds the whole catalogue in the system turn and asks for exactly
// three picks and one outreach email.
func (s *Synthesizer) Synthesize(ctx context.Context, profileText, catalogueText string) (contract.RecommendationSet, error) {
	if strings.TrimSpace(profileText) == "" {
		return contract.RecommendationSet{}, contract.InvalidInput("profile is empty")
	}
	if strings.TrimSpace(catalogueText) == "" {
		return contract.RecommendationSet{}, contract.NewFailure(contract.KindCatalogueUnavailable, "catalogue is empty", nil)
	}

	system := buildSynthesisPrompt(catalogueText, s.outreachWords)
	user := fmt.Sprintf("CANDIDATE PROFILE:\n%s\n\nPick exactly %d programmes from the catalogue and draft one outreach email of at most %d words.",
		profileText, contract.RecommendationCount, s.outreachWords)

	s.logger.Debug("synthesis request",
		zap.Int("prompt_length", utf8.RuneCountInString(system)+utf8.RuneCountInString(user)),
		zap.Int("catalogue_length", utf8.RuneCountInString(catalogueText)),
	)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	resp, err := s.model.Generate(ctx, &ai.Request{
		System: system,
		Parts:  []ai.Part{ai.TextPart(user)},
		Function: &ai.Function{
			Name:        contract.RecommendationFunctionName,
			Description: "Submit the top programme recommendations and the outreach email.",
			Parameters:  contract.RecommendationParameters(),
		},
	})
	s.metrics.ObserveModelCall(componentSynthesis, err, time.Since(started))
	if err != nil {
		failure := contract.FromUpstream(err)
		s.logger.Warn("synthesis call failed",
			zap.String("kind", string(failure.Kind)),
			zap.Int("status", failure.Status),
			zap.Error(err),
		)
		return contract.RecommendationSet{}, failure
	}

	set, path, err := decodeRecommendations(resp)
	s.metrics.ObserveDecodePath(path)
	if err != nil {
		s.logger.Warn("synthesis response rejected", zap.String("decode_path", path), zap.Error(err))
		return contract.RecommendationSet{}, err
	}

	s.logger.Info("recommendations synthesized",
		zap.String("decode_path", path),
		zap.Int("recommendations", len(set.Recommendations)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return set, nil
}

// decodeRecommendations reads the function call when there is one and never looks at
// the text in that case. Without a function call the text is parsed as JSON.
func decodeRecommendations(resp *ai.Response) (contract.RecommendationSet, string, error) {
	if resp != nil && resp.FunctionCall != nil {
		set, err := contract.DecodeRecommendationSet(resp.FunctionCall.Args)
		if err != nil {
			return contract.RecommendationSet{}, metrics.PathPrimary, contract.FormatError("function call arguments do not match the recommendation schema", err)
		}
		return set, metrics.PathPrimary, nil
	}

	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return contract.RecommendationSet{}, metrics.PathNone, contract.FormatError("model returned neither a function call nor text", nil)
	}

	var doc any
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &doc); err != nil {
		return contract.RecommendationSet{}, metrics.PathSecondary, contract.FormatError("response text is not valid JSON", err)
	}

	set, err := contract.DecodeRecommendationSet(doc)
	if err != nil {
		return contract.RecommendationSet{}, metrics.PathSecondary, contract.FormatError("response JSON does not match the recommendation schema", err)
	}
	return set, metrics.PathSecondary, nil
}

// extractJSON strips a leading code fence, its language tag and the closing fence.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimLeftFunc(raw, unicode.IsLetter)
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	return strings.TrimSpace(raw)
}

func buildSynthesisPrompt(catalogueText string, outreachWords int) string {
	prompt := strings.ReplaceAll(synthesisPrompt, "{{OUTREACH_WORDS}}", strconv.Itoa(outreachWords))
	return strings.ReplaceAll(prompt, "{{CATALOGUE}}", catalogueText)
}
