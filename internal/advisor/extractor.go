// Package advisor turns a candidate profile into programme recommendations.
package advisor

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/ai"
	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/logger"
	"github.com/spigell/programme-advisor/internal/metrics"
)

const (
	componentExtraction = "extraction"

	defaultMaxInputChars     = 6000
	defaultExtractionTimeout = 30 * time.Second
)

//go:embed extraction_prompt.md
var extractionPrompt string

// ExtractorOptions tune the Extractor. Zero values fall back to defaults.
type ExtractorOptions struct {
	MaxInputChars int
	Timeout       time.Duration
	Metrics       *metrics.Metrics
}

// Extractor reads a structured Profile out of a document or pasted text.
type Extractor struct {
	model         ai.Model
	maxInputChars int
	timeout       time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewExtractor creates an Extractor backed by model.
func NewExtractor(model ai.Model, opts ExtractorOptions, log *zap.Logger) *Extractor {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = defaultMaxInputChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultExtractionTimeout
	}

	return &Extractor{
		model:         model,
		maxInputChars: opts.MaxInputChars,
		timeout:       opts.Timeout,
		metrics:       opts.Metrics,
		logger:        logger.WithCommonFields(log, componentExtraction, model.Provider(), model.Name()),
	}
}

// Extract runs one forced-function extraction call. Only a function call is accepted
// as an answer; free text is a format error.
func (e *Extractor) Extract(ctx context.Context, in Input) (contract.Profile, error) {
	if err := validateInput(in); err != nil {
		return contract.Profile{}, err
	}

	parts, err := documentParts(in, e.maxInputChars)
	if err != nil {
		return contract.Profile{}, contract.InvalidInput("could not read document %q: %v", in.Filename, err)
	}

	goals := strings.TrimSpace(in.CareerGoals)
	if goals != "" {
		parts = append(parts, ai.TextPart("Stated career goals:\n"+goals))
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	resp, err := e.model.Generate(ctx, &ai.Request{
		System: extractionPrompt,
		Parts:  parts,
		Function: &ai.Function{
			Name:        contract.ProfileFunctionName,
			Description: "Record the candidate profile extracted from the document.",
			Parameters:  contract.ProfileParameters(),
		},
	})
	e.metrics.ObserveModelCall(componentExtraction, err, time.Since(started))
	if err != nil {
		failure := contract.FromUpstream(err)
		e.logger.Warn("profile extraction call failed",
			zap.String("kind", string(failure.Kind)),
			zap.Int("status", failure.Status),
			zap.Error(err),
		)
		return contract.Profile{}, failure
	}

	if resp == nil || resp.FunctionCall == nil {
		return contract.Profile{}, contract.FormatError("model answered without calling "+contract.ProfileFunctionName, nil)
	}

	profile, err := contract.DecodeProfile(resp.FunctionCall.Args)
	if err != nil {
		return contract.Profile{}, contract.FormatError("profile arguments do not match the schema", err)
	}

	if profile.CareerGoals == "" && goals != "" {
		profile.CareerGoals = goals
	}

	e.logger.Info("profile extracted",
		zap.String("kind", string(in.Kind)),
		zap.Int("fields", len(profile.Fields())),
		zap.Duration("elapsed", time.Since(started)),
	)

	return profile, nil
}

func validateInput(in Input) error {
	switch in.Kind {
	case KindDocument:
		if len(in.Data) == 0 {
			return contract.InvalidInput("document is empty")
		}
	case KindText:
		if strings.TrimSpace(in.Text) == "" {
			return contract.InvalidInput("profile text is empty")
		}
	default:
		return contract.InvalidInput("unsupported input kind %q", in.Kind)
	}
	return nil
}
