package advisor

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/contract"
	"github.com/spigell/programme-advisor/internal/metrics"
)

// CatalogueResolver yields the rendered catalogue text for one request.
type CatalogueResolver interface {
	Resolve(ctx context.Context, inlineFallback string) (string, error)
}

// RecommendationInput carries either an extracted profile or raw form fields.
type RecommendationInput struct {
	Profile *contract.Profile
	Fields  map[string]any
	// InlineCatalogue is used when the catalogue store yields nothing.
	InlineCatalogue string
}

// fields renders the profile, preferring the typed Profile over raw fields.
func (in RecommendationInput) fields() []contract.Field {
	if in.Profile != nil {
		return in.Profile.Fields()
	}
	return contract.FieldsFromMap(in.Fields)
}

// Pipeline is the externally callable surface. Every error it returns is a *contract.Failure.
type Pipeline struct {
	extractor   *Extractor
	resolver    CatalogueResolver
	synthesizer *Synthesizer
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewPipeline wires the components together.
func NewPipeline(extractor *Extractor, resolver CatalogueResolver, synthesizer *Synthesizer, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		extractor:   extractor,
		resolver:    resolver,
		synthesizer: synthesizer,
		metrics:     m,
		logger:      logger,
	}
}

// RunExtraction returns a Profile with the mandatory fields set, or a Failure.
func (p *Pipeline) RunExtraction(ctx context.Context, in Input) (contract.Profile, error) {
	profile, err := p.extractor.Extract(ctx, in)
	if err != nil {
		return contract.Profile{}, p.fail("extraction", err)
	}
	return profile, nil
}

// RunRecommendation resolves the catalogue and synthesizes recommendations. The model
// is never called when no catalogue is available.
func (p *Pipeline) RunRecommendation(ctx context.Context, in RecommendationInput) (contract.RecommendationSet, error) {
	profileText := contract.RenderFields(in.fields())
	if profileText == "" {
		return contract.RecommendationSet{}, p.fail("recommendation", contract.InvalidInput("profile or fields are required"))
	}

	catalogueText, err := p.resolver.Resolve(ctx, in.InlineCatalogue)
	if err != nil {
		return contract.RecommendationSet{}, p.fail("recommendation", err)
	}

	set, err := p.synthesizer.Synthesize(ctx, profileText, catalogueText)
	if err != nil {
		return contract.RecommendationSet{}, p.fail("recommendation", err)
	}
	return set, nil
}

func (p *Pipeline) fail(operation string, err error) *contract.Failure {
	failure := contract.FromUpstream(err)
	p.metrics.ObserveFailure(string(failure.Kind))
	p.logger.Warn("pipeline operation failed",
		zap.String("operation", operation),
		zap.String("kind", string(failure.Kind)),
		zap.Int("status", failure.Status),
		zap.Error(failure),
	)
	return failure
}

// HTTPStatus maps an error to the caller-facing status code.
func HTTPStatus(err error) int {
	failure, ok := contract.AsFailure(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch failure.Kind {
	case contract.KindInvalidInput:
		return http.StatusBadRequest
	case contract.KindQuotaExceeded:
		return http.StatusPaymentRequired
	case contract.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage is the single human-readable message shown to the caller.
func UserMessage(err error) string {
	failure, ok := contract.AsFailure(err)
	if !ok {
		return "Internal error."
	}
	switch failure.Kind {
	case contract.KindInvalidInput:
		return "Invalid input: " + failure.Message + "."
	case contract.KindCatalogueUnavailable:
		return "No programmes are available right now. Please try again later."
	case contract.KindRateLimited:
		return "Rate limit exceeded. Please try again in a moment."
	case contract.KindQuotaExceeded:
		return "AI usage limit reached. Please contact the operator to add credits."
	case contract.KindUpstreamFormatError:
		return "The AI service returned an unexpected response. Please try again."
	default:
		return "The AI service returned an error. Please try again."
	}
}

// ErrorBody is the caller-facing error object.
type ErrorBody struct {
	Error string `json:"error"`
}

// ErrorResponse returns the status code and body for err.
func ErrorResponse(err error) (int, ErrorBody) {
	return HTTPStatus(err), ErrorBody{Error: UserMessage(err)}
}
