package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/programme-advisor/internal/ai"
	"github.com/spigell/programme-advisor/internal/utils"
)

const (
	provider            = "gemini"
	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200
	baseRetryDelay      = 500 * time.Millisecond
)

// wait is swapped in tests to skip real backoff delays.
var wait = utils.WaitFor

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return c.chats.Create(ctx, model, config, history)
}

// Options tune the generator. Zero values fall back to defaults.
type Options struct {
	Model   string
	BaseURL string
	// MaxRetries is the total number of attempts for 5xx responses; 1 disables retries.
	MaxRetries   int
	MaxLogLength int
	Temperature  *float32
}

// Generator implements ai.Model on top of the Google GenAI SDK.
type Generator struct {
	chats       chatCreator
	model       string
	maxRetries  int
	maxLogLen   int
	temperature *float32
	logger      *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, opts Options, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(genaiChats{chats: client.Chats}, opts, logger), nil
}

func newGenerator(chats chatCreator, opts Options, logger *zap.Logger) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		chats:       chats,
		model:       model,
		maxRetries:  maxRetries,
		maxLogLen:   maxLogLen,
		temperature: opts.Temperature,
		logger:      logger,
	}
}

// Generate sends one system+user exchange. When req.Function is set the model is
// forced to answer through that function only.
func (g *Generator) Generate(ctx context.Context, req *ai.Request) (*ai.Response, error) {
	if g == nil || g.chats == nil {
		return nil, errors.New("gemini generator is not initialized")
	}
	if req == nil || len(req.Parts) == 0 {
		return nil, errors.New("request must contain at least one part")
	}

	config := g.buildConfig(req)
	parts := toParts(req.Parts)

	g.logger.Debug("gemini generate content request",
		zap.Int("system_length", utf8.RuneCountInString(req.System)),
		zap.Int("parts", len(parts)),
		zap.String("system_preview", utils.TruncateForLog(req.System, g.maxLogLen)),
		zap.Bool("forced_function", req.Function != nil),
	)

	var resp *genai.GenerateContentResponse
	for attempt := 1; ; attempt++ {
		var err error
		resp, err = g.send(ctx, config, parts)
		if err == nil {
			break
		}

		var statusErr *ai.StatusError
		retryable := errors.As(err, &statusErr) && statusErr.Temporary()
		if !retryable || attempt >= g.maxRetries {
			return nil, err
		}

		delay := baseRetryDelay * time.Duration(1<<(attempt-1))
		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxRetries),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return nil, fmt.Errorf("waiting for retry: %w", err)
		}
	}

	out := fromResponse(resp)

	g.logger.Debug("gemini generate content response",
		zap.Bool("function_call", out.FunctionCall != nil),
		zap.Int("response_length", utf8.RuneCountInString(out.Text)),
		zap.String("response_preview", utils.TruncateForLog(out.Text, g.maxLogLen)),
	)

	return out, nil
}

func (g *Generator) send(ctx context.Context, config *genai.GenerateContentConfig, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return nil, fmt.Errorf("create chat: %w", convertError(err))
	}

	resp, err := chat.SendMessage(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", convertError(err))
	}

	return resp, nil
}

func (g *Generator) buildConfig(req *ai.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{Temperature: g.temperature}

	if system := strings.TrimSpace(req.System); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	if fn := req.Function; fn != nil {
		config.Tools = []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:                 fn.Name,
				Description:          fn.Description,
				ParametersJsonSchema: fn.Parameters,
			}},
		}}
		config.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{fn.Name},
			},
		}
	}

	return config
}

func toParts(in []ai.Part) []genai.Part {
	parts := make([]genai.Part, 0, len(in))
	for _, p := range in {
		if len(p.Data) > 0 {
			parts = append(parts, genai.Part{InlineData: &genai.Blob{Data: p.Data, MIMEType: p.MIMEType}})
			continue
		}
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, genai.Part{Text: p.Text})
	}
	return parts
}

// fromResponse keeps the first function call and joins every text part.
func fromResponse(resp *genai.GenerateContentResponse) *ai.Response {
	out := &ai.Response{}
	if resp == nil {
		return out
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil && out.FunctionCall == nil {
				out.FunctionCall = &ai.FunctionCall{Name: part.FunctionCall.Name, Args: part.FunctionCall.Args}
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" || part.Thought {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	out.Text = builder.String()
	return out
}

// convertError maps genai API errors onto ai.StatusError so callers can classify them.
// The Gemini API reports an exhausted quota as 429 RESOURCE_EXHAUSTED, never as 402,
// so for this backend quota exhaustion surfaces as rate limiting.
func convertError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ai.StatusError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &ai.StatusError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message}
	}

	return err
}

// Provider returns the provider identifier used in logs and metrics.
func (g *Generator) Provider() string {
	return provider
}

// Name returns the configured model name.
func (g *Generator) Name() string {
	if g == nil {
		return ""
	}
	return g.model
}
