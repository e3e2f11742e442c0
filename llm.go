package ankigen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// CompletionRequest is one call to the completion service.
type CompletionRequest struct {
	Model       string
	System      string // instruction scaffold; optional
	Prompt      string
	Temperature float32
	MaxTokens   int32 // 0 → service default
	ForceJSON   bool  // request a JSON-object response mode
}

// Completion is the service's answer plus its token usage.
type Completion struct {
	Content string
	Usage   TokenStats
}

// Invoker abstraction allows mocking, retrying, and caching of completion
// calls.
type Invoker interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// GenAIInvoker implements Invoker using the Gemini API via Google GenAI.
type GenAIInvoker struct {
	client *genai.Client
	log    *slog.Logger
}

// NewGenAIInvoker builds an invoker from an API key.
func NewGenAIInvoker(ctx context.Context, apiKey string, log *slog.Logger) (*GenAIInvoker, error) {
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}
	if log == nil {
		log = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GenAIInvoker{client: client, log: log}, nil
}

// NewGenAIInvokerFromClient wraps an existing client.
func NewGenAIInvokerFromClient(client *genai.Client, log *slog.Logger) *GenAIInvoker {
	if log == nil {
		log = slog.Default()
	}
	return &GenAIInvoker{client: client, log: log}
}

// Complete sends one prompt and returns the text of the first candidate.
// Service failures are wrapped in TransportError so the retry policy treats
// them as transient; an answer with no usable text is reported as a
// malformed response.
func (v *GenAIInvoker) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	if v.client == nil {
		return nil, errors.New("client not initialized")
	}
	if req.Model == "" {
		return nil, ErrModelMissing
	}

	config := &genai.GenerateContentConfig{}
	if req.ForceJSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		t := req.Temperature
		config.Temperature = &t
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(req.Prompt)}, genai.RoleUser),
	}

	v.log.Debug("generating content", "model", req.Model, "prompt_length", len(req.Prompt), "force_json", req.ForceJSON)

	resp, err := v.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, &TransportError{Op: "generate content", Err: err}
	}
	if len(resp.Candidates) == 0 {
		return nil, &MalformedResponseError{Reason: "no candidates in response"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, &MalformedResponseError{Reason: "no parts in candidate content"}
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := sb.String()
	if text == "" {
		return nil, &MalformedResponseError{Reason: "no text in candidate content"}
	}

	var usage TokenStats
	if resp.UsageMetadata != nil {
		usage.Input = int(resp.UsageMetadata.PromptTokenCount)
		usage.Output = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	v.log.Debug("generated content", "model", req.Model, "response_length", len(text),
		"input_tokens", usage.Input, "output_tokens", usage.Output)

	return &Completion{Content: text, Usage: usage}, nil
}
