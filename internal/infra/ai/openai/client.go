package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/leafdoctor/internal/domain/ai"
	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
	"github.com/bryanwahyu/leafdoctor/internal/infra/ai/prompt"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 2048
)

type Config struct {
	APIKey    string
	BaseURL   string // empty means api.openai.com; set for compatible gateways
	Model     string
	MaxTokens int
	// HTTPClient is optional; tests swap its transport.
	HTTPClient *http.Client
}

// Client sends leaf images to an OpenAI-compatible chat completions endpoint.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{api: openai.NewClientWithConfig(oc), model: model, maxTokens: maxTokens}
}

// Analyze makes exactly one request. Every failure is returned as
// *diagnosis.AnalysisError; HTTP 429 additionally matches ai.ErrQuotaExceeded.
func (c *Client) Analyze(ctx context.Context, image string) (*diagnosis.AnalysisResult, error) {
	schema := prompt.ResultSchema()
	req := openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   prompt.SchemaName,
				Schema: &schema,
			},
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:image/jpeg;base64," + diagnosis.Payload(image),
							Detail: openai.ImageURLDetailHigh,
						},
					},
					{Type: openai.ChatMessagePartTypeText, Text: prompt.Instruction},
				},
			},
		},
	}
	// reasoning models only accept max_completion_tokens
	if isReasoningModel(c.model) {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, diagnosis.NewAnalysisError(classify(err))
	}
	if len(resp.Choices) == 0 {
		return nil, diagnosis.NewAnalysisError(errors.New("response has no choices"))
	}

	res, err := prompt.ParseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, diagnosis.NewAnalysisError(err)
	}
	return res, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func classify(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w", ai.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("chat completion: %w", err)
}
