// Package provider implements the text-generation service against the OpenAI
// Responses API.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/theimaginaryfoundation/mood-reflect/reflection"
)

// OpenAIGenerator satisfies reflection.TextGenerator using the Responses API
// with strict structured outputs.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

var _ reflection.TextGenerator = (*OpenAIGenerator)(nil)

func NewOpenAIGenerator(apiKey, model string) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("NewOpenAIGenerator: api key is empty")
	}
	if model == "" {
		return nil, errors.New("NewOpenAIGenerator: model is empty")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIGenerator{client: &client, model: model}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req reflection.GenerateRequest) (string, error) {
	if g.client == nil {
		return "", errors.New("OpenAIGenerator: client is nil")
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2000
	}

	params := responses.ResponseNewParams{
		Model:           g.model,
		MaxOutputTokens: openai.Int(maxTokens),
		Instructions:    openai.String(req.SystemPrompt),
		Temperature:     openai.Float(req.Temperature),
		ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(req.Prompt, responses.EasyInputMessageRoleUser),
			},
		},
	}

	if req.Format.Schema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        req.Format.Name,
					Schema:      req.Format.Schema,
					Strict:      openai.Bool(true),
					Description: openai.String(req.Format.Name + " JSON"),
					Type:        "json_schema",
				},
			},
		}
	}

	resp, err := callWithRetry(ctx, g.client, params)
	if err != nil {
		return "", fmt.Errorf("%s: %w", req.Operation, err)
	}
	return resp.OutputText(), nil
}

func callWithRetry(ctx context.Context, client *openai.Client, params responses.ResponseNewParams) (*responses.Response, error) {
	const maxRetries = 3
	rateLimitWaitTimes := []time.Duration{65 * time.Second, 100 * time.Second, 135 * time.Second}
	serverErrorWaitTimes := []time.Duration{5 * time.Second, 30 * time.Second, 60 * time.Second}

	for attempt := 0; attempt < maxRetries; attempt++ {
		resp, err := client.Responses.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) {
				if attempt < maxRetries-1 {
					time.Sleep(rateLimitWaitTimes[attempt])
					continue
				}
			} else if isServerError(err) {
				if attempt < maxRetries-1 {
					time.Sleep(serverErrorWaitTimes[attempt])
					continue
				}
			}
			return nil, err
		}
		return resp, nil
	}
	return nil, fmt.Errorf("failed after %d attempts due to OpenAI API issues", maxRetries)
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
