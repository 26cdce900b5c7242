// Package completion provides the chat-completion step handler.
package completion

import (
	"context"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/protocol"
)

const (
	defaultModel       = "gpt-3.5-turbo"
	defaultMaxTokens   = 1000
	defaultTemperature = 1.0
)

// modelPricing is the price per 1000 tokens, input and output priced
// separately. Unknown models fall back to the default model's tier.
type modelPricing struct {
	Input  float64
	Output float64
}

var pricing = map[string]modelPricing{
	"gpt-4":         {Input: 0.03, Output: 0.06},
	"gpt-4-turbo":   {Input: 0.01, Output: 0.03},
	"gpt-4o":        {Input: 0.005, Output: 0.015},
	"gpt-4o-mini":   {Input: 0.00015, Output: 0.0006},
	"gpt-3.5-turbo": {Input: 0.001, Output: 0.002},
}

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger.With("module", "completion_handler"),
	}
}

func (h *Handler) ID() string {
	return models.StepTypeCompletion
}

func (h *Handler) Name() string {
	return "Chat Completion"
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, _ *models.ExecutionContext) protocol.Result {
	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		return protocol.Failure("API key is required")
	}

	prompt, _ := config["prompt"].(string)
	if prompt == "" {
		return protocol.Failure("prompt is required")
	}

	model, _ := config["model"].(string)
	if model == "" {
		model = defaultModel
	}

	maxTokens := defaultMaxTokens
	if value, ok := config["max_tokens"].(float64); ok {
		maxTokens = int(value)
	}

	temperature := defaultTemperature
	if value, ok := config["temperature"].(float64); ok {
		temperature = value
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)

	if systemPrompt, _ := config["system_prompt"].(string); systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL, _ := config["base_url"].(string); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	client := openai.NewClientWithConfig(clientConfig)

	started := time.Now()

	response, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	})

	duration := time.Since(started).Milliseconds()

	if err != nil {
		h.logger.ErrorContext(ctx, "Chat completion request failed", "error", err)

		return protocol.Result{Success: false, Error: err.Error(), DurationMS: duration}
	}

	if len(response.Choices) == 0 || response.Choices[0].Message.Content == "" {
		return protocol.Result{
			Success:    false,
			Error:      "no response from completion provider",
			DurationMS: duration,
		}
	}

	inputTokens := response.Usage.PromptTokens
	outputTokens := response.Usage.CompletionTokens

	h.logger.InfoContext(ctx, "Chat completion finished",
		"model", response.Model,
		"total_tokens", response.Usage.TotalTokens,
	)

	return protocol.Result{
		Success: true,
		Output: map[string]any{
			"content": response.Choices[0].Message.Content,
			"model":   response.Model,
			"tokens": map[string]any{
				"input":  inputTokens,
				"output": outputTokens,
				"total":  response.Usage.TotalTokens,
			},
			"cost":          estimateCost(model, inputTokens, outputTokens),
			"finish_reason": string(response.Choices[0].FinishReason),
			"response_id":   response.ID,
		},
		DurationMS: duration,
	}
}

func estimateCost(model string, inputTokens, outputTokens int) float64 {
	tier, ok := pricing[model]
	if !ok {
		tier = pricing[defaultModel]
	}

	return (float64(inputTokens)/1000)*tier.Input + (float64(outputTokens)/1000)*tier.Output
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"api_key": map[string]any{
				"type":        "string",
				"description": "API key for the completion provider. Supports templating.",
			},
			"prompt": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "User prompt sent to the model. Supports templating with step outputs.",
				"examples": []string{
					"Summarize this payload: {{trigger.body}}",
					"Classify the sentiment of: {{step1.output.content}}",
				},
			},
			"system_prompt": map[string]any{
				"type":        "string",
				"description": "Optional system prompt prepended to the conversation.",
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Model identifier.",
				"default":     defaultModel,
			},
			"max_tokens": map[string]any{
				"type":        "integer",
				"description": "Maximum tokens to generate.",
				"default":     defaultMaxTokens,
			},
			"temperature": map[string]any{
				"type":        "number",
				"description": "Sampling temperature.",
				"default":     defaultTemperature,
			},
			"base_url": map[string]any{
				"type":        "string",
				"description": "Override the provider API base URL.",
			},
		},
		"required": []string{"api_key", "prompt"},
	}
}
