// Package httpcall provides the outbound HTTP request step handler.
package httpcall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/protocol"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "stepline/1.0"
)

type Handler struct {
	logger *slog.Logger
	client *http.Client
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger.With("module", "http_handler"),
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func (h *Handler) ID() string {
	return models.StepTypeHTTP
}

func (h *Handler) Name() string {
	return "HTTP Request"
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, _ *models.ExecutionContext) protocol.Result {
	targetURL, _ := config["url"].(string)
	if targetURL == "" {
		return protocol.Failure("URL is required")
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodGet
	}

	method = strings.ToUpper(method)

	headers := parseHeaders(config["headers"])

	body, contentType, err := buildBody(method, config["body"])
	if err != nil {
		return protocol.Failure(err.Error())
	}

	request, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return protocol.Failure(fmt.Sprintf("failed to create request: %s", err))
	}

	request.Header.Set("User-Agent", userAgent)

	for key, value := range headers {
		request.Header.Set(key, value)
	}

	if contentType != "" && request.Header.Get("Content-Type") == "" {
		request.Header.Set("Content-Type", contentType)
	}

	h.logger.InfoContext(ctx, "Issuing HTTP request", "method", method, "url", targetURL)

	started := time.Now()

	response, err := h.client.Do(request)

	duration := time.Since(started).Milliseconds()

	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return protocol.Result{Success: false, Error: "request timed out", DurationMS: duration}
		}

		return protocol.Result{Success: false, Error: err.Error(), DurationMS: duration}
	}

	defer func() {
		_ = response.Body.Close()
	}()

	responseType, _ := config["response_type"].(string)

	responseBody, err := readBody(response, responseType)
	if err != nil {
		return protocol.Result{Success: false, Error: err.Error(), DurationMS: duration}
	}

	ok := response.StatusCode >= 200 && response.StatusCode < 300

	result := protocol.Result{
		Success: ok,
		Output: map[string]any{
			"status":      response.StatusCode,
			"status_text": http.StatusText(response.StatusCode),
			"headers":     flattenHeaders(response.Header),
			"body":        responseBody,
			"ok":          ok,
		},
		DurationMS: duration,
	}

	if !ok {
		result.Error = fmt.Sprintf("HTTP %d: %s", response.StatusCode, http.StatusText(response.StatusCode))
	}

	return result
}

func parseHeaders(raw any) map[string]string {
	headers := make(map[string]string)

	headersMap, ok := raw.(map[string]any)
	if !ok {
		return headers
	}

	for key, value := range headersMap {
		if strVal, ok := value.(string); ok {
			headers[key] = strVal
		}
	}

	return headers
}

// buildBody serializes the configured body for methods that carry one. Object
// bodies are JSON-encoded and get a JSON content type unless the step sets
// its own.
func buildBody(method string, raw any) (io.Reader, string, error) {
	if raw == nil {
		return nil, "", nil
	}

	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return nil, "", nil
	}

	if str, ok := raw.(string); ok {
		return strings.NewReader(str), "", nil
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize request body: %w", err)
	}

	return strings.NewReader(string(encoded)), "application/json", nil
}

// readBody parses the response as JSON when the content type says so, falling
// back to the raw text on parse failure. response_type "text" forces text.
func readBody(response *http.Response, responseType string) (any, error) {
	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	contentType := response.Header.Get("Content-Type")

	if responseType == "text" || !strings.Contains(contentType, "application/json") {
		return string(raw), nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw), nil
	}

	return parsed, nil
}

func flattenHeaders(header http.Header) map[string]any {
	flat := make(map[string]any, len(header))
	for key, values := range header {
		flat[key] = strings.Join(values, ", ")
	}

	return flat
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to send the request to. Supports templating with step outputs.",
				"examples": []string{
					"https://api.example.com/users",
					"https://api.example.com/users/{{step1.output.body.id}}",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"description": "HTTP method to use.",
				"default":     "GET",
				"enum":        []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Request headers. Values support templating.",
				"additionalProperties": map[string]any{
					"type": "string",
				},
			},
			"body": map[string]any{
				"description": "Request body; objects are serialized to JSON.",
			},
			"response_type": map[string]any{
				"type":        "string",
				"description": "Force the response body to be kept as text.",
				"enum":        []string{"json", "text"},
			},
		},
		"required": []string{"url"},
	}
}
