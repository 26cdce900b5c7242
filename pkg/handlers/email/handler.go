// Package email provides the email send step handler backed by the Resend API.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	resend "github.com/resend/resend-go/v2"
	"github.com/stepline/stepline/pkg/models"
	"github.com/stepline/stepline/pkg/protocol"
)

const defaultSender = "noreply@stepline.app"

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger.With("module", "email_handler"),
	}
}

func (h *Handler) ID() string {
	return models.StepTypeEmail
}

func (h *Handler) Name() string {
	return "Send Email"
}

func (h *Handler) Execute(ctx context.Context, config map[string]any, _ *models.ExecutionContext) protocol.Result {
	apiKey, _ := config["api_key"].(string)
	if apiKey == "" {
		return protocol.Failure("API key is required")
	}

	to, _ := config["to"].(string)
	if to == "" {
		return protocol.Failure("recipient email is required")
	}

	subject, _ := config["subject"].(string)
	if subject == "" {
		return protocol.Failure("email subject is required")
	}

	body, _ := config["body"].(string)
	if body == "" {
		return protocol.Failure("email body is required")
	}

	from, _ := config["from"].(string)
	if from == "" {
		from = defaultSender
	}

	client := resend.NewClient(apiKey)

	started := time.Now()

	sent, err := client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		Html:    formatBody(body),
	})

	duration := time.Since(started).Milliseconds()

	if err != nil {
		h.logger.ErrorContext(ctx, "Email send failed", "error", err, "to", to)

		return protocol.Result{
			Success:    false,
			Error:      fmt.Sprintf("email send failed: %s", err),
			DurationMS: duration,
		}
	}

	h.logger.InfoContext(ctx, "Email sent", "to", to, "message_id", sent.Id)

	return protocol.Result{
		Success: true,
		Output: map[string]any{
			"status":     "sent",
			"message_id": sent.Id,
			"to":         to,
			"subject":    subject,
		},
		DurationMS: duration,
	}
}

// formatBody converts plain-text newlines to HTML line breaks.
func formatBody(body string) string {
	return strings.ReplaceAll(body, "\n", "<br>")
}

func (h *Handler) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"api_key": map[string]any{
				"type":        "string",
				"description": "Resend API key. Supports templating.",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient email address.",
			},
			"subject": map[string]any{
				"type":        "string",
				"description": "Email subject. Supports templating.",
			},
			"body": map[string]any{
				"type":        "string",
				"format":      "code",
				"description": "Plain-text body; newlines become <br> tags.",
			},
			"from": map[string]any{
				"type":        "string",
				"description": "Sender address.",
				"default":     defaultSender,
			},
		},
		"required": []string{"api_key", "to", "subject", "body"},
	}
}
