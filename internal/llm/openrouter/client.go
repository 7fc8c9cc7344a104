package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/llm"
)

// ExtractFields implements llm.FieldExtractor against an OpenRouter-compatible
// chat/completions endpoint. The primary model is tried first; transport and
// 5xx failures fall through to the fallback model. A schema violation earns
// exactly one corrective re-prompt before surfacing SchemaViolation.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.InvoiceFields, []byte, error) {
	rid := common.RequestIDFromContext(ctx)
	if rid == "" {
		rid = uuid.New().String()
	}
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"pages", len(req.Pages),
		"prep_confidence", req.PrepConfidence,
		"default_currency", req.DefaultCurrency,
	)

	schema := llm.BuildInvoiceJSONSchema()
	messages := []map[string]any{
		{"role": "system", "content": llm.BuildSystemPrompt(req)},
		{"role": "user", "content": llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."},
		{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
	}

	content, err := c.chat(ctx, messages)
	if err != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, nil, classifyTransport(ctx, err)
	}

	cleaned, vErr := c.sanitizeAndValidate(rid, schema, content)
	if vErr != nil {
		// one bounded corrective retry
		c.log.Warn("llm.extract.schema_retry", "req_id", rid, "violation", vErr.Error())
		retryMsgs := append(messages,
			map[string]any{"role": "assistant", "content": content},
			map[string]any{"role": "user", "content": llm.BuildCorrectivePrompt(vErr.Error())},
		)
		content, err = c.chat(ctx, retryMsgs)
		if err != nil {
			return llm.InvoiceFields{}, nil, classifyTransport(ctx, err)
		}
		cleaned, vErr = c.sanitizeAndValidate(rid, schema, content)
		if vErr != nil {
			c.log.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr, "content", content,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.InvoiceFields{}, []byte(content), fmt.Errorf("%w: %v", common.ErrSchemaViolation, vErr)
		}
	}

	var out llm.InvoiceFields
	if err := json.Unmarshal(cleaned, &out); err != nil {
		c.log.Error("llm.extract.unmarshal_failed", "req_id", rid, "error", err)
		return llm.InvoiceFields{}, cleaned, fmt.Errorf("%w: unmarshal fields: %v", common.ErrSchemaViolation, err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"invoice_number", out.InvoiceNumber,
		"issue_date", out.IssueDate,
		"grand_total", out.GrandTotal,
		"currency", out.CurrencyCode,
		"line_items", len(out.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, cleaned, nil
}

// sanitizeAndValidate recovers the JSON block, normalizes it, and validates
// against the schema. Returns the cleaned JSON or the first violation.
func (c *Client) sanitizeAndValidate(rid string, schema map[string]any, content string) ([]byte, error) {
	block, err := llm.ExtractJSONBlock(content)
	if err != nil {
		return nil, err
	}
	cleaned, dropped, err := llm.NormalizeAndSanitizeJSON([]byte(block), c.log)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		c.log.Warn("llm.extract.sanitize_applied", "req_id", rid, "dropped", dropped)
	}
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// chat runs one completion, falling back to the secondary model when the
// primary fails at the transport level or returns a server error.
func (c *Client) chat(ctx context.Context, messages []map[string]any) (string, error) {
	content, status, err := c.chatOnce(ctx, c.cfg.Model, messages)
	if err == nil {
		return content, nil
	}
	if c.cfg.FallbackModel == "" || !retriableStatus(status, err) || ctx.Err() != nil {
		return "", err
	}
	c.log.Warn("llm.chat.fallback", "from", c.cfg.Model, "to", c.cfg.FallbackModel, "error", err)
	content, _, err = c.chatOnce(ctx, c.cfg.FallbackModel, messages)
	return content, err
}

func (c *Client) chatOnce(ctx context.Context, model string, messages []map[string]any) (string, int, error) {
	body := map[string]any{
		"model":           model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages":        messages,
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.log)
	if err != nil {
		return "", status, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", status, fmt.Errorf("decode completion response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return "", status, fmt.Errorf("no choices in completion response")
	}
	return strings.TrimSpace(cc.Choices[0].Message.Content), status, nil
}

// retriableStatus: network failures (status 0) and 5xx may succeed on the
// fallback model; 4xx will not.
func retriableStatus(status int, err error) bool {
	if status == 0 {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return false
		}
		return true
	}
	return status >= 500
}

func classifyTransport(ctx context.Context, err error) error {
	var nerr net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &nerr) && nerr.Timeout()) {
		return fmt.Errorf("%w: %v", common.ErrExtractionTimeout, err)
	}
	return err
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
