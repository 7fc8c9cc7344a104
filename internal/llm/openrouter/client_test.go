package openrouter_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
	"github.com/docuparse/invoice-pipeline/internal/llm"
	"github.com/docuparse/invoice-pipeline/internal/llm/openrouter"
)

const goodInvoiceJSON = `{
	"invoice_number": "F-2024-001",
	"issue_date": "2024-03-15",
	"supplier_name": "ACME SARL",
	"line_items": [
		{"description": "Widget", "quantity": "2", "unit_price": "10.00", "vat_rate": "20", "line_total": "20.00"}
	],
	"subtotal": "20.00",
	"vat_total": "4.00",
	"grand_total": "24.00",
	"currency_code": "EUR"
}`

func completionResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func testRequest() llm.ExtractRequest {
	return llm.ExtractRequest{
		Pages: []entity.OcrPage{
			{Index: 0, Text: "FACTURE F-2024-001 ACME SARL total 24,00 €", Confidence: 0.9},
		},
		FilenameHint:    "facture.pdf",
		DefaultCurrency: "EUR",
	}
}

func newTestClient(url string, fallback string) *openrouter.Client {
	return openrouter.NewClient(openrouter.Config{
		APIKey:        "test-key",
		BaseURL:       url,
		Model:         "primary/model",
		FallbackModel: fallback,
		Timeout:       5 * time.Second,
	}, nil)
}

func TestExtractFieldsHappyPath(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(completionResponse(goodInvoiceJSON)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	fields, raw, err := c.ExtractFields(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.NotEmpty(t, raw)
	assert.Equal(t, "F-2024-001", fields.InvoiceNumber)
	assert.Equal(t, "ACME SARL", fields.SupplierName)
	assert.Equal(t, "24.00", fields.GrandTotal)
	require.Len(t, fields.LineItems, 1)
	assert.Equal(t, "Widget", fields.LineItems[0].Description)
}

func TestExtractFieldsCorrectiveRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if n == 1 {
			// first answer violates the schema: non-decimal grand_total
			bad := `{"invoice_number":"F-1","issue_date":"2024-03-15","supplier_name":"ACME","line_items":[],"grand_total":"twenty","currency_code":"EUR"}`
			_, _ = w.Write([]byte(completionResponse(bad)))
			return
		}
		// corrective prompt arrives with the previous assistant message attached
		var body struct {
			Messages []map[string]any `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Greater(t, len(body.Messages), 3)
		_, _ = w.Write([]byte(completionResponse(goodInvoiceJSON)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	fields, _, err := c.ExtractFields(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "F-2024-001", fields.InvoiceNumber)
}

func TestExtractFieldsSchemaViolationAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bad := `{"invoice_number":"F-1","grand_total":"twenty"}`
		_, _ = w.Write([]byte(completionResponse(bad)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, raw, err := c.ExtractFields(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrSchemaViolation))
	assert.NotEmpty(t, raw) // offending output survives for audit
}

func TestExtractFieldsFallbackModelOn5xx(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		models = append(models, body.Model)
		if body.Model == "primary/model" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(completionResponse(goodInvoiceJSON)))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "fallback/model")
	fields, _, err := c.ExtractFields(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"primary/model", "fallback/model"}, models)
	assert.Equal(t, "F-2024-001", fields.InvoiceNumber)
}

func TestExtractFieldsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := openrouter.NewClient(openrouter.Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "primary/model",
		Timeout: 50 * time.Millisecond,
	}, nil)

	_, _, err := c.ExtractFields(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrExtractionTimeout))
}
