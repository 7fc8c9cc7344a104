package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
	"github.com/docuparse/invoice-pipeline/internal/export"
	"github.com/docuparse/invoice-pipeline/internal/glossary"
	"github.com/docuparse/invoice-pipeline/internal/llm"
	"github.com/docuparse/invoice-pipeline/internal/pipeline"
	"github.com/docuparse/invoice-pipeline/internal/server"
	"github.com/docuparse/invoice-pipeline/internal/validate"
)

type stubTextExtractor struct {
	err   error
	calls atomic.Int32
}

func (s *stubTextExtractor) Extract(context.Context, entity.RawDocument) (entity.OcrResult, error) {
	s.calls.Add(1)
	if s.err != nil {
		return entity.OcrResult{}, s.err
	}
	return entity.OcrResult{
		SourceType: constants.PDF,
		Method:     "pdf-text",
		Pages:      []entity.OcrPage{{Index: 0, Text: "FACTURE F-2024-001", Confidence: 0.9}},
	}, nil
}

type stubFieldExtractor struct{}

func (stubFieldExtractor) ExtractFields(context.Context, llm.ExtractRequest) (llm.InvoiceFields, []byte, error) {
	return llm.InvoiceFields{
		InvoiceNumber: "F-2024-001",
		IssueDate:     "2024-03-15",
		SupplierName:  "ACME SARL",
		CustomerName:  "Client SA",
		LineItems: []llm.LineItemFields{
			{Description: "Widget", Quantity: "2", UnitPrice: "10.00", VATRate: "20", LineTotal: "20.00"},
		},
		Subtotal:     "20.00",
		VATTotal:     "4.00",
		GrandTotal:   "24.00",
		CurrencyCode: "EUR",
	}, []byte("{}"), nil
}

func newTestServer(t *testing.T, txErr error) (*gin.Engine, *stubTextExtractor) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	norm := glossary.NewNormalizer(glossary.Default(), 0.82, nil)
	valCfg, err := validate.NewConfig("0.01", []string{"0", "2.1", "5.5", "10", "20"})
	require.NoError(t, err)

	tx := &stubTextExtractor{err: txErr}
	ocrStage := pipeline.NewOCRStage(tx, nil)
	parseStage := pipeline.NewParseStage(nil, pipeline.ParseConfig{}, stubFieldExtractor{}, norm, validate.NewValidator(valCfg, nil))
	proc := pipeline.NewProcessor(nil, ocrStage, parseStage)

	srv := server.New(common.ServerConfig{
		HTTPAddr:      ":0",
		MaxUploadMB:   8,
		BatchWorkers:  2,
		StageDeadline: 30 * time.Second,
	}, proc, export.NewService(nil), nil)
	return srv.Router(), tx
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	r, _ := newTestServer(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostInvoiceJSON(t *testing.T) {
	r, _ := newTestServer(t, nil)

	body, ct := multipartBody(t, "file", "facture.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/invoices", body)
	req.Header.Set("Content-Type", ct)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Record   entity.InvoiceRecord       `json:"record"`
		Findings []entity.ValidationFinding `json:"findings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "F-2024-001", resp.Record.InvoiceNumber)
	assert.Empty(t, resp.Findings)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestPostInvoiceCSVAttachment(t *testing.T) {
	r, _ := newTestServer(t, nil)

	body, ct := multipartBody(t, "file", "facture.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/invoices?format=csv", body)
	req.Header.Set("Content-Type", ct)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-Validation-Findings"))
	assert.Contains(t, w.Body.String(), "F-2024-001")
}

// An unknown format must be rejected before any extraction work starts, not
// after the document has already been through OCR and the model.
func TestPostInvoiceUnsupportedExportFormat(t *testing.T) {
	r, tx := newTestServer(t, nil)

	body, ct := multipartBody(t, "file", "facture.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/invoices?format=yaml", body)
	req.Header.Set("Content-Type", ct)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "yaml")
	assert.Zero(t, tx.calls.Load(), "pipeline must not run for a rejected format")
}

func TestPostInvoiceUnsupportedMediaType(t *testing.T) {
	r, _ := newTestServer(t, common.ErrUnsupportedFormat)

	body, ct := multipartBody(t, "file", "notes.txt", []byte("plain text"))
	req := httptest.NewRequest(http.MethodPost, "/invoices", body)
	req.Header.Set("Content-Type", ct)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostInvoiceMissingFile(t *testing.T) {
	r, _ := newTestServer(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/invoices", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostBatch(t *testing.T) {
	r, _ := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"a.pdf", "b.pdf"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/invoices/batch", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Documents []struct {
			Index    int                   `json:"index"`
			Filename string                `json:"filename"`
			Record   *entity.InvoiceRecord `json:"record"`
			Error    string                `json:"error"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 2)
	for i, d := range resp.Documents {
		assert.Equal(t, i, d.Index)
		assert.Empty(t, d.Error)
		require.NotNil(t, d.Record)
		assert.Equal(t, "F-2024-001", d.Record.InvoiceNumber)
	}
}
