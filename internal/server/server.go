// Package server exposes the pipeline over HTTP. Handlers stay thin:
// multipart decoding and status mapping here, everything else in the stages.
package server

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
	"github.com/docuparse/invoice-pipeline/internal/export"
	"github.com/docuparse/invoice-pipeline/internal/pipeline"
)

type Server struct {
	cfg    common.ServerConfig
	proc   *pipeline.Processor
	export *export.Service
	logger *slog.Logger
}

func New(cfg common.ServerConfig, proc *pipeline.Processor, exp *export.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, proc: proc, export: exp, logger: logger}
}

// Router wires the routes. gin release mode is the caller's choice.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())
	r.MaxMultipartMemory = int64(s.cfg.MaxUploadMB) << 20

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/invoices", s.handleInvoice)
	r.POST("/invoices/batch", s.handleBatch)
	return r
}

// Run blocks serving on the configured address.
func (s *Server) Run() error {
	s.logger.Info("server.listen", "addr", s.cfg.HTTPAddr)
	return s.Router().Run(s.cfg.HTTPAddr)
}

// handleInvoice parses one uploaded document and returns it in the requested
// format. JSON responses carry the findings inline; CSV and XLSX attachments
// report the finding count in a header so the export stays structural.
func (s *Server) handleInvoice(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	// reject unknown formats before the pipeline runs: OCR and the LLM call
	// are far too expensive to spend on a request that can only end in a 400
	rawFormat := c.DefaultQuery("format", string(constants.ExportJSON))
	if !constants.IsExportFormat(rawFormat) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported export format %q", rawFormat)})
		return
	}
	format := constants.ExportFormat(rawFormat)

	doc, err := readUpload(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := common.WithTimeout(c.Request.Context(), s.cfg.StageDeadline)
	defer cancel()
	ctx = common.WithDocumentID(ctx, doc.ID.String())

	res, err := s.proc.Process(ctx, doc)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if format == constants.ExportJSON {
		c.JSON(http.StatusOK, gin.H{
			"record":       res.Record,
			"findings":     res.Findings,
			"ocr_method":   res.Ocr.Method,
			"failed_pages": res.Ocr.FailedPages(),
		})
		return
	}

	out, err := s.export.Export(res.Record, format)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("X-Validation-Findings", fmt.Sprintf("%d", len(res.Findings)))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename+"."+string(format)))
	c.Data(http.StatusOK, contentType(format), out)
}

// handleBatch accepts multiple files under the 'files' field and runs them
// through the worker pool. The response is always JSON, indexed by upload
// order; per-document failures are reported in place.
func (s *Server) handleBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'files' is required"})
		return
	}

	docs := make([]entity.RawDocument, 0, len(files))
	for _, fh := range files {
		doc, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", fh.Filename, err)})
			return
		}
		docs = append(docs, doc)
	}

	ctx, cancel := common.WithTimeout(c.Request.Context(), s.cfg.StageDeadline*time.Duration(len(docs)))
	defer cancel()

	items := s.proc.ProcessBatch(ctx, docs, s.cfg.BatchWorkers)

	type batchEntry struct {
		Index    int                        `json:"index"`
		Filename string                     `json:"filename"`
		Record   *entity.InvoiceRecord      `json:"record,omitempty"`
		Findings []entity.ValidationFinding `json:"findings,omitempty"`
		Error    string                     `json:"error,omitempty"`
	}
	out := make([]batchEntry, 0, len(items))
	for _, it := range items {
		e := batchEntry{Index: it.Index, Filename: docs[it.Index].Filename}
		if it.Err != nil {
			e.Error = it.Err.Error()
		} else {
			rec := it.Result.Record
			e.Record = &rec
			e.Findings = it.Result.Findings
		}
		out = append(out, e)
	}
	c.JSON(http.StatusOK, gin.H{"documents": out})
}

func (s *Server) respondError(c *gin.Context, err error) {
	s.logger.Error("server.request_failed",
		"req_id", common.RequestIDFromContext(c.Request.Context()),
		"path", c.FullPath(),
		"err", err,
	)
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}

// httpStatus rides the transport-agnostic classification in common.StatusCode.
func httpStatus(err error) int {
	switch common.StatusCode(err) {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func readUpload(fh *multipart.FileHeader) (entity.RawDocument, error) {
	f, err := fh.Open()
	if err != nil {
		return entity.RawDocument{}, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return entity.RawDocument{}, fmt.Errorf("read upload: %w", err)
	}
	return entity.NewRawDocument(fh.Filename, fh.Header.Get("Content-Type"), data), nil
}

func contentType(format constants.ExportFormat) string {
	switch format {
	case constants.ExportCSV:
		return "text/csv"
	case constants.ExportXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}
