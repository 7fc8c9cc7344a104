package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

// extractPDF prefers the embedded text layer; pages whose layer is empty or
// below the coverage threshold are rasterized and OCRed individually. A page
// that fails both ways stays in the result flagged as failed.
func (e *Extractor) extractPDF(ctx context.Context, doc entity.RawDocument) (entity.OcrResult, error) {
	res := entity.OcrResult{
		SourceType: constants.PDF,
		Method:     "pdf-text",
		Language:   e.cfg.TesseractLang,
	}

	texts, layerErr := textLayerPages(doc.Bytes)
	if layerErr != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("text layer unreadable: %v", layerErr))
	}

	if e.cfg.MaxPages > 0 && len(texts) > e.cfg.MaxPages {
		texts = texts[:e.cfg.MaxPages]
		res.Warnings = append(res.Warnings, fmt.Sprintf("truncated to %d pages", e.cfg.MaxPages))
	}

	var deficient []int
	for i, t := range texts {
		t = Normalize(t)
		page := entity.OcrPage{Index: i, Text: t}
		if len(strings.TrimSpace(t)) < e.cfg.CoverageMinChars {
			deficient = append(deficient, i)
		} else {
			page.Confidence = heuristicConfidence(t)
		}
		res.Pages = append(res.Pages, page)
	}

	// No text layer at all: page count comes from rasterization below.
	needOCR := layerErr != nil || len(texts) == 0 || len(deficient) > 0
	if !needOCR {
		return res, nil
	}

	images, cleanup, err := e.rasterize(ctx, doc.Bytes)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		if len(res.Pages) == 0 {
			return res, fmt.Errorf("%w: %v", common.ErrExtractionFailure, err)
		}
		// keep the text-layer pages we have; flag the deficient ones
		for _, i := range deficient {
			res.Pages[i].Failed = true
			res.Pages[i].Error = fmt.Sprintf("rasterize: %v", err)
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("rasterize failed: %v", err))
		return res, nil
	}

	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		images = images[:e.cfg.MaxPages]
	}

	// Grow the page list when rasterization found pages the layer did not.
	for len(res.Pages) < len(images) {
		i := len(res.Pages)
		res.Pages = append(res.Pages, entity.OcrPage{Index: i})
		deficient = append(deficient, i)
	}

	res.Method = "pdf-ocr"
	if len(deficient) < len(res.Pages) {
		res.Method = "pdf-text+ocr"
	}

	failed := 0
	for _, i := range deficient {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if i >= len(images) {
			res.Pages[i].Failed = true
			res.Pages[i].Error = "page not rasterized"
			failed++
			continue
		}
		txt, conf, warns, ocrErr := e.ocrImageFile(ctx, images[i])
		res.Warnings = append(res.Warnings, warns...)
		if ocrErr != nil {
			res.Pages[i].Failed = true
			res.Pages[i].Error = ocrErr.Error()
			failed++
			continue
		}
		res.Pages[i].Text = Normalize(txt)
		res.Pages[i].Confidence = conf
		res.Pages[i].Failed = false
		res.Pages[i].Error = ""
	}

	if failed > 0 && failed == len(res.Pages) {
		return res, fmt.Errorf("%w: all %d pages failed", common.ErrExtractionFailure, failed)
	}
	return res, nil
}

// textLayerPages reads the embedded text of every page. The pdf package can
// panic on malformed files, so the whole read is fenced.
func textLayerPages(data []byte) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := r.NumPage()
	texts = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		txt, terr := p.GetPlainText(nil)
		if terr != nil {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, txt)
	}
	return texts, nil
}

// rasterize renders every page to PNG with pdftoppm and returns the sorted
// image paths. cleanup removes the temp dir and is non-nil even on error.
func (e *Extractor) rasterize(ctx context.Context, data []byte) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "ip-pp-*")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	in := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, cleanup, err
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return nil, cleanup, fmt.Errorf("pdftoppm: %v: %s", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, cleanup, fmt.Errorf("pdftoppm produced no images")
	}
	return matches, cleanup, nil
}
