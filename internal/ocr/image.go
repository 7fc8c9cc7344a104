package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/docuparse/invoice-pipeline/constants"
	"github.com/docuparse/invoice-pipeline/internal/common"
	"github.com/docuparse/invoice-pipeline/internal/entity"
)

// extractImage treats the whole image as a single page.
func (e *Extractor) extractImage(ctx context.Context, doc entity.RawDocument) (entity.OcrResult, error) {
	res := entity.OcrResult{
		SourceType: constants.IMAGE,
		Method:     "image-ocr",
		Language:   e.cfg.TesseractLang,
	}

	path, cleanup, err := e.preprocessImage(doc.Bytes)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return res, fmt.Errorf("%w: decode image: %v", common.ErrExtractionFailure, err)
	}

	txt, conf, warns, err := e.ocrImageFile(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		// single page, so a page failure is a document failure
		res.Pages = []entity.OcrPage{{Index: 0, Failed: true, Error: err.Error()}}
		return res, fmt.Errorf("%w: %v", common.ErrExtractionFailure, err)
	}

	res.Pages = []entity.OcrPage{{Index: 0, Text: Normalize(txt), Confidence: conf}}
	return res, nil
}

// preprocessImage grayscales and bumps contrast before OCR, writing the
// result to a temp PNG for tesseract.
func (e *Extractor) preprocessImage(data []byte) (string, func(), error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, err
	}
	img = imaging.AdjustContrast(imaging.Grayscale(img), 10)

	tmpDir, err := os.MkdirTemp("", "ip-img-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	out := filepath.Join(tmpDir, "page.png")
	if err := imaging.Save(img, out); err != nil {
		return "", cleanup, err
	}
	return out, cleanup, nil
}

// ocrImageFile runs tesseract on one page image and blends TSV word
// confidence with the text-shape heuristic.
func (e *Extractor) ocrImageFile(ctx context.Context, path string) (string, float32, []string, error) {
	txt, warns, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return "", 0, warns, err
	}

	var ocrConf float32
	if e.cfg.EnableTSVConfidence {
		if c, w, err2 := e.tesseractTSVConfidence(ctx, path); err2 == nil {
			ocrConf = c
			warns = append(warns, w...)
		} else {
			warns = append(warns, err2.Error())
		}
	}
	heurConf := heuristicConfidence(txt)

	// blend: weight OCR higher if present
	var conf float32
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	} else {
		conf = heurConf
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return txt, conf, warns, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	// minor cleanup of obvious line noise
	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float32, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	// TSV output
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, []string{string(errb)}, fmt.Errorf("tesseract TSV: %w", err)
	}
	lines := strings.Split(string(out), "\n")
	// conf column is the last; header line includes "conf"
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[len(cols)-1]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil, nil
	}
	mean := sum / n // 0..100
	return float32(mean / 100.0), nil, nil
}
