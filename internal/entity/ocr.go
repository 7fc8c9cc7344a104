package entity

import (
	"time"

	"github.com/docuparse/invoice-pipeline/constants"
)

// OcrPage is one page of extracted text. A page the OCR capability could not
// process stays in the sequence with Failed set and Text empty; pages are
// never silently dropped.
type OcrPage struct {
	Index      int     `json:"index"` // 0-based, document order
	Text       string  `json:"text"`
	Confidence float32 `json:"confidence,omitempty"` // 0..1, 0 when unknown
	Failed     bool    `json:"failed,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// OcrResult is the ordered page sequence for one RawDocument.
type OcrResult struct {
	Pages      []OcrPage        `json:"pages"`
	SourceType constants.Format `json:"source_type"`
	Method     string           `json:"method"` // "pdf-text" | "pdf-ocr" | "image-ocr" | mixed "pdf-text+ocr"
	Language   string           `json:"language,omitempty"`
	Duration   time.Duration    `json:"-"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// Text concatenates page texts in document order, skipping failed pages.
func (r OcrResult) Text() string {
	var out string
	for _, p := range r.Pages {
		if p.Failed {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += p.Text
	}
	return out
}

// FailedPages returns the indexes of pages that could not be processed.
func (r OcrResult) FailedPages() []int {
	var idx []int
	for _, p := range r.Pages {
		if p.Failed {
			idx = append(idx, p.Index)
		}
	}
	return idx
}

// Confidence is the mean confidence over non-failed pages with a known score.
func (r OcrResult) Confidence() float32 {
	var sum float32
	var n int
	for _, p := range r.Pages {
		if p.Failed || p.Confidence <= 0 {
			continue
		}
		sum += p.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}
