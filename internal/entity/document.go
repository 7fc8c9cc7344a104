package entity

import (
	"github.com/google/uuid"
)

// RawDocument is an uploaded file plus its declared media type. It is
// immutable and scoped to a single pipeline run; nothing downstream keeps a
// reference to the bytes once OCR has produced an OcrResult.
type RawDocument struct {
	ID        uuid.UUID
	Filename  string
	MediaType string // application/pdf | image/jpeg | image/png
	Bytes     []byte
}

// NewRawDocument assigns a fresh document ID.
func NewRawDocument(filename, mediaType string, data []byte) RawDocument {
	return RawDocument{
		ID:        uuid.New(),
		Filename:  filename,
		MediaType: mediaType,
		Bytes:     data,
	}
}
