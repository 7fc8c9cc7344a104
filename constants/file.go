package constants

import "strings"

// Format is the coarse source type of an uploaded document.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// AllowedExtensions holds the default allowed file extensions for invoice uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a Format; empty string means unsupported.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	default:
		return ""
	}
}

// MapMediaTypeToFormat maps a declared media type to a Format; empty string means unsupported.
func MapMediaTypeToFormat(mediaType string) Format {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/pdf":
		return PDF
	case "image/jpeg", "image/jpg", "image/png":
		return IMAGE
	default:
		return ""
	}
}
