// Package extract turns raw file bytes into plain text. File types are
// extension-derived and lower-cased by the caller; anything the package does
// not understand fails fast with model.ErrUnsupportedFileType so the document
// processor can reject a document before marking it in progress.
package extract

import (
	"fmt"
	"strings"

	"github.com/osoriodev/ragbase/internal/model"
)

// Extractor converts file bytes of a declared type into plain text.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Supported reports whether the declared file type can be extracted. The
// processor consults this before any status transition.
func (e *Extractor) Supported(fileType string) bool {
	switch strings.ToLower(fileType) {
	case "pdf", "docx", "doc":
		return true
	default:
		return false
	}
}

// Extract returns the plain text for data of the declared file type.
func (e *Extractor) Extract(data []byte, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return extractPDF(data)
	case "docx", "doc":
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", model.ErrUnsupportedFileType, fileType)
	}
}
