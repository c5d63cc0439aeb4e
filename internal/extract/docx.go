package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/osoriodev/ragbase/internal/model"
)

// documentXML mirrors the parts of word/document.xml we care about.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// extractDOCX opens the bytes as a ZIP archive and pulls paragraph text out
// of word/document.xml, one paragraph per line, in document order.
func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx archive: %v", model.ErrExtractionFailed, err)
	}
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open document.xml: %v", model.ErrExtractionFailed, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: read document.xml: %v", model.ErrExtractionFailed, err)
		}
		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("%w: word/document.xml missing", model.ErrExtractionFailed)
}

func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("%w: parse document.xml: %v", model.ErrExtractionFailed, err)
	}
	var builder strings.Builder
	for _, para := range doc.Body.Paragraphs {
		for _, r := range para.Runs {
			for _, t := range r.Text {
				builder.WriteString(t.Content)
			}
		}
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
