// Package extract turns uploaded document files into plain text for the
// ingest pipeline.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/agrimentor/agrimentor/internal/domain"
	"github.com/dslipak/pdf"
)

// ErrUnsupportedFileType is returned for file types the extractor cannot read.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Extractor converts raw file bytes into plain text by file type.
type Extractor struct{}

// NewExtractor creates a new Extractor instance
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the plain text of a document. Extraction failures
// (corrupt or encrypted files) are reported as errors, never panics.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileType domain.FileType) (string, error) {
	switch fileType {
	case domain.FileTypeTXT:
		return extractPlainText(data)
	case domain.FileTypePDF:
		return extractPDF(data)
	case domain.FileTypeDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, fileType)
	}
}

func extractPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("text file is not valid UTF-8")
	}
	return string(data), nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return b.String(), nil
}

// extractDOCX reads word/document.xml out of the DOCX zip container and
// collects text runs, inserting a blank line per paragraph.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX container: %w", err)
	}

	var docXML io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			docXML, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("failed to open DOCX document part: %w", err)
			}
			break
		}
	}
	if docXML == nil {
		return "", errors.New("DOCX container has no document part")
	}
	defer docXML.Close()

	decoder := xml.NewDecoder(docXML)
	var b strings.Builder
	var inText bool
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse DOCX document part: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return b.String(), nil
}
