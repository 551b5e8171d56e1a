// Package ingest turns uploaded assignment files into stored text and hands
// them to the analysis workflow.
package ingest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

var ErrExtraction = errors.New("error extracting text from file")

// ExtractText picks an extractor by file extension. PDF and Word files are
// parsed; anything else is decoded as UTF-8 with invalid bytes replaced.
func ExtractText(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err := extractPDF(data)
		if err != nil {
			return "", fmt.Errorf("%w: reading PDF: %v", ErrExtraction, err)
		}
		return text, nil
	case ".docx", ".doc":
		text, err := extractDOCX(data)
		if err != nil {
			return "", fmt.Errorf("%w: reading DOCX: %v", ErrExtraction, err)
		}
		return text, nil
	default:
		return extractPlain(data), nil
	}
}

// CountWords counts whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

func extractPlain(data []byte) string {
	text := strings.ToValidUTF8(string(data), "\uFFFD")
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.TrimSpace(text)
}

func extractPDF(data []byte) (text string, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		out.WriteString(content)
		out.WriteString("\n")
	}
	return strings.TrimSpace(out.String()), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var body []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		body, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", err
		}
		break
	}
	if body == nil {
		return "", errors.New("word/document.xml not found")
	}

	paragraphs, err := docxParagraphs(body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}

// docxParagraphs returns the text of every <w:p>, in document order.
func docxParagraphs(body []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		inParagraph bool
		inText      bool
		text        strings.Builder
		out         []string
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inParagraph = true
				text.Reset()
			case "t":
				inText = inParagraph
			case "tab":
				if inParagraph {
					text.WriteString("\t")
				}
			case "br":
				if inParagraph {
					text.WriteString("\n")
				}
			}
		case xml.CharData:
			if inText {
				text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inParagraph {
					out = append(out, text.String())
				}
				inParagraph = false
				inText = false
				text.Reset()
			}
		}
	}
	return out, nil
}
