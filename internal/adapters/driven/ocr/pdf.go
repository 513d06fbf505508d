package ocr

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// minTextLayerChars is the shortest embedded text accepted in place of OCR.
const minTextLayerChars = 80

// textLayerConfidence is reported for text read straight from a PDF.
const textLayerConfidence = 0.97

// PDFTextLayer reads the embedded text of a PDF.
// Scanned PDFs have no text layer and yield "".
func PDFTextLayer(data []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf text layer: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// PDFPageCount counts the pages of a PDF.
func PDFPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("count pdf pages: %w", err)
	}
	return n, nil
}

// isPDF reports whether content looks like a PDF by mime type or magic bytes.
func isPDF(mimeType string, data []byte) bool {
	return baseMimeType(mimeType) == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF-"))
}
