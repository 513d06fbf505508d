//go:build tesseract

// Package tesseract runs OCR locally through libtesseract. It needs cgo and
// the tesseract headers, so it is only built with the "tesseract" tag.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/custodia-labs/compliance-sync/internal/adapters/driven/ocr"
	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
)

func init() {
	ocr.RegisterEngine(ocr.ProviderTesseract, func(cfg ocr.Config, fallback *ocr.Synthetic) (driven.TextExtractor, error) {
		return New(cfg, fallback), nil
	})
}

// Ensure Engine implements TextExtractor
var _ driven.TextExtractor = (*Engine)(nil)

// Engine implements TextExtractor with the gosseract client.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
	maxFileSize   int64
	registry      driven.FieldExtractorRegistry
	fallback      *ocr.Synthetic
	logger        *slog.Logger
	now           func() time.Time
}

// New creates a Tesseract-backed extractor.
func New(cfg ocr.Config, fallback *ocr.Synthetic) *Engine {
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		clientFactory: gosseract.NewClient,
		languages:     langs,
		maxFileSize:   cfg.MaxFileSize,
		registry:      cfg.Registry,
		fallback:      fallback,
		logger:        logger,
		now:           now,
	}
}

func (e *Engine) Name() string { return "Tesseract" }

// Ping checks the native library loads.
func (e *Engine) Ping(ctx context.Context) error {
	if gosseract.Version() == "" {
		return fmt.Errorf("%w: tesseract unavailable", domain.ErrServiceUnavailable)
	}
	return nil
}

// Extract recognises image documents. PDFs are read from their text layer
// since tesseract only accepts images.
func (e *Engine) Extract(ctx context.Context, content *domain.DocumentContent, docType domain.DocumentType) (*domain.ExtractionResult, error) {
	if err := ocr.ValidateContent(content, e.maxFileSize); err != nil {
		return e.degrade(content, docType, err), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec ocr.Recognition
	var err error
	if strings.Contains(strings.ToLower(content.MimeType), "pdf") {
		rec, err = e.recognizePDF(content.Data)
	} else {
		rec, err = e.recognizeImage(content.Data)
	}
	if err != nil {
		return e.degrade(content, docType, err), nil
	}

	return ocr.BuildResult(content.DocumentID, docType, rec, e.Name(), e.registry, e.now()), nil
}

func (e *Engine) recognizePDF(data []byte) (ocr.Recognition, error) {
	text, err := ocr.PDFTextLayer(data)
	if err != nil {
		return ocr.Recognition{}, err
	}
	if text == "" {
		return ocr.Recognition{}, fmt.Errorf("%w: scanned pdf without text layer", domain.ErrUnsupportedDocument)
	}
	pages, err := ocr.PDFPageCount(data)
	if err != nil {
		pages = 1
	}
	return ocr.Recognition{Text: text, Confidence: 0.95, Pages: pages}, nil
}

func (e *Engine) recognizeImage(data []byte) (ocr.Recognition, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(e.languages...); err != nil {
		return ocr.Recognition{}, fmt.Errorf("set languages: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("recognize text: %w", err)
	}

	blocks, conf := lineBlocks(c)
	return ocr.Recognition{
		Text:       strings.TrimSpace(text),
		Confidence: conf,
		Pages:      1,
		Language:   "en",
		Blocks:     blocks,
	}, nil
}

// lineBlocks returns per-line blocks and their mean confidence in [0,1].
func lineBlocks(c *gosseract.Client) ([]domain.TextBlock, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil || len(boxes) == 0 {
		return nil, 0.8
	}
	blocks := make([]domain.TextBlock, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		conf := b.Confidence / 100.0
		sum += conf
		blocks = append(blocks, domain.TextBlock{
			Text:       strings.TrimSpace(b.Word),
			Confidence: conf,
			Box: domain.BoundingBox{
				Left:   float64(b.Box.Min.X),
				Top:    float64(b.Box.Min.Y),
				Width:  float64(b.Box.Dx()),
				Height: float64(b.Box.Dy()),
			},
		})
	}
	return blocks, sum / float64(len(blocks))
}

func (e *Engine) degrade(content *domain.DocumentContent, docType domain.DocumentType, cause error) *domain.ExtractionResult {
	var id string
	if content != nil {
		id = content.DocumentID
	}
	e.logger.Warn("ocr degraded to synthetic result", "document_id", id, "provider", e.Name(), "error", cause)
	return e.fallback.Result(id, docType)
}
