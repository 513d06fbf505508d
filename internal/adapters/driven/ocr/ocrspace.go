package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
	"github.com/custodia-labs/compliance-sync/internal/core/ports/driven"
	"github.com/custodia-labs/compliance-sync/internal/fields"
)

// Ensure OCRSpace implements TextExtractor
var _ driven.TextExtractor = (*OCRSpace)(nil)

const (
	DefaultOCRSpaceEndpoint = "https://api.ocr.space/parse/image"
	defaultOCRTimeout       = 60 * time.Second
)

// OCRSpaceConfig configures the OCR.space client.
type OCRSpaceConfig struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	MaxFileSize int64
	// RatePerSec paces outbound requests. Zero disables pacing.
	RatePerSec float64
	// PDFTextLayer reads embedded PDF text before paying for OCR.
	PDFTextLayer bool
	Registry     driven.FieldExtractorRegistry
	Fallback     *Synthetic
	HTTPClient   *http.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

// OCRSpace extracts text through the OCR.space parse API.
type OCRSpace struct {
	endpoint     string
	apiKey       string
	provider     string
	maxFileSize  int64
	pdfTextLayer bool
	limiter      *rate.Limiter
	registry     driven.FieldExtractorRegistry
	fallback     *Synthetic
	client       *http.Client
	logger       *slog.Logger
	now          func() time.Time
}

// NewOCRSpace creates an OCR.space client.
func NewOCRSpace(cfg OCRSpaceConfig) (*OCRSpace, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OCR API key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOCRSpaceEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultOCRTimeout
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Registry == nil {
		cfg.Registry = fields.DefaultRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Fallback == nil {
		cfg.Fallback = NewSynthetic(SyntheticConfig{Registry: cfg.Registry, Now: cfg.Now})
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &OCRSpace{
		endpoint:     cfg.Endpoint,
		apiKey:       cfg.APIKey,
		provider:     ProviderName(cfg.Endpoint),
		maxFileSize:  cfg.MaxFileSize,
		pdfTextLayer: cfg.PDFTextLayer,
		limiter:      NewLimiter(cfg.RatePerSec),
		registry:     cfg.Registry,
		fallback:     cfg.Fallback,
		client:       cfg.HTTPClient,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}, nil
}

// NewLimiter returns a limiter allowing perSec requests a second, or nil
// when perSec is not positive.
func NewLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}

// Name returns the provider name derived from the endpoint
func (o *OCRSpace) Name() string {
	return o.provider
}

// Ping checks the endpoint answers at all. Any HTTP status counts as reachable.
func (o *OCRSpace) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	resp.Body.Close()
	return nil
}

// Extract runs OCR over the content.
func (o *OCRSpace) Extract(ctx context.Context, content *domain.DocumentContent, docType domain.DocumentType) (*domain.ExtractionResult, error) {
	if err := ValidateContent(content, o.maxFileSize); err != nil {
		return o.degrade(content, docType, err)
	}

	if o.pdfTextLayer && isPDF(content.MimeType, content.Data) {
		if res := o.fromTextLayer(content, docType); res != nil {
			return res, nil
		}
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	rec, err := o.recognize(ctx, content)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) || errors.Is(err, domain.ErrRateLimited) || ctx.Err() != nil {
			return nil, err
		}
		return o.degrade(content, docType, err)
	}

	o.logger.Debug("ocr completed",
		"document_id", content.DocumentID,
		"provider", o.provider,
		"confidence", rec.Confidence,
		"pages", rec.Pages)

	return BuildResult(content.DocumentID, docType, rec, o.provider, o.registry, o.now()), nil
}

// fromTextLayer returns nil when the PDF has too little embedded text.
func (o *OCRSpace) fromTextLayer(content *domain.DocumentContent, docType domain.DocumentType) *domain.ExtractionResult {
	text, err := PDFTextLayer(content.Data)
	if err != nil || len(text) < minTextLayerChars {
		return nil
	}
	pages, err := PDFPageCount(content.Data)
	if err != nil {
		o.logger.Debug("pdf page count failed", "document_id", content.DocumentID, "error", err)
		pages = 1
	}
	return BuildResult(content.DocumentID, docType, Recognition{
		Text:       text,
		Confidence: textLayerConfidence,
		Pages:      pages,
	}, "pdf-text-layer", o.registry, o.now())
}

func (o *OCRSpace) degrade(content *domain.DocumentContent, docType domain.DocumentType, cause error) (*domain.ExtractionResult, error) {
	var id string
	if content != nil {
		id = content.DocumentID
	}
	o.logger.Warn("ocr degraded to synthetic result",
		"document_id", id,
		"provider", o.provider,
		"error", cause)
	return o.fallback.Result(id, docType), nil
}

// parseResponse is the OCR.space reply
type parseResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		ErrorMessage      string `json:"ErrorMessage"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		TextOverlay       *struct {
			HasOverlay bool          `json:"HasOverlay"`
			Lines      []overlayLine `json:"Lines"`
		} `json:"TextOverlay"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

type overlayLine struct {
	LineText  string        `json:"LineText"`
	MaxHeight float64       `json:"MaxHeight"`
	MinTop    float64       `json:"MinTop"`
	Words     []overlayWord `json:"Words"`
}

type overlayWord struct {
	WordText string  `json:"WordText"`
	Left     float64 `json:"Left"`
	Top      float64 `json:"Top"`
	Height   float64 `json:"Height"`
	Width    float64 `json:"Width"`
}

func (o *OCRSpace) recognize(ctx context.Context, content *domain.DocumentContent) (Recognition, error) {
	body, contentType, err := o.multipartBody(content)
	if err != nil {
		return Recognition{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, body)
	if err != nil {
		return Recognition{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("apikey", o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return Recognition{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Recognition{}, fmt.Errorf("%w: OCR API returned status %d", domain.ErrAuthentication, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return Recognition{}, fmt.Errorf("%w: OCR API returned status %d", domain.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Recognition{}, fmt.Errorf("OCR API returned status %d", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Recognition{}, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed parseResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Recognition{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	if parsed.IsErroredOnProcessing || len(parsed.ParsedResults) == 0 {
		return Recognition{}, fmt.Errorf("%w: OCR processing failed: %s", domain.ErrMalformedResponse, errorText(parsed.ErrorMessage))
	}

	first := parsed.ParsedResults[0]
	rec := Recognition{
		Text:       first.ParsedText,
		Confidence: 0.8,
		Pages:      len(parsed.ParsedResults),
		Language:   defaultLanguage,
	}
	if len(first.ParsedText) > 100 {
		rec.Confidence += 0.1
	}
	if first.TextOverlay != nil {
		if first.TextOverlay.HasOverlay {
			rec.Confidence += 0.05
		}
		for _, line := range first.TextOverlay.Lines {
			rec.Blocks = append(rec.Blocks, lineBlock(line))
		}
	}
	rec.Confidence = domain.ClampConfidence(math.Round(rec.Confidence*100) / 100)
	return rec, nil
}

// lineBlock derives a line's bounding box from its words.
func lineBlock(line overlayLine) domain.TextBlock {
	block := domain.TextBlock{
		Text:       line.LineText,
		Confidence: 0.8,
		Box:        domain.BoundingBox{Top: line.MinTop, Height: line.MaxHeight},
	}
	if len(line.Words) == 0 {
		return block
	}
	left := line.Words[0].Left
	right := left + line.Words[0].Width
	for _, w := range line.Words[1:] {
		left = min(left, w.Left)
		right = max(right, w.Left+w.Width)
	}
	block.Box.Left = left
	block.Box.Width = right - left
	return block
}

// errorText flattens the ErrorMessage field, which is a string or a list of strings.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	return "unknown error"
}

func (o *OCRSpace) multipartBody(content *domain.DocumentContent) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := content.FileName
	if name == "" {
		name = content.DocumentID
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(content.Data); err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}

	formFields := [][2]string{
		{"apikey", o.apiKey},
		{"language", "eng"},
		{"isOverlayRequired", "true"},
		{"detectOrientation", "true"},
		{"isTable", "true"},
	}
	if ft := fileType(content.MimeType); ft != "" {
		formFields = append(formFields, [2]string{"filetype", ft})
	}
	for _, f := range formFields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to build request: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to build request: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// fileType maps a mime type to the OCR.space filetype hint.
func fileType(mimeType string) string {
	switch baseMimeType(mimeType) {
	case "application/pdf":
		return "PDF"
	case "image/jpeg", "image/jpg":
		return "JPG"
	case "image/png":
		return "PNG"
	case "image/tiff":
		return "TIF"
	case "image/bmp":
		return "BMP"
	}
	return ""
}
