package invoice

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// Supported upload types
const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
)

// Page is one rendered image ready for the vision oracle.
type Page struct {
	Data     []byte
	MimeType string
}

// Renderer turns uploaded documents into images. PDFs are rasterized with
// MuPDF; JPEG and PNG pass through untouched.
type Renderer struct {
	maxPages int
	quality  int
	logger   *zap.Logger
}

// NewRenderer creates a renderer that keeps at most maxPages pages of a PDF.
func NewRenderer(maxPages, quality int, logger *zap.Logger) *Renderer {
	if maxPages < 1 {
		maxPages = 1
	}
	if quality < 1 || quality > 100 {
		quality = 85
	}
	return &Renderer{maxPages: maxPages, quality: quality, logger: logger}
}

// Render converts a document into page images.
func (r *Renderer) Render(data []byte, mimeType string) ([]Page, error) {
	switch NormalizeMimeType(mimeType) {
	case MimeJPEG:
		return []Page{{Data: data, MimeType: MimeJPEG}}, nil
	case MimePNG:
		return []Page{{Data: data, MimeType: MimePNG}}, nil
	case MimePDF:
		return r.renderPDF(data)
	}
	return nil, fmt.Errorf("%w: %s", entity.ErrUnsupportedDocument, mimeType)
}

func (r *Renderer) renderPDF(data []byte) ([]Page, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	defer doc.Close()

	count := min(doc.NumPage(), r.maxPages)
	pages := make([]Page, 0, count)
	for n := 0; n < count; n++ {
		img, err := doc.Image(n)
		if err != nil {
			r.logger.Warn("Failed to render PDF page", zap.Int("page", n), zap.Error(err))
			continue
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			r.logger.Warn("Failed to encode PDF page", zap.Int("page", n), zap.Error(err))
			continue
		}
		pages = append(pages, Page{Data: buf.Bytes(), MimeType: MimeJPEG})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: PDF has no renderable pages", entity.ErrUnsupportedDocument)
	}

	r.logger.Debug("Rendered PDF", zap.Int("pages", len(pages)))
	return pages, nil
}

// NormalizeMimeType lowercases a content type and drops its parameters.
func NormalizeMimeType(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "image/jpg" {
		return MimeJPEG
	}
	return mt
}

// MimeTypeFromName guesses a supported type from a file extension.
func MimeTypeFromName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return MimePDF
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return MimeJPEG
	case strings.HasSuffix(lower, ".png"):
		return MimePNG
	}
	return ""
}
