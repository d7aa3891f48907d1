package scanning

import (
	"bytes"
	"fmt"
	"image/png"
	"mime"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// pdfToImage renders the first page of a PDF as a PNG image
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Receipts are single page in practice
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}

	return buf.Bytes(), nil
}

// normalizeMimeType lowercases the content type and strips any parameters
func normalizeMimeType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return contentType
}

// prepareImageData returns image bytes a vision model can read and their MIME type.
// PDFs are rendered to PNG; JPEG and PNG are passed through untouched.
func prepareImageData(imageData []byte, contentType string) ([]byte, string, error) {
	mimeType := normalizeMimeType(contentType)

	switch mimeType {
	case "application/pdf":
		pngData, err := pdfToImage(imageData)
		if err != nil {
			return nil, "", fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, "image/png", nil
	case "image/png":
		return imageData, "image/png", nil
	case "image/jpeg", "image/jpg", "":
		return imageData, "image/jpeg", nil
	default:
		return nil, "", fmt.Errorf("unsupported image format %q. Supported formats: JPEG, PNG, PDF", mimeType)
	}
}

// imageFormat returns the short format name ("png", "jpeg") for a MIME type
func imageFormat(mimeType string) string {
	return strings.TrimPrefix(mimeType, "image/")
}
