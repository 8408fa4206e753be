package scanning

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// minOCRHeight is the height below which images are upscaled before OCR
const minOCRHeight = 1200

// Tesseract implements TextRecognizer with a local Tesseract installation
type Tesseract struct {
	languages []string
}

// NewTesseract creates a Tesseract recognizer. Languages default to English.
func NewTesseract(languages ...string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{languages: languages}
}

// RecognizeText runs OCR over a grayscale, upscaled copy of the image
func (t *Tesseract) RecognizeText(ctx context.Context, imagePath string, contentType string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	pngData, err := preprocessForOCR(data, contentType)
	if err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("setting OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(pngData); err != nil {
		return "", fmt.Errorf("loading image into tesseract: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running tesseract: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Close is a no-op, a tesseract client is created per image
func (t *Tesseract) Close() error {
	return nil
}

// preprocessForOCR converts the image to grayscale PNG, upscaling small photos
func preprocessForOCR(data []byte, contentType string) ([]byte, error) {
	pngData, _, err := prepareImageData(data, contentType)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(pngData), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decoding image for OCR: %w", err)
	}

	gray := imaging.Grayscale(img)
	if gray.Bounds().Dy() < minOCRHeight {
		gray = imaging.Resize(gray, 0, minOCRHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encoding OCR image: %w", err)
	}
	return buf.Bytes(), nil
}
