package scanning

import (
	"context"
	"errors"
)

// ErrNoText is returned by a TextRecognizer when the image contains no readable text
var ErrNoText = errors.New("no text found")

// TextRecognizer extracts raw text from an image on disk
type TextRecognizer interface {
	// RecognizeText returns the text found in the image, or ErrNoText
	RecognizeText(ctx context.Context, imagePath string, contentType string) (string, error)

	// Close releases any resources held by the recognizer
	Close() error
}

// Completer sends an instruction/input pair to a language model and returns its raw reply
type Completer interface {
	// Complete returns the model's reply text for the given instructions and user text
	Complete(ctx context.Context, systemInstructions string, userText string) (string, error)

	// Close releases any resources held by the completer
	Close() error
}
