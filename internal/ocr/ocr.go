// Package ocr extracts text from clipboard images with the tesseract CLI.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/normalize"
)

// Recognizer turns an encoded image into text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// ErrUnavailable is returned when the OCR binary could not be found.
var ErrUnavailable = errors.New("ocr command not available")

// Config configures a Tesseract recognizer.
type Config struct {
	Command   string        // binary name or path (default: tesseract)
	Languages string        // e.g. "eng+chi_sim"; normalized with normalize.OCRLanguages
	Timeout   time.Duration // per image (default: 30s)
	TempDir   string        // defaults to os.TempDir()
}

// Tesseract runs the tesseract CLI on a temporary copy of the image.
type Tesseract struct {
	path      string
	languages string
	timeout   time.Duration
	tempDir   string
	logger    *slog.Logger
}

// NewTesseract resolves the OCR command. A missing binary is not an error:
// the recognizer is returned in a disabled state and every call reports
// ErrUnavailable, so image entries are still captured without text.
func NewTesseract(cfg Config, logger *slog.Logger) *Tesseract {
	if cfg.Command == "" {
		cfg.Command = "tesseract"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	t := &Tesseract{
		languages: normalize.OCRLanguages(cfg.Languages),
		timeout:   cfg.Timeout,
		tempDir:   cfg.TempDir,
		logger:    logger,
	}

	path, err := exec.LookPath(cfg.Command)
	if err != nil {
		logger.Warn("ocr command not found, image text recognition disabled", "command", cfg.Command)
		return t
	}
	t.path = path
	logger.Info("using ocr command", slog.String("path", path), slog.String("languages", t.languages))
	return t
}

// Available reports whether the OCR binary was found.
func (t *Tesseract) Available() bool {
	return t.path != ""
}

// Recognize writes image to a temp file, runs OCR on it, and returns the
// trimmed text. The temp file is always removed.
func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	if !t.Available() {
		return "", domainerrors.ProviderUnavailable(ErrUnavailable, "ocr")
	}
	if len(image) == 0 {
		return "", domainerrors.Validation("empty image")
	}

	tmp := filepath.Join(t.tempDir, "pastev-ocr-"+uuid.NewString()+".img")
	if err := os.WriteFile(tmp, image, 0o600); err != nil {
		return "", fmt.Errorf("write ocr input: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("failed to remove ocr temp file", "path", tmp, "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.path, tmp, "stdout", "-l", t.languages) //nolint:gosec // path is from exec.LookPath
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return "", domainerrors.ProviderUnavailable(ctx.Err(), "ocr")
		}
		return "", domainerrors.ProviderUnavailable(
			fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())), "ocr")
	}

	text := strings.TrimSpace(normalize.Text(string(out)))
	t.logger.Debug("ocr finished",
		"duration", time.Since(start),
		"chars", len([]rune(text)),
	)
	return text, nil
}
