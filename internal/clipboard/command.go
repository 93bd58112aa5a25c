package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// Backends supported by CommandReader.
const (
	BackendWayland = "wayland"
	BackendX11     = "x11"
	BackendNone    = "none"
)

var (
	imageMimes = []string{"image/png", "image/jpeg", "image/webp", "image/gif", "image/bmp", "image/tiff"}
	textMimes  = []string{"text/plain;charset=utf-8", "UTF8_STRING", "text/plain", "STRING"}
)

const (
	uriListMime = "text/uri-list"
	htmlMime    = "text/html"
)

// runFunc runs a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// CommandReader reads the clipboard through wl-paste or xclip.
type CommandReader struct {
	backend string
	timeout time.Duration
	logger  *slog.Logger
	run     runFunc
}

// NewCommandReader creates a reader for the given backend. It fails when the
// backend's tool is not on PATH.
func NewCommandReader(backend string, timeout time.Duration, logger *slog.Logger) (*CommandReader, error) {
	r := &CommandReader{backend: backend, timeout: timeout, logger: logger, run: runCommand}

	var tool string
	switch backend {
	case BackendWayland:
		tool = "wl-paste"
	case BackendX11:
		tool = "xclip"
	case BackendNone:
		return r, nil
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", backend)
	}

	if _, err := exec.LookPath(tool); err != nil {
		return nil, fmt.Errorf("%s not found for %s clipboard backend: %w", tool, backend, err)
	}
	logger.Info("using clipboard tool", slog.String("backend", backend), slog.String("tool", tool))
	return r, nil
}

// Read lists the offered types and fetches the best image, file list, text,
// and HTML representations.
func (r *CommandReader) Read(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if r.backend == BackendNone {
		return snap, nil
	}

	types, err := r.listTypes(ctx)
	if err != nil {
		return snap, err
	}
	if len(types) == 0 {
		return snap, nil
	}

	if mime := firstOffered(types, imageMimes); mime != "" {
		if snap.Image, err = r.fetch(ctx, mime); err != nil {
			return snap, err
		}
		snap.ImageMime = mime
		return snap, nil
	}

	if slices.Contains(types, uriListMime) {
		raw, err := r.fetch(ctx, uriListMime)
		if err != nil {
			return snap, err
		}
		snap.FileURIs = parseURIList(string(raw))
		if len(snap.FileURIs) > 0 {
			return snap, nil
		}
	}

	if mime := firstOffered(types, textMimes); mime != "" {
		raw, err := r.fetch(ctx, mime)
		if err != nil {
			return snap, err
		}
		snap.Text = string(raw)
	}

	if snap.Text == "" && slices.Contains(types, htmlMime) {
		raw, err := r.fetch(ctx, htmlMime)
		if err != nil {
			return snap, err
		}
		snap.HTML = string(raw)
	}

	return snap, nil
}

func (r *CommandReader) listTypes(ctx context.Context) ([]string, error) {
	var (
		out []byte
		err error
	)
	switch r.backend {
	case BackendWayland:
		out, err = r.exec(ctx, "wl-paste", "--list-types")
	default:
		out, err = r.exec(ctx, "xclip", "-selection", "clipboard", "-t", "TARGETS", "-o")
	}
	if err != nil {
		if isNoSelection(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list clipboard types: %w", err)
	}

	var types []string
	for line := range strings.Lines(string(out)) {
		if t := strings.TrimSpace(line); t != "" {
			types = append(types, t)
		}
	}
	return types, nil
}

func (r *CommandReader) fetch(ctx context.Context, mime string) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch r.backend {
	case BackendWayland:
		out, err = r.exec(ctx, "wl-paste", "--no-newline", "--type", mime)
	default:
		out, err = r.exec(ctx, "xclip", "-selection", "clipboard", "-t", mime, "-o")
	}
	if err != nil {
		if isNoSelection(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read clipboard %s: %w", mime, err)
	}
	return out, nil
}

func (r *CommandReader) exec(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.run(ctx, name, args...)
}

// errNoSelection marks a tool exit that only means the clipboard is empty.
var errNoSelection = errors.New("no selection")

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // name is wl-paste or xclip, checked with LookPath
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.ToLower(stderr.String())
		if strings.Contains(msg, "no selection") || strings.Contains(msg, "nothing is copied") ||
			(strings.Contains(msg, "target") && strings.Contains(msg, "not available")) {
			return nil, errNoSelection
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

func isNoSelection(err error) bool {
	return errors.Is(err, errNoSelection)
}

func firstOffered(offered, preferred []string) string {
	for _, p := range preferred {
		if slices.Contains(offered, p) {
			return p
		}
	}
	return ""
}

// parseURIList parses a text/uri-list payload, keeping file URIs only.
func parseURIList(s string) []string {
	var uris []string
	for line := range strings.Lines(s) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "file://") {
			uris = append(uris, line)
		}
	}
	return uris
}
