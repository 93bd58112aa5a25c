package clipboard

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mopip77/pasteV/internal/logger"
)

// fakeTool answers wl-paste/xclip invocations from a type -> payload table.
type fakeTool struct {
	payloads map[string]string
	calls    []string
	err      error
}

func (f *fakeTool) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if f.err != nil {
		return nil, f.err
	}

	joined := strings.Join(args, " ")
	if strings.Contains(joined, "--list-types") || strings.Contains(joined, "TARGETS") {
		types := make([]string, 0, len(f.payloads))
		for t := range f.payloads {
			types = append(types, t)
		}
		return []byte(strings.Join(types, "\n") + "\n"), nil
	}

	for i, a := range args {
		if (a == "--type" || a == "-t") && i+1 < len(args) {
			return []byte(f.payloads[args[i+1]]), nil
		}
	}
	return nil, errors.New("unexpected invocation")
}

func newFakeReader(backend string, tool *fakeTool) *CommandReader {
	return &CommandReader{backend: backend, logger: logger.Discard(), run: tool.run}
}

func TestCommandReader_Wayland(t *testing.T) {
	tests := []struct {
		name     string
		payloads map[string]string
		check    func(t *testing.T, s Snapshot)
	}{
		{
			name:     "image preferred",
			payloads: map[string]string{"image/png": "PNGDATA", "text/plain": "alt text"},
			check: func(t *testing.T, s Snapshot) {
				assert.Equal(t, []byte("PNGDATA"), s.Image)
				assert.Equal(t, "image/png", s.ImageMime)
				assert.Empty(t, s.Text)
			},
		},
		{
			name:     "file list",
			payloads: map[string]string{"text/uri-list": "# comment\r\nfile:///home/u/a.txt\r\nhttps://example.com\r\n", "text/plain": "a.txt"},
			check: func(t *testing.T, s Snapshot) {
				assert.Equal(t, []string{"file:///home/u/a.txt"}, s.FileURIs)
			},
		},
		{
			name:     "utf8 text",
			payloads: map[string]string{"text/plain;charset=utf-8": "héllo", "text/plain": "h?llo"},
			check: func(t *testing.T, s Snapshot) {
				assert.Equal(t, "héllo", s.Text)
				assert.Empty(t, s.HTML)
			},
		},
		{
			name:     "html fallback",
			payloads: map[string]string{"text/html": "<b>bold</b>"},
			check: func(t *testing.T, s Snapshot) {
				assert.Empty(t, s.Text)
				assert.Equal(t, "<b>bold</b>", s.HTML)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeReader(BackendWayland, &fakeTool{payloads: tt.payloads})
			snap, err := r.Read(context.Background())
			require.NoError(t, err)
			tt.check(t, snap)
		})
	}
}

func TestCommandReader_X11Arguments(t *testing.T) {
	tool := &fakeTool{payloads: map[string]string{"UTF8_STRING": "from x"}}
	r := newFakeReader(BackendX11, tool)

	snap, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from x", snap.Text)
	require.Len(t, tool.calls, 2)
	assert.Equal(t, "xclip -selection clipboard -t TARGETS -o", tool.calls[0])
	assert.Equal(t, "xclip -selection clipboard -t UTF8_STRING -o", tool.calls[1])
}

func TestCommandReader_EmptySelection(t *testing.T) {
	r := newFakeReader(BackendWayland, &fakeTool{err: errNoSelection})
	snap, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestCommandReader_ToolFailure(t *testing.T) {
	r := newFakeReader(BackendWayland, &fakeTool{err: errors.New("compositor gone")})
	_, err := r.Read(context.Background())
	assert.Error(t, err)
}

func TestCommandReader_NoneBackend(t *testing.T) {
	r, err := NewCommandReader(BackendNone, 0, logger.Discard())
	require.NoError(t, err)
	snap, err := r.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestNewCommandReader_UnknownBackend(t *testing.T) {
	_, err := NewCommandReader("quartz", 0, logger.Discard())
	assert.Error(t, err)
}
