package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapturePNGValidatesOptions(t *testing.T) {
	err := CapturePNG(context.Background(), Options{OutputPath: "x.png"})
	require.ErrorIs(t, err, ErrMissingURL)

	err = CapturePNG(context.Background(), Options{URL: "http://127.0.0.1/calendar"})
	require.ErrorIs(t, err, ErrMissingOutput)
}

func TestNormalizeDefaults(t *testing.T) {
	o, err := Options{URL: "http://x/calendar", OutputPath: "out.png"}.normalize()
	require.NoError(t, err)
	require.Equal(t, DefaultWidth, o.Width)
	require.Equal(t, DefaultHeight, o.Height)
	require.Equal(t, DefaultTimeout, o.Timeout)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "calendar.png")
	require.NoError(t, writeFileAtomic(path, []byte("png")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "png", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
