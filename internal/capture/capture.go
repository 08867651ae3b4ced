// Package capture takes PNG snapshots of the calendar page with a headless
// Chromium driven by chromedp.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "hilalcal/internal/log"
	"hilalcal/internal/metrics"
)

const (
	DefaultWidth   = 1280
	DefaultHeight  = 960
	DefaultTimeout = 30 * time.Second

	// ReadySelector matches the page root once the calendar has rendered.
	ReadySelector = `[data-ready="true"]`
)

var (
	ErrMissingURL    = errors.New("capture: url is required")
	ErrMissingOutput = errors.New("capture: output path is required")
)

// Options describe one snapshot.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar".
	URL string
	// OutputPath receives the PNG.
	OutputPath string
	// Width and Height set the viewport; zero uses the defaults.
	Width  int
	Height int
	// Timeout bounds the whole capture; zero uses DefaultTimeout.
	Timeout time.Duration
	// ExecPath overrides the Chromium binary lookup.
	ExecPath string
}

func (o Options) normalize() (Options, error) {
	if o.URL == "" {
		return o, ErrMissingURL
	}
	if o.OutputPath == "" {
		return o, ErrMissingOutput
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

// CapturePNG loads opts.URL, waits for ReadySelector and writes a full-page
// screenshot to opts.OutputPath.
func CapturePNG(parent context.Context, opts Options) error {
	opts, err := opts.normalize()
	if err != nil {
		return err
	}

	png, err := screenshot(parent, opts)
	metrics.RecordSnapshot(err == nil)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(opts.OutputPath, png); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	appLog.Info("snapshot written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}

func screenshot(parent context.Context, opts Options) ([]byte, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	defer cancelAlloc()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.Timeout)
	defer cancelTimeout()

	var png []byte
	err := chromedp.Run(ctx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}
	return png, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
