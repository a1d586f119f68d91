// Package widget holds the QR generator form: the URL and icon a user has
// chosen, the logo size derived from the icon, the mounted render canvas and
// the PNG snapshot the poller copies out of it.
//
// A Widget owns two kinds of goroutines. The poller ticks for the widget's
// whole life and exports the current canvas to a data URL. An icon probe is
// started per icon selection to decode the image and fit the logo; a newer
// selection cancels the older probe, and a probe that finishes after being
// superseded is dropped. Close stops both and revokes the icon object URL.
package widget

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/cristianadrielbraun/qrwidget/internal/icon"
	"github.com/cristianadrielbraun/qrwidget/internal/metrics"
	"github.com/cristianadrielbraun/qrwidget/internal/objecturl"
	"github.com/cristianadrielbraun/qrwidget/internal/qr"
)

// AlertNoFile is what the user is told when the file dialog yields nothing.
const AlertNoFile = "Please select a file"

// DefaultPollInterval is the snapshot cadence.
const DefaultPollInterval = time.Second

var (
	// ErrNoFile is returned by SelectIcon when no file was chosen.
	ErrNoFile = errors.New("widget: no file selected")
	// ErrClosed is returned by operations on a closed widget.
	ErrClosed = errors.New("widget: closed")
)

// Options configures a Widget. Zero values get defaults.
type Options struct {
	Renderer qr.Renderer
	// Backend labels render metrics.
	Backend      string
	Icons        *objecturl.Store
	Size         int
	Level        qr.Level
	PollInterval time.Duration
	Log          *slog.Logger
	Metrics      *metrics.Metrics
}

// State is a point-in-time copy of the form.
type State struct {
	URL        string
	IconURL    string
	LogoWidth  float64
	LogoHeight float64
	Tick       uint64
	Snapshot   string
	Mounted    bool
}

// Widget is one user's QR generator form.
type Widget struct {
	opts Options
	log  *slog.Logger

	probeIcon func(context.Context, []byte) (icon.Sized, error)

	ctx       context.Context
	cancel    context.CancelFunc
	poller    sync.WaitGroup
	probes    sync.WaitGroup
	closeOnce sync.Once

	mu          sync.Mutex
	closed      bool
	url         string
	iconURL     string
	logo        image.Image
	logoW       float64
	logoH       float64
	canvas      *qr.Canvas
	tick        uint64
	snapshot    string
	selection   uint64
	cancelProbe context.CancelFunc
}

// New builds a widget and starts its poller.
func New(opts Options) *Widget {
	if opts.Renderer == nil {
		opts.Renderer = qr.Yeqown{}
		opts.Backend = "yeqown"
	}
	if opts.Icons == nil {
		opts.Icons = objecturl.NewStore("blob:")
	}
	if opts.Size <= 0 {
		opts.Size = qr.DefaultSize
	}
	if opts.Level == "" {
		opts.Level = qr.LevelHigh
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{
		opts:      opts,
		log:       opts.Log,
		probeIcon: icon.Probe,
		ctx:       ctx,
		cancel:    cancel,
		logoW:     icon.DefaultLogoSide,
		logoH:     icon.DefaultLogoSide,
	}
	opts.Metrics.WidgetOpened()

	w.poller.Add(1)
	go w.run(opts.PollInterval)
	return w
}

// SetURL replaces the target URL. A non-empty URL mounts the render canvas
// and repaints it; an empty one unmounts it, leaving the snapshot as is.
func (w *Widget) SetURL(url string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.url = url
	w.remountLocked()
}

// SelectIcon takes a newly chosen icon. A nil file means the dialog was
// dismissed: ErrNoFile is returned and nothing changes.
//
// Otherwise the previous icon's object URL is revoked, a new one is created
// and a probe starts decoding the icon. The logo on the canvas changes only
// once that probe resolves.
func (w *Widget) SelectIcon(f *icon.File) error {
	if f == nil {
		return ErrNoFile
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if w.iconURL != "" {
		w.opts.Icons.Revoke(w.iconURL)
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.iconURL = w.opts.Icons.Create(contentType, f.Data)

	if w.cancelProbe != nil {
		w.cancelProbe()
	}
	w.selection++
	ctx, cancel := context.WithCancel(w.ctx)
	w.cancelProbe = cancel

	w.probes.Add(1)
	go w.probe(ctx, cancel, w.selection, f.Name, f.Data)
	return nil
}

// State returns a copy of the current form state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return State{
		URL:        w.url,
		IconURL:    w.iconURL,
		LogoWidth:  w.logoW,
		LogoHeight: w.logoH,
		Tick:       w.tick,
		Snapshot:   w.snapshot,
		Mounted:    w.canvas != nil,
	}
}

// Canvas returns the mounted canvas, or nil when the URL is empty.
func (w *Widget) Canvas() *qr.Canvas {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canvas
}

// Close stops the poller and any pending probe, unmounts the canvas and
// revokes the icon object URL. It is safe to call more than once.
func (w *Widget) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		if w.cancelProbe != nil {
			w.cancelProbe()
			w.cancelProbe = nil
		}
		if w.iconURL != "" {
			w.opts.Icons.Revoke(w.iconURL)
			w.iconURL = ""
		}
		w.canvas = nil
		w.mu.Unlock()

		w.cancel()
		w.probes.Wait()
		w.poller.Wait()
		w.opts.Metrics.WidgetClosed()
	})
}

// remountLocked repaints the canvas for the current URL and logo, or drops it
// when the URL is empty. A failed paint unmounts.
func (w *Widget) remountLocked() {
	if w.url == "" {
		w.canvas = nil
		return
	}

	p := qr.Params{
		Value: w.url,
		Size:  w.opts.Size,
		Level: w.opts.Level,
	}
	if w.logo != nil {
		p.Logo = w.logo
		p.LogoWidth = w.logoW
		p.LogoHeight = w.logoH
	}

	start := time.Now()
	c, err := w.opts.Renderer.Render(w.ctx, p)
	w.opts.Metrics.ObserveRender(w.opts.Backend, time.Since(start), err)
	if err != nil {
		w.log.Warn("render failed", "url", w.url, "error", err)
		w.canvas = nil
		return
	}
	w.canvas = c
}

func (w *Widget) probe(ctx context.Context, cancel context.CancelFunc, gen uint64, name string, data []byte) {
	defer w.probes.Done()
	defer cancel()

	sized, err := w.probeIcon(ctx, data)

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.selection || w.closed || ctx.Err() != nil {
		w.opts.Metrics.ObserveIconProbe("cancelled")
		return
	}
	if err != nil {
		// Sizing keeps its last value; the user gets no signal.
		w.log.Warn("icon decode failed", "file", name, "error", err)
		w.opts.Metrics.ObserveIconProbe("error")
		return
	}
	w.opts.Metrics.ObserveIconProbe("success")

	w.logo = sized.Image
	w.logoW = sized.Width
	w.logoH = sized.Height
	w.log.Debug("icon sized", "file", name, "width", sized.Width, "height", sized.Height)
	w.remountLocked()
}

func (w *Widget) run(interval time.Duration) {
	defer w.poller.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll advances the tick and, when a canvas is mounted, copies it out as a
// PNG data URL. A canvas swapped out during the export is not stored; the
// next tick picks up the new one.
func (w *Widget) poll() {
	w.mu.Lock()
	w.tick++
	c := w.canvas
	w.mu.Unlock()

	if c == nil {
		return
	}

	u, err := c.DataURL()
	if err != nil {
		w.log.Warn("snapshot export failed", "error", err)
		return
	}

	w.mu.Lock()
	if w.canvas == c {
		w.snapshot = u
	}
	w.mu.Unlock()
	w.opts.Metrics.ObserveSnapshot()
}
