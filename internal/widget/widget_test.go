package widget

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianadrielbraun/qrwidget/internal/icon"
	"github.com/cristianadrielbraun/qrwidget/internal/objecturl"
	"github.com/cristianadrielbraun/qrwidget/internal/qr"
)

// idle is long enough that the poller never fires on its own; tests drive
// poll() directly.
const idle = time.Hour

func newTestWidget(t *testing.T, interval time.Duration, icons *objecturl.Store) *Widget {
	t.Helper()
	w := New(Options{
		Icons:        icons,
		PollInterval: interval,
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(w.Close)
	return w
}

func iconFile(t *testing.T, width, height int) *icon.File {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &icon.File{Name: "logo.png", ContentType: "image/png", Data: buf.Bytes()}
}

func decodeSnapshot(t *testing.T, s string) image.Image {
	t.Helper()
	require.True(t, strings.HasPrefix(s, qr.DataURLPrefix), "snapshot %q is not a PNG data URL", s)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, qr.DataURLPrefix))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestInitialState(t *testing.T) {
	w := newTestWidget(t, idle, nil)

	st := w.State()
	assert.Empty(t, st.URL)
	assert.Empty(t, st.IconURL)
	assert.Empty(t, st.Snapshot)
	assert.False(t, st.Mounted)
	assert.Equal(t, 100.0, st.LogoWidth)
	assert.Equal(t, 100.0, st.LogoHeight)
}

func TestSetURL_SnapshotAfterTick(t *testing.T) {
	w := newTestWidget(t, idle, nil)

	w.SetURL("https://example.com")
	assert.True(t, w.State().Mounted)
	assert.Empty(t, w.State().Snapshot, "snapshot waits for a tick")

	w.poll()

	st := w.State()
	assert.Equal(t, uint64(1), st.Tick)
	img := decodeSnapshot(t, st.Snapshot)
	assert.Equal(t, image.Rect(0, 0, 200, 200), img.Bounds())
}

func TestEmptyURL_NotMounted(t *testing.T) {
	w := newTestWidget(t, idle, nil)

	w.SetURL("")
	w.poll()
	w.poll()

	st := w.State()
	assert.False(t, st.Mounted)
	assert.Nil(t, w.Canvas())
	assert.Empty(t, st.Snapshot)
	assert.Equal(t, uint64(2), st.Tick)
}

func TestClearURL_HoldsLastSnapshot(t *testing.T) {
	w := newTestWidget(t, idle, nil)

	w.SetURL("https://example.com")
	w.poll()
	last := w.State().Snapshot
	require.NotEmpty(t, last)

	w.SetURL("")
	w.poll()

	st := w.State()
	assert.False(t, st.Mounted)
	assert.Equal(t, last, st.Snapshot)
}

func TestSnapshotFollowsURL(t *testing.T) {
	w := newTestWidget(t, idle, nil)

	w.SetURL("https://example.com")
	w.poll()
	first := w.State().Snapshot

	w.SetURL("https://example.org/other")
	w.poll()
	assert.NotEqual(t, first, w.State().Snapshot)
}

func TestSelectIcon_NilFile(t *testing.T) {
	icons := objecturl.NewStore("blob:")
	w := newTestWidget(t, idle, icons)
	w.SetURL("https://example.com")
	before := w.State()

	err := w.SelectIcon(nil)
	assert.ErrorIs(t, err, ErrNoFile)
	assert.Equal(t, before, w.State())
	assert.Zero(t, icons.Len())
}

func TestSelectIcon_Sizing(t *testing.T) {
	cases := []struct {
		name         string
		w, h         int
		wantW, wantH float64
	}{
		{"landscape", 200, 100, 50, 25},
		{"portrait", 100, 200, 25, 50},
		{"square", 100, 100, 50, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newTestWidget(t, idle, nil)

			require.NoError(t, w.SelectIcon(iconFile(t, tc.w, tc.h)))
			w.probes.Wait()

			st := w.State()
			assert.Equal(t, tc.wantW, st.LogoWidth)
			assert.Equal(t, tc.wantH, st.LogoHeight)
			assert.NotEmpty(t, st.IconURL)
		})
	}
}

func TestSelectIcon_LogoPainted(t *testing.T) {
	w := newTestWidget(t, idle, nil)
	w.SetURL("https://example.com")

	require.NoError(t, w.SelectIcon(iconFile(t, 64, 64)))
	w.probes.Wait()
	w.poll()

	img := decodeSnapshot(t, w.State().Snapshot)
	c := color.NRGBAModel.Convert(img.At(100, 100)).(color.NRGBA)
	assert.True(t, c.R > 240 && c.G < 16 && c.B < 16, "centre pixel %v is not the logo", c)
}

func TestSelectIcon_SupersedesAndRevokes(t *testing.T) {
	icons := objecturl.NewStore("blob:")
	w := newTestWidget(t, idle, icons)

	require.NoError(t, w.SelectIcon(iconFile(t, 400, 100)))
	first := w.State().IconURL
	require.NoError(t, w.SelectIcon(iconFile(t, 100, 200)))
	second := w.State().IconURL
	w.probes.Wait()

	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, icons.Len(), "superseded object URL is revoked")

	st := w.State()
	assert.Equal(t, 25.0, st.LogoWidth)
	assert.Equal(t, 50.0, st.LogoHeight)
}

// stalling blocks the first render call it sees with a logo until released,
// so a probe can be held open while a newer selection lands.
type stallingRenderer struct {
	qr.Renderer
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stallingRenderer) Render(ctx context.Context, p qr.Params) (*qr.Canvas, error) {
	if p.Logo != nil {
		s.once.Do(func() {
			close(s.entered)
			<-s.release
		})
	}
	return s.Renderer.Render(ctx, p)
}

func TestSelectIcon_StaleProbeDropped(t *testing.T) {
	w := newTestWidget(t, idle, nil)

	gate := make(chan struct{})
	var calls atomic.Int32
	w.probeIcon = func(_ context.Context, data []byte) (icon.Sized, error) {
		if calls.Add(1) == 1 {
			// The first decode ignores cancellation and finishes last.
			<-gate
		}
		return icon.Probe(context.Background(), data)
	}

	require.NoError(t, w.SelectIcon(iconFile(t, 300, 100)))
	require.NoError(t, w.SelectIcon(iconFile(t, 100, 200)))

	require.Eventually(t, func() bool {
		return w.State().LogoWidth == 25
	}, 2*time.Second, 5*time.Millisecond)

	close(gate)
	w.probes.Wait()

	st := w.State()
	assert.Equal(t, 25.0, st.LogoWidth, "stale probe must not resize")
	assert.Equal(t, 50.0, st.LogoHeight)
}

func TestSelectIcon_DuringPaint(t *testing.T) {
	r := &stallingRenderer{Renderer: qr.Yeqown{}, entered: make(chan struct{}), release: make(chan struct{})}
	w := New(Options{Renderer: r, PollInterval: idle, Log: slog.New(slog.NewTextHandler(io.Discard, nil))})
	t.Cleanup(w.Close)
	w.SetURL("https://example.com")

	require.NoError(t, w.SelectIcon(iconFile(t, 200, 100)))
	<-r.entered

	// The first probe holds the lock while painting, so the second
	// selection queues behind it and wins afterwards.
	next := iconFile(t, 100, 200)
	done := make(chan error, 1)
	go func() { done <- w.SelectIcon(next) }()
	close(r.release)
	require.NoError(t, <-done)
	w.probes.Wait()

	st := w.State()
	assert.Equal(t, 25.0, st.LogoWidth)
	assert.Equal(t, 50.0, st.LogoHeight)
}

func TestSelectIcon_DecodeFailureKeepsSizing(t *testing.T) {
	w := newTestWidget(t, idle, nil)

	require.NoError(t, w.SelectIcon(&icon.File{Name: "broken.png", Data: []byte("not an image")}))
	w.probes.Wait()

	st := w.State()
	assert.NotEmpty(t, st.IconURL)
	assert.Equal(t, 100.0, st.LogoWidth)
	assert.Equal(t, 100.0, st.LogoHeight)
}

func TestPoller_Runs(t *testing.T) {
	w := newTestWidget(t, 10*time.Millisecond, nil)
	w.SetURL("https://example.com")

	require.Eventually(t, func() bool {
		return w.State().Snapshot != ""
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClose(t *testing.T) {
	icons := objecturl.NewStore("blob:")
	w := New(Options{Icons: icons, PollInterval: 5 * time.Millisecond, Log: slog.New(slog.NewTextHandler(io.Discard, nil))})

	w.SetURL("https://example.com")
	require.NoError(t, w.SelectIcon(iconFile(t, 10, 10)))

	w.Close()
	w.Close()

	assert.Zero(t, icons.Len())
	assert.ErrorIs(t, w.SelectIcon(iconFile(t, 10, 10)), ErrClosed)

	ticks := w.State().Tick
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, ticks, w.State().Tick, "poller stopped")
	assert.False(t, w.State().Mounted)
}
