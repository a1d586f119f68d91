package handlers

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianadrielbraun/qrwidget/internal/config"
	"github.com/cristianadrielbraun/qrwidget/internal/metrics"
	"github.com/cristianadrielbraun/qrwidget/internal/objecturl"
	"github.com/cristianadrielbraun/qrwidget/internal/qr"
	"github.com/cristianadrielbraun/qrwidget/internal/session"
	"github.com/cristianadrielbraun/qrwidget/internal/widget"
)

type testServer struct {
	router   *gin.Engine
	icons    *objecturl.Store
	sessions *session.Registry
	cookie   *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.PollInterval = config.Duration{Duration: 10 * time.Millisecond}
	cfg.MaxIconBytes = 64 << 10

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	icons := objecturl.NewStore(IconsPrefix)
	reg := session.NewRegistry(func() *widget.Widget {
		return widget.New(widget.Options{
			Icons:        icons,
			Backend:      "yeqown",
			PollInterval: cfg.PollInterval.Duration,
			Log:          log,
			Metrics:      m,
		})
	}, time.Minute, log)
	t.Cleanup(reg.Close)

	h := New(Deps{
		Sessions: reg,
		Icons:    icons,
		Renderer: qr.Yeqown{},
		Backend:  "yeqown",
		Metrics:  m,
		Log:      log,
		Config:   cfg,
	})
	return &testServer{router: h.Router(), icons: icons, sessions: reg}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if s.cookie != nil {
		req.AddCookie(s.cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			s.cookie = c
		}
	}
	return rec
}

func (s *testServer) postURL(t *testing.T, u string) {
	t.Helper()
	form := url.Values{"url": {u}}
	req := httptest.NewRequest(http.MethodPost, "/api/widget/url", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := s.do(t, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func (s *testServer) postIcon(t *testing.T, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	return s.postIconAs(t, data, "image/png")
}

func (s *testServer) postIconAs(t *testing.T, data []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="icon"; filename="logo.png"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/widget/icon", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.do(t, req)
}

func (s *testServer) output(t *testing.T) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/widget/output", nil)
	req.Header.Set("Accept", "application/json")
	rec := s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func scan(t *testing.T, img image.Image) string {
	t.Helper()
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	require.NoError(t, err)
	res, err := zxqr.NewQRCodeReader().Decode(bmp, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
	require.NoError(t, err)
	return res.GetText()
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHomePage(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>QR Code Generator</title>")
	assert.Contains(t, body, `accept="image/png, image/jpeg"`)
	assert.Contains(t, body, `id="output"`)
	assert.Contains(t, body, `hx-trigger="every 10ms"`)
	assert.Contains(t, body, "width:200px;height:200px;")
	assert.Contains(t, body, `hx-post="/api/htmx/toast"`)
	assert.Contains(t, body, `href="/api/widget/qrcode.png"`)
	require.NotNil(t, s.cookie)
	assert.NotEmpty(t, s.cookie.Value)
}

func TestSession_CookieReused(t *testing.T) {
	s := newTestServer(t)
	s.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	first := s.cookie.Value

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, first, s.cookie.Value)
}

func TestOutput_SnapshotFollowsURL(t *testing.T) {
	s := newTestServer(t)
	s.postURL(t, "https://example.com")

	require.Eventually(t, func() bool {
		out := s.output(t)
		snap, _ := out["snapshot"].(string)
		return strings.HasPrefix(snap, qr.DataURLPrefix)
	}, 2*time.Second, 10*time.Millisecond)

	out := s.output(t)
	assert.Equal(t, "https://example.com", out["url"])
	assert.Equal(t, true, out["mounted"])
	assert.Equal(t, 100.0, out["logo_width"])

	req := httptest.NewRequest(http.MethodGet, "/api/widget/output", nil)
	rec := s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="data:image/png;base64,`)
	assert.Contains(t, body, " download ")
	assert.Contains(t, body, "background-image:url(")
}

func TestOutput_EmptyURLUnmounts(t *testing.T) {
	s := newTestServer(t)
	s.postURL(t, "https://example.com")
	s.postURL(t, "")

	out := s.output(t)
	assert.Equal(t, false, out["mounted"])
}

func TestSelectIcon_NoFile(t *testing.T) {
	s := newTestServer(t)
	rec := s.postIcon(t, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "#toasts", rec.Header().Get("HX-Retarget"))
	assert.Contains(t, rec.Body.String(), widget.AlertNoFile)
	assert.Zero(t, s.icons.Len())
}

func TestSelectIcon_TooLarge(t *testing.T) {
	s := newTestServer(t)
	rec := s.postIcon(t, bytes.Repeat([]byte{0}, 128<<10))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "#toasts", rec.Header().Get("HX-Retarget"))
	assert.Zero(t, s.icons.Len())
}

func TestSelectIcon_PreviewAndSizing(t *testing.T) {
	s := newTestServer(t)
	data := pngBytes(t, 200, 100)

	rec := s.postIcon(t, data)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `id="icon-preview"`)
	assert.Contains(t, body, `src="`+IconsPrefix)

	require.Eventually(t, func() bool {
		out := s.output(t)
		return out["logo_width"] == 50.0 && out["logo_height"] == 25.0
	}, 2*time.Second, 10*time.Millisecond)

	iconURL := s.output(t)["icon_url"].(string)
	blob := s.do(t, httptest.NewRequest(http.MethodGet, iconURL, nil))
	require.Equal(t, http.StatusOK, blob.Code)
	assert.Equal(t, "image/png", blob.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", blob.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, data, blob.Body.Bytes())

	s.postIcon(t, pngBytes(t, 10, 40))
	gone := s.do(t, httptest.NewRequest(http.MethodGet, iconURL, nil))
	assert.Equal(t, http.StatusNotFound, gone.Code)
	assert.Equal(t, 1, s.icons.Len())
}

func TestQRCodeHandler(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/qr?url=example.com/path", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 200), img.Bounds())
	assert.Equal(t, "https://example.com/path", scan(t, img))
}

func TestQRCodeHandler_Size(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/qr?url=https://example.com&size=320&level=m&download=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	cfg, err := png.DecodeConfig(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 320, cfg.Height)
}

func TestQRCodeHandler_BadRequest(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"missing url": "/api/qr",
		"bad scheme":  "/api/qr?url=ftp://example.com",
		"bad size":    "/api/qr?url=example.com&size=abc",
		"tiny size":   "/api/qr?url=example.com&size=4",
		"bad level":   "/api/qr?url=example.com&level=Z",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGenericToast(t *testing.T) {
	s := newTestServer(t)
	form := url.Values{"title": {"Copied"}, "variant": {"warning"}, "dismissible": {"on"}}
	req := httptest.NewRequest(http.MethodPost, "/api/htmx/toast", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := s.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Copied")
	assert.Contains(t, body, `data-variant="warning"`)
	assert.Contains(t, body, "data-toast-dismiss")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, httptest.NewRequest(http.MethodGet, "/api/qr?url=example.com", nil))

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `qrwidget_render_total{backend="yeqown",status="success"} 1`)
}

func TestNormalizeHTTPURL(t *testing.T) {
	got, err := normalizeHTTPURL("  example.com ")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got)

	_, err = normalizeHTTPURL("ftp://example.com")
	assert.Error(t, err)
}

func TestSelectIcon_RejectsNonImage(t *testing.T) {
	s := newTestServer(t)
	rec := s.postIconAs(t, []byte("<script>alert(document.cookie)</script>"), "text/html")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "#toasts", rec.Header().Get("HX-Retarget"))
	assert.Contains(t, rec.Body.String(), AlertUnsupported)
	assert.NotContains(t, rec.Body.String(), "<script>")
	assert.Zero(t, s.icons.Len())
}

func TestSelectIcon_ContentTypeFromBytes(t *testing.T) {
	s := newTestServer(t)
	data := pngBytes(t, 8, 8)
	rec := s.postIconAs(t, data, "text/html")
	require.Equal(t, http.StatusOK, rec.Code)

	iconURL, _ := s.output(t)["icon_url"].(string)
	require.True(t, strings.HasPrefix(iconURL, IconsPrefix))

	s.cookie = nil
	blob := s.do(t, httptest.NewRequest(http.MethodGet, iconURL, nil))
	require.Equal(t, http.StatusOK, blob.Code)
	assert.Equal(t, "image/png", blob.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", blob.Header().Get("X-Content-Type-Options"))
}

func TestOutput_WithoutSessionOpensNone(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/widget/output", nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
		assert.Contains(t, rec.Body.String(), `id="output"`)
	}
	assert.Zero(t, s.sessions.Len())

	metricsRec := s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metricsRec.Body.String(), "qrwidget_active_widgets 0")
}

func TestOutput_UnknownCookie(t *testing.T) {
	s := newTestServer(t)
	s.cookie = &http.Cookie{Name: SessionCookie, Value: "stale"}

	out := s.output(t)
	assert.Equal(t, false, out["mounted"])
	assert.Equal(t, "", out["snapshot"])
	assert.Zero(t, s.sessions.Len())
}

func TestCanvasPNG(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/widget/qrcode.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.postURL(t, "")
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/widget/qrcode.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s.postURL(t, "https://example.com/canvas")
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/widget/qrcode.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 200), img.Bounds())
	assert.Equal(t, "https://example.com/canvas", scan(t, img))
}

func TestAlertToast_SharesProps(t *testing.T) {
	s := newTestServer(t)
	rec := s.postIcon(t, nil)

	body := rec.Body.String()
	assert.Contains(t, body, `data-variant="error"`)
	assert.Contains(t, body, "data-toast-dismiss")
	assert.Contains(t, body, `data-duration="0"`)
}
