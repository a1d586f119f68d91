package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cristianadrielbraun/qrwidget/internal/config"
	"github.com/cristianadrielbraun/qrwidget/internal/icon"
	"github.com/cristianadrielbraun/qrwidget/internal/metrics"
	"github.com/cristianadrielbraun/qrwidget/internal/objecturl"
	"github.com/cristianadrielbraun/qrwidget/internal/qr"
	"github.com/cristianadrielbraun/qrwidget/internal/session"
	"github.com/cristianadrielbraun/qrwidget/internal/widget"
	"github.com/cristianadrielbraun/qrwidget/web/components"
	"github.com/cristianadrielbraun/qrwidget/web/pages"
)

// SessionCookie names the cookie that ties a browser to its widget.
const SessionCookie = "qrwidget_session"

// IconsPrefix is where icon object URLs are served from.
const IconsPrefix = "/api/icons/"

const widgetKey = "widget"

// Deps are the collaborators a Handler needs.
type Deps struct {
	Sessions *session.Registry
	Icons    *objecturl.Store
	Renderer qr.Renderer
	Backend  string
	Metrics  *metrics.Metrics
	Log      *slog.Logger
	Config   *config.Config
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	sessions *session.Registry
	icons    *objecturl.Store
	renderer qr.Renderer
	backend  string
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      *config.Config
}

// New returns a new Handler instance.
func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Renderer == nil {
		d.Renderer = qr.Yeqown{}
		d.Backend = "yeqown"
	}
	return &Handler{
		sessions: d.Sessions,
		icons:    d.Icons,
		renderer: d.Renderer,
		backend:  d.Backend,
		metrics:  d.Metrics,
		log:      d.Log,
		cfg:      d.Config,
	}
}

// Router wires every route onto a fresh gin engine.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(h.log))
	r.Use(gin.Recovery())

	r.GET("/healthz", h.Healthz)
	r.GET("/sitemap.xml", h.SitemapXML)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/qr", h.QRCodeHandler)
		api.POST("/htmx/toast", h.GenericToast)
		api.GET("/icons/:id", h.IconBlob)

		w := api.Group("/widget")
		w.POST("/url", h.Session(), h.SetURL)
		w.POST("/icon", h.Session(), h.SelectIcon)
		w.GET("/output", h.Output)
		w.GET("/qrcode.png", h.CanvasPNG)
	}

	r.GET("/", h.Session(), h.HomePage)
	return r
}

// RequestLogger logs one line per request through slog.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Session attaches the caller's widget to the request, opening a session
// and setting the cookie when there is none yet.
func (h *Handler) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		prev, _ := c.Cookie(SessionCookie)
		id, w := h.sessions.Acquire(prev)
		if id != prev {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, id, 0, "/", "", false, true)
		}
		c.Set(widgetKey, w)
		c.Next()
	}
}

// lookupWidget finds the caller's widget without opening a session.
func (h *Handler) lookupWidget(c *gin.Context) (*widget.Widget, bool) {
	id, err := c.Cookie(SessionCookie)
	if err != nil || id == "" {
		return nil, false
	}
	return h.sessions.Lookup(id)
}

func widgetFrom(c *gin.Context) *widget.Widget {
	return c.MustGet(widgetKey).(*widget.Widget)
}

// HomePage renders the generator form for the caller's widget.
func (h *Handler) HomePage(c *gin.Context) {
	st := widgetFrom(c).State()
	form := components.FormData{
		URL:     st.URL,
		IconURL: st.IconURL,
		Accept:  icon.Accept,
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := pages.HomePage(form, h.outputData(st)).Render(c.Request.Context(), c.Writer); err != nil {
		h.log.Error("render home page", "error", err)
	}
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// SitemapXML serves a minimal sitemap for the site.
func (h *Handler) SitemapXML(c *gin.Context) {
	c.Header("Content-Type", "application/xml; charset=utf-8")
	scheme := "https"
	host := c.Request.Host
	if xf := c.Request.Header.Get("X-Forwarded-Proto"); xf != "" {
		scheme = xf
	} else if c.Request.TLS == nil {
		scheme = "http"
	}
	xml := "" +
		"<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
		"<urlset xmlns=\"http://www.sitemaps.org/schemas/sitemap/0.9\">\n" +
		"  <url>\n" +
		"    <loc>" + scheme + "://" + host + "/" + "</loc>\n" +
		"    <changefreq>monthly</changefreq>\n" +
		"    <priority>1.0</priority>\n" +
		"  </url>\n" +
		"</urlset>\n"
	c.String(http.StatusOK, xml)
}
