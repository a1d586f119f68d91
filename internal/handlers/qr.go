package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cristianadrielbraun/qrwidget/internal/qr"
)

const (
	minQRSize = 32
	maxQRSize = 2048
)

// normalizeHTTPURL validates and normalizes a URL string for QR generation.
// It ensures an http/https scheme, a non-empty hostname, and returns a cleaned absolute URL.
func normalizeHTTPURL(s string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", fmt.Errorf("URL parameter is required")
	}
	// If missing scheme, default to https
	if !strings.Contains(v, "://") {
		v = "https://" + v
	}
	u, err := url.ParseRequestURI(v)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("only http and https URLs are supported")
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a valid host")
	}
	if len(v) > 4096 {
		return "", fmt.Errorf("URL is too long")
	}
	return u.String(), nil
}

// parseSize reads the size query parameter, falling back to def.
func parseSize(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", raw)
	}
	if n < minQRSize || n > maxQRSize {
		return 0, fmt.Errorf("size must be between %d and %d", minQRSize, maxQRSize)
	}
	return n, nil
}

// QRCodeHandler renders a standalone PNG QR code for the url query
// parameter, without touching any session.
func (h *Handler) QRCodeHandler(c *gin.Context) {
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL parameter is required"})
		return
	}

	normalizedURL, err := normalizeHTTPURL(rawURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	size, err := parseSize(c.Query("size"), h.cfg.Render.Size)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level, err := qr.ParseLevel(c.DefaultQuery("level", h.cfg.Render.Level))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	canvas, err := h.renderer.Render(c.Request.Context(), qr.Params{
		Value: normalizedURL,
		Size:  size,
		Level: level,
	})
	h.metrics.ObserveRender(h.backend, time.Since(start), err)
	if err != nil {
		if errors.Is(err, qr.ErrEmptyValue) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("render qr", "url", normalizedURL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create QR code"})
		return
	}

	data, err := canvas.PNG()
	if err != nil {
		h.log.Error("encode qr png", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode QR code"})
		return
	}

	if c.Query("download") != "" {
		c.Header("Content-Disposition", `attachment; filename="qrcode.png"`)
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/png", data)
}
