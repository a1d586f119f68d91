package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cristianadrielbraun/qrwidget/internal/icon"
	"github.com/cristianadrielbraun/qrwidget/internal/objecturl"
	"github.com/cristianadrielbraun/qrwidget/internal/widget"
	"github.com/cristianadrielbraun/qrwidget/web/components"
)

// SetURL takes the text field value. The value is encoded as typed.
func (h *Handler) SetURL(c *gin.Context) {
	widgetFrom(c).SetURL(c.PostForm("url"))
	c.Status(http.StatusNoContent)
}

// AlertUnsupported is shown for uploads that are not PNG or JPEG.
const AlertUnsupported = "Please select a PNG or JPEG image"

// SelectIcon takes the file picker upload and answers with the icon
// preview. A rejected or missing upload answers with an alert toast.
func (h *Handler) SelectIcon(c *gin.Context) {
	w := widgetFrom(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxIconBytes)

	f, err := readIcon(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.alert(c, fmt.Sprintf("Icon is larger than %d bytes", h.cfg.MaxIconBytes))
			return
		}
		if errors.Is(err, icon.ErrUnsupportedFormat) {
			h.alert(c, AlertUnsupported)
			return
		}
		h.log.Warn("read icon upload", "error", err)
		h.alert(c, widget.AlertNoFile)
		return
	}

	if err := w.SelectIcon(f); err != nil {
		if errors.Is(err, widget.ErrNoFile) {
			h.alert(c, widget.AlertNoFile)
			return
		}
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = components.IconPreview(w.State().IconURL).Render(c.Request.Context(), c.Writer)
}

// readIcon returns the uploaded icon, or nil when the form carries none.
// The content type comes from the bytes, never from the part header.
func readIcon(c *gin.Context) (*icon.File, error) {
	fh, err := c.FormFile("icon")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if fh.Size == 0 && fh.Filename == "" {
		return nil, nil
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	contentType, err := icon.UploadType(data)
	if err != nil {
		return nil, err
	}
	return &icon.File{
		Name:        fh.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// Output answers with the output link for the latest snapshot, or with the
// widget state as JSON when asked for it. Polling never opens a session; a
// caller without one gets the empty link.
func (h *Handler) Output(c *gin.Context) {
	var st widget.State
	if w, ok := h.lookupWidget(c); ok {
		st = w.State()
	}

	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.JSON(http.StatusOK, gin.H{
			"url":         st.URL,
			"icon_url":    st.IconURL,
			"logo_width":  st.LogoWidth,
			"logo_height": st.LogoHeight,
			"tick":        st.Tick,
			"snapshot":    st.Snapshot,
			"mounted":     st.Mounted,
		})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = components.OutputLink(h.outputData(st)).Render(c.Request.Context(), c.Writer)
}

// IconBlob serves the bytes behind an icon object URL.
func (h *Handler) IconBlob(c *gin.Context) {
	b, err := h.icons.Lookup(c.Param("id"))
	if errors.Is(err, objecturl.ErrRevoked) {
		c.JSON(http.StatusNotFound, gin.H{"error": "icon not found"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, b.ContentType, b.Data)
}

// CanvasPNG serves the caller's mounted canvas as a PNG file, rendered on
// demand rather than waiting for the next snapshot.
func (h *Handler) CanvasPNG(c *gin.Context) {
	w, ok := h.lookupWidget(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session"})
		return
	}
	canvas := w.Canvas()
	if canvas == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "nothing to render, set a URL first"})
		return
	}
	data, err := canvas.PNG()
	if err != nil {
		h.log.Error("encode canvas png", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode QR code"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="qrcode.png"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", data)
}

func (h *Handler) outputData(st widget.State) components.OutputData {
	return components.OutputData{
		Snapshot: st.Snapshot,
		Size:     h.cfg.Render.Size,
		Refresh:  fmt.Sprintf("every %dms", h.cfg.PollInterval.Milliseconds()),
	}
}
