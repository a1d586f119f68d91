package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	toast "github.com/cristianadrielbraun/qrwidget/web/components/ui/toast"
)

// parseVariant maps a form value onto a toast variant.
func parseVariant(variant string) toast.Variant {
	switch variant {
	case "error", "destructive":
		return toast.VariantError
	case "warning":
		return toast.VariantWarning
	case "info":
		return toast.VariantInfo
	default:
		return toast.VariantSuccess
	}
}

// toastProps builds the props shared by every toast this app shows.
// Dismissible toasts stay until closed; others fade after two seconds.
func toastProps(title, description string, v toast.Variant, dismissible bool) toast.Props {
	p := toast.Props{
		Title:       title,
		Description: description,
		Variant:     v,
		Position:    toast.PositionBottomRight,
		Dismissible: dismissible,
		Icon:        true,
	}
	if !dismissible {
		p.Duration = 2000
	}
	return p
}

func (h *Handler) renderToast(c *gin.Context, p toast.Props) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := toast.Toast(p).Render(c.Request.Context(), c.Writer); err != nil {
		h.log.Error("render toast", "error", err)
	}
}

// GenericToast returns a Toast component rendered as HTML for HTMX swaps.
// The page posts here after the output link is clicked.
func (h *Handler) GenericToast(c *gin.Context) {
	h.renderToast(c, toastProps(
		c.PostForm("title"),
		c.PostForm("description"),
		parseVariant(c.PostForm("variant")),
		c.PostForm("dismissible") == "on",
	))
}

// alert answers a widget request with a blocking error toast appended to
// the page's toast stack, whatever element the request targeted.
func (h *Handler) alert(c *gin.Context, message string) {
	c.Header("HX-Retarget", "#toasts")
	c.Header("HX-Reswap", "beforeend")
	h.renderToast(c, toastProps(message, "", toast.VariantError, true))
}
