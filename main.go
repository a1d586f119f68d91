package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/cristianadrielbraun/qrwidget/internal/config"
	"github.com/cristianadrielbraun/qrwidget/internal/handlers"
	"github.com/cristianadrielbraun/qrwidget/internal/icon"
	"github.com/cristianadrielbraun/qrwidget/internal/metrics"
	"github.com/cristianadrielbraun/qrwidget/internal/objecturl"
	"github.com/cristianadrielbraun/qrwidget/internal/qr"
	"github.com/cristianadrielbraun/qrwidget/internal/session"
	"github.com/cristianadrielbraun/qrwidget/internal/widget"
)

var version = "v0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "qrwidget",
		Short: "QR code generator with logo overlay and PNG download",
	}

	// --- serve command -------------------------------------------------------
	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the QR generator page",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	root.AddCommand(serveCmd)

	// --- render command ------------------------------------------------------
	var opts renderOptions
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render one QR code to a PNG file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	renderCmd.Flags().StringVar(&opts.url, "url", "", "Value to encode")
	renderCmd.Flags().StringVar(&opts.iconPath, "icon", "", "PNG, JPEG or SVG drawn in the centre")
	renderCmd.Flags().IntVar(&opts.size, "size", qr.DefaultSize, "Output edge length in pixels")
	renderCmd.Flags().StringVar(&opts.level, "level", string(qr.LevelHigh), "Error correction level (L, M, Q, H)")
	renderCmd.Flags().StringVar(&opts.backend, "backend", "yeqown", "Render backend (yeqown, skip2)")
	renderCmd.Flags().StringVarP(&opts.out, "out", "o", "qrcode.png", "Output file, - for stdout")
	renderCmd.Flags().BoolVar(&opts.dataURL, "data-url", false, "Write a PNG data URL instead of raw PNG")
	_ = renderCmd.MarkFlagRequired("url")
	root.AddCommand(renderCmd)

	// --- version command -----------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("qrwidget %s\n", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// runServe wires the widget sessions to the HTTP surface and blocks until
// SIGINT or SIGTERM.
func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	renderer, err := qr.New(cfg.Render.Backend)
	if err != nil {
		return err
	}
	level, err := qr.ParseLevel(cfg.Render.Level)
	if err != nil {
		return err
	}

	log.Info("starting qrwidget", "version", version, "port", cfg.Port, "backend", cfg.Render.Backend)

	m := metrics.New()
	icons := objecturl.NewStore(handlers.IconsPrefix)
	sessions := session.NewRegistry(func() *widget.Widget {
		return widget.New(widget.Options{
			Renderer:     renderer,
			Backend:      cfg.Render.Backend,
			Icons:        icons,
			Size:         cfg.Render.Size,
			Level:        level,
			PollInterval: cfg.PollInterval.Duration,
			Log:          log,
			Metrics:      m,
		})
	}, cfg.SessionTTL.Duration, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sessions.StartReaper(ctx, cfg.SessionTTL.Duration/4)

	gin.SetMode(gin.ReleaseMode)
	h := handlers.New(handlers.Deps{
		Sessions: sessions,
		Icons:    icons,
		Renderer: renderer,
		Backend:  cfg.Render.Backend,
		Metrics:  m,
		Log:      log,
		Config:   cfg,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
	sessions.Close()

	log.Info("goodbye")
	return nil
}

type renderOptions struct {
	url      string
	iconPath string
	size     int
	level    string
	backend  string
	out      string
	dataURL  bool
}

// runRender paints a single QR code the same way a widget does and writes
// it to opts.out.
func runRender(ctx context.Context, opts renderOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	renderer, err := qr.New(opts.backend)
	if err != nil {
		return err
	}
	level, err := qr.ParseLevel(opts.level)
	if err != nil {
		return err
	}

	p := qr.Params{Value: opts.url, Size: opts.size, Level: level}
	if opts.iconPath != "" {
		data, err := os.ReadFile(opts.iconPath)
		if err != nil {
			return fmt.Errorf("read icon: %w", err)
		}
		sized, err := icon.Probe(ctx, data)
		if err != nil {
			return fmt.Errorf("decode icon %s: %w", opts.iconPath, err)
		}
		p.Logo = sized.Image
		p.LogoWidth = sized.Width
		p.LogoHeight = sized.Height
	}

	canvas, err := renderer.Render(ctx, p)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	var payload []byte
	if opts.dataURL {
		u, err := canvas.DataURL()
		if err != nil {
			return err
		}
		payload = []byte(u + "\n")
	} else if payload, err = canvas.PNG(); err != nil {
		return err
	}

	if opts.out == "-" {
		_, err = stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(opts.out, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	fmt.Fprintf(stdout, "wrote %s (%dx%d)\n", opts.out, canvas.Size(), canvas.Size())
	return nil
}
