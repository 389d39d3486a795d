package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/ayusman/holohud/internal/app"
	"github.com/ayusman/holohud/internal/capture"
	"github.com/ayusman/holohud/internal/config"
	"github.com/ayusman/holohud/internal/detector"
	"github.com/ayusman/holohud/internal/interaction"
	"github.com/ayusman/holohud/internal/logging"
	"github.com/ayusman/holohud/internal/server"
	"github.com/ayusman/holohud/internal/store"
	"github.com/ayusman/holohud/internal/tray"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File}, os.Stderr)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("holohud failed")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	log.WithField("path", st.Path()).Info("session store ready")

	application := app.New(app.Config{
		Screen: interaction.Size{Width: cfg.Screen.Width, Height: cfg.Screen.Height},
		Camera: capture.Options{
			DeviceID: cfg.Camera.Device,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
		},
		IdleFPS:         cfg.Vision.IdleFPS,
		ActiveFPS:       cfg.Vision.ActiveFPS,
		IdleTimeout:     cfg.Vision.IdleTimeout,
		MotionThreshold: cfg.Vision.MotionThreshold,
		RenderFPS:       cfg.Render.FPS,
		Detector: detector.Config{
			MaxHands:        cfg.Detector.MaxHands,
			MinConfidence:   cfg.Detector.MinConfidence,
			MinTrackingConf: cfg.Detector.MinTrackingConf,
			IdleTimeout:     cfg.Detector.IdleTimeout,
		},
		Store:  st,
		Record: cfg.Store.Record,
		Logger: log,
	})

	if err := application.Start(); err != nil {
		log.WithError(err).Error("camera unavailable, serving a static HUD")
	}
	defer application.Stop()

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.WithField("dir", staticDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Store:     st,
		HUD:       application,
		Logger:    log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(cfg.Server.Addr)
		stop()
	}()

	if cfg.Tray.Enabled {
		runTray(ctx, stop, application, hudURL(cfg.Server.Addr), log)
	} else {
		<-ctx.Done()
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}

// runTray blocks on the tray menu until Quit or ctx ends.
func runTray(ctx context.Context, stop context.CancelFunc, application *app.App, url string, log logrus.FieldLogger) {
	t := tray.New(application.IsEnabled())
	t.OnToggle(application.SetEnabled)
	t.OnOpen(func() {
		if err := browser.OpenURL(url); err != nil {
			log.WithError(err).Warn("failed to open browser")
		}
	})
	t.OnQuit(stop)

	feed, cancel := application.Subscribe()
	defer cancel()
	go t.Watch(feed)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

// hudURL turns a listen address into a browsable URL.
func hudURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.holohud/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
