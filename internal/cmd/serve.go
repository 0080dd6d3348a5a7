package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MeKo-Tech/fourierwaves/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live preview (frames, session API, websocket stream)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("preview-size", 256, "Default preview size in pixels")
	serveCmd.Flags().Int("max-size", 2048, "Largest size a client may request")
	serveCmd.Flags().Int("fps", 15, "Frames per second pushed to websocket clients")
	serveCmd.Flags().Int("max-concurrent-renders", runtime.NumCPU(), "Max concurrent frame renders (default: number of CPUs)")
	serveCmd.Flags().Duration("render-timeout", 30*time.Second, "Timeout per frame render")
	serveCmd.Flags().String("png-compression", "speed", "PNG compression (default, speed, best, none)")
	serveCmd.Flags().String("cache-control", "no-store", "Cache-Control header for rendered frames")
	serveCmd.Flags().Int64("seed", 0, "Randomizer seed (0 seeds from the clock)")
	serveCmd.Flags().Bool("persist", false, "Write session changes back to the --preset file")
	serveCmd.Flags().String("pack", "", "Also serve the frames of this frame pack under /pack/")

	bindFlags(serveCmd, map[string]string{
		"serve.addr":                   "addr",
		"serve.preview_size":           "preview-size",
		"serve.max_size":               "max-size",
		"serve.fps":                    "fps",
		"serve.max_concurrent_renders": "max-concurrent-renders",
		"serve.render_timeout":         "render-timeout",
		"serve.png_compression":        "png-compression",
		"serve.cache_control":          "cache-control",
		"serve.seed":                   "seed",
		"serve.persist":                "persist",
		"serve.pack":                   "pack",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	session, err := loadSession()
	if err != nil {
		return err
	}

	addr := viper.GetString("serve.addr")
	presetPath := ""
	if viper.GetBool("serve.persist") {
		presetPath = viper.GetString("preset_path")
		if presetPath == "" {
			return fmt.Errorf("--persist requires --preset")
		}
	}

	cfg := server.Config{
		PreviewSize:          viper.GetInt("serve.preview_size"),
		MaxSize:              viper.GetInt("serve.max_size"),
		FPS:                  viper.GetInt("serve.fps"),
		MaxConcurrentRenders: viper.GetInt("serve.max_concurrent_renders"),
		RenderTimeout:        viper.GetDuration("serve.render_timeout"),
		PNGCompression:       viper.GetString("serve.png_compression"),
		CacheControl:         viper.GetString("serve.cache_control"),
		Seed:                 viper.GetInt64("serve.seed"),
		PresetPath:           presetPath,
	}
	preview := server.New(session, cfg, logger)

	mux := http.NewServeMux()
	mux.Handle("/", preview.Handler())

	packPath := viper.GetString("serve.pack")
	if packPath != "" {
		ph, err := server.NewPackHandler(server.PackConfig{PackPath: packPath}, logger)
		if err != nil {
			return err
		}
		defer ph.Close()
		mux.Handle("/pack/", withCORS(ph.Handler()))
	}

	logger.Info("preview server listening",
		"addr", addr,
		"preset", viper.GetString("preset_path"),
		"layers", session.Stack.Count,
		"fps", cfg.FPS,
		"max_concurrent_renders", cfg.MaxConcurrentRenders,
		"pack", packPath,
	)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down preview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
