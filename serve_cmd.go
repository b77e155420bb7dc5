package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/readaloud/internal/config"
	"github.com/dgnsrekt/readaloud/internal/httpapi"
	"github.com/dgnsrekt/readaloud/internal/observability"
	"github.com/dgnsrekt/readaloud/internal/synth"
)

const shutdownTimeout = 10 * time.Second

var (
	envFile string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the speech synthesis proxy",
		Long: paragraph(fmt.Sprintf("\nServe %s in front of ElevenLabs, so the API key stays on one machine. "+
			"The key is read from serve.api_key or ELEVENLABS_API_KEY, which may live in a .env file.",
			keyword("/api/tts/speak and /api/tts/voices"))),
		Example: paragraph("readaloud serve\nreadaloud serve --addr :8787 --env-file ~/.config/readaloud/.env"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := serveConfig(cfg.Serve)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, c)
		},
	}
)

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from serve.addr)")
	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with ELEVENLABS_API_KEY")
	_ = viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
}

// serveConfig fills the API key from the environment when the config has
// none.
func serveConfig(c config.ServeConfig) config.ServeConfig {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("could not load env file", "path", envFile, "err", err)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	return c
}

func newServer(c config.ServeConfig) (http.Handler, *synth.Upstream) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(appName, reg)
	upstream := synth.NewUpstream(c.UpstreamConfig())
	return httpapi.New(upstream, metrics, observability.HandlerFor(reg)).Router(), upstream
}

func runServer(ctx context.Context, c config.ServeConfig) error {
	handler, upstream := newServer(c)
	if !upstream.Configured() {
		log.Warn("no API key: speak requests will fail until ELEVENLABS_API_KEY is set")
	}

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serve: listening", "addr", c.Addr, "upstream", c.UpstreamURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
