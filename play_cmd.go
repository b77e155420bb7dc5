package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/readaloud/internal/library"
	"github.com/dgnsrekt/readaloud/internal/observability"
	"github.com/dgnsrekt/readaloud/internal/tts"
)

var (
	echo        bool
	echoWidth   uint
	startAt     int
	metricsAddr string

	playCmd = &cobra.Command{
		Use:   "play [PATH]",
		Short: "Read chapters without the TUI",
		Long: paragraph(fmt.Sprintf("\nRead every chapter from PATH in order, %s. Stop with ctrl+c.",
			keyword("without a user interface"))),
		Example: paragraph("readaloud play book/OEBPS\nreadaloud play --echo --from 3 book/"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := pathFromArgs(args)
			if err != nil {
				return err
			}
			lib, err := library.Open(path, showAllFiles)
			if err != nil {
				return err
			}
			if startAt > 1 {
				if _, ok := lib.Seek(startAt - 1); !ok {
					return fmt.Errorf("chapter %d out of range (1-%d)", startAt, lib.Len())
				}
			}
			if metricsAddr != "" {
				go serveMetrics(metricsAddr)
			}
			return readHeadless(cmd.Context(), lib, cmd.OutOrStdout())
		},
	}
)

func init() {
	playCmd.Flags().BoolVarP(&echo, "echo", "e", false, "print each passage as it is read")
	playCmd.Flags().UintVarP(&echoWidth, "width", "w", 80, "word-wrap echoed passages at width")
	playCmd.Flags().IntVar(&startAt, "from", 1, "chapter number to start at")
	playCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func serveMetrics(addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           observability.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server failed", "err", err)
	}
}

// readHeadless builds the providers and reads lib from its current chapter
// to the end.
func readHeadless(ctx context.Context, lib *library.Library, w io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	watchConfig(a.player)

	if err := a.player.LoadVoices(ctx); err != nil {
		return err
	}

	r := &reader{player: a.player, out: w}
	if echo {
		if r.render, err = newEchoRenderer(w, int(echoWidth)); err != nil { //nolint:gosec
			return err
		}
	}
	err = r.read(ctx, lib)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// reader speaks chapters one after another.
type reader struct {
	player tts.Provider
	out    io.Writer
	// render formats passage i for echo; nil disables echo.
	render func(i int, text string) (string, error)
}

func (r *reader) read(ctx context.Context, lib *library.Library) error {
	updates := r.player.Subscribe()
	for {
		ch, ok := lib.Current()
		if !ok {
			return nil
		}
		text, err := library.Load(ch.Path)
		if err != nil {
			return err
		}

		fmt.Fprintf(r.out, "%s %s\n", keyword(ch.Title), dim(fmt.Sprintf("%d/%d", lib.Index()+1, lib.Len())))
		log.Debug("play: chapter", "index", lib.Index(), "path", ch.Path, "chars", len(text))
		if err := r.readText(ctx, text, updates); err != nil {
			return err
		}
		if _, ok := lib.Next(); !ok {
			return nil
		}
	}
}

// readText speaks text and waits until it completed, failed or ctx ended.
// Empty chapters are skipped.
func (r *reader) readText(ctx context.Context, text string, updates <-chan tts.Snapshot) error {
	done := make(chan struct{})
	err := r.player.Speak(text, tts.SpeakOptions{OnComplete: func() { close(done) }})
	if errors.Is(err, tts.ErrEmptyText) {
		return nil
	}
	if err != nil {
		return err
	}

	session := r.player.State().Session.ID
	last := -1
	for {
		select {
		case <-ctx.Done():
			r.player.Stop()
			return ctx.Err()
		case <-done:
			return nil
		case snap, ok := <-updates:
			if !ok {
				return tts.ErrClosed
			}
			if snap.Session.ID != session {
				continue
			}
			switch snap.Phase {
			case tts.PhaseErrored:
				if snap.Err != nil {
					return snap.Err
				}
				return errors.New("playback failed")
			case tts.PhaseStopped:
				return nil
			}
			if r.render != nil && snap.Chunk > last && snap.ChunkText != "" {
				last = snap.Chunk
				out, err := r.render(snap.Chunk, snap.ChunkText)
				if err != nil {
					return err
				}
				fmt.Fprint(r.out, out)
			}
		}
	}
}

func newEchoRenderer(w io.Writer, width int) (func(int, string) (string, error), error) {
	style := glamour.WithStandardStyle(styles.NoTTYStyle)
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, fmt.Errorf("unable to create renderer: %w", err)
	}
	return func(i int, text string) (string, error) {
		return r.Render(fmt.Sprintf("**%d.** %s", i+1, text))
	}, nil
}
