package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/pong-client/internal/channel"
	"github.com/DoyleJ11/pong-client/internal/client"
	"github.com/DoyleJ11/pong-client/internal/config"
	"github.com/DoyleJ11/pong-client/internal/i18n"
	"github.com/DoyleJ11/pong-client/internal/logging"
	"github.com/DoyleJ11/pong-client/internal/session"
	"github.com/DoyleJ11/pong-client/internal/statusapi"
	"github.com/DoyleJ11/pong-client/internal/tournament"
	"github.com/DoyleJ11/pong-client/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pong:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg config.Config
	cmd := &cobra.Command{
		Use:           "pong",
		Short:         "Play online pong in the terminal",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.Bind(cmd, &cfg)
	return cmd
}

func run(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := logging.New(cfg.LogLevel, cfg.LogFile, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	tr, err := i18n.New(cfg.Lang)
	if err != nil {
		return err
	}
	server, err := cfg.ServerURL()
	if err != nil {
		return err
	}
	cookie, err := cfg.Cookie()
	if err != nil {
		return err
	}
	httpClient, err := session.NewHTTPClient(server, cookie)
	if err != nil {
		return err
	}

	term, err := tui.OpenTermbox()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	termOpen := true
	closeTerm := func() {
		if termOpen {
			term.Close()
			termOpen = false
		}
	}
	defer closeTerm()
	surface := tui.NewSurface(term)

	opts := channel.DefaultOptions()
	opts.Heartbeat = cfg.Heartbeat
	opts.BaseDelay = cfg.ReconnectBase
	opts.MaxDelay = cfg.ReconnectCap
	opts.MaxAttempts = cfg.MaxReconnects
	dialer := channel.WebsocketDialer{HTTPClient: httpClient, ReadLimit: 1 << 20}

	mgr := channel.NewManager(ctx, dialer, opts, log)
	defer mgr.Shutdown()

	var loginURL string
	c := client.New(client.Deps{
		Guard:      session.NewGuard(httpClient, cfg.ProfileURL(), surface, log),
		Channel:    mgr,
		Painter:    surface,
		Display:    surface,
		Translator: tr,
	}, client.Options{
		GameURL:       cfg.GameURL(),
		LoginURL:      cfg.LoginURL(),
		Frame:         cfg.Frame,
		InputInterval: cfg.InputInterval,
		ResumeGrace:   cfg.ResumeGrace,
		OnAuthFailure: func(u string) { loginURL = u },
	}, log)
	surface.Follow(c.View)

	hub := tournament.NewHub(ctx, func(ctx context.Context, id string) (*tournament.Watcher, error) {
		return tournament.NewWatcher(ctx, id, cfg.TournamentURL(id), dialer, opts, surface, log)
	}, log)

	log.Info("starting",
		zap.String("server", cfg.Server),
		zap.String("lang", tr.Language().String()),
		zap.Bool("tournament", cfg.Tournament != ""),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Run(gctx) })
	g.Go(func() error {
		return tui.NewKeyboard(term, c, cfg.KeyHold, surface.Redraw, log).Run(gctx)
	})
	if cfg.Tournament != "" {
		g.Go(func() error {
			if _, err := hub.Ensure(cfg.Tournament); err != nil {
				log.Warn("tournament not followed", zap.String("tournament", cfg.Tournament), zap.Error(err))
			}
			return nil
		})
	}
	if cfg.StatusAddr != "" {
		srv := &http.Server{
			Addr:              cfg.StatusAddr,
			Handler:           statusapi.SetupRoutes(c, hub),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Info("status api listening", zap.String("addr", cfg.StatusAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	runErr := g.Wait()
	closeErr := multierr.Combine(c.Close(), hub.Shutdown())
	closeTerm()

	if loginURL != "" {
		fmt.Fprintf(os.Stderr, "Your session has expired. Sign in at %s and try again.\n", loginURL)
	}
	if errors.Is(runErr, tui.ErrQuit) {
		runErr = nil
	}
	if runErr != nil {
		log.Error("session ended", zap.Error(runErr))
	} else {
		log.Info("session ended")
	}
	return multierr.Append(runErr, closeErr)
}
