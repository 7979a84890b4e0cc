package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"chatfunnel/internal/config"
	"chatfunnel/internal/leads"
	"chatfunnel/internal/logging"
	"chatfunnel/internal/session"
	"chatfunnel/internal/tracking"
	"chatfunnel/internal/web"
)

const (
	sweepInterval = time.Minute
	devStaticDir  = "internal/web/static"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat landing page and admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			closeLog := setupLogging(cfg)
			defer closeLog()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, slog.Default())
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides config)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	g, err := loadScript(cfg.ScriptPath)
	if err != nil {
		return err
	}
	log.Info("script loaded", "title", g.Title(), "messages", g.Len())

	store, err := leads.Open(ctx, leads.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.URL,
		Schema: cfg.Database.Schema,
		Logger: log,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := tracking.New(tracking.MetaConfig{
		PixelID:     cfg.Meta.PixelID,
		AccessToken: cfg.Meta.AccessToken,
	}, logging.WithComponent(log, "tracking"))

	if cfg.DefaultAdmin() {
		log.Warn("using the built-in admin credentials; set ADMIN_EMAIL and ADMIN_PASSWORD")
	}
	secret := cfg.Admin.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("ADMIN_SECRET not set; admin logins will not survive a restart")
	}

	sessions := session.NewMemoryStore[*web.Visit]()
	go session.RunSweeper(ctx, sessions, sweepInterval, cfg.SessionIdleTimeout, logging.WithComponent(log, "session"))

	staticDir := cfg.StaticDir
	if cfg.DevMode && staticDir == "" {
		staticDir = devStaticDir
		log.Info("dev mode: serving assets from disk", "dir", staticDir)
	}

	srv := &web.Server{
		Script:         g,
		Sessions:       sessions,
		Leads:          leads.NewService(store, tracker, log),
		Ready:          store,
		Admin:          web.AdminAuth{Email: cfg.Admin.Email, Password: cfg.Admin.Password, Secret: secret},
		TranscriptFont: cfg.TranscriptFont,
		StaticDir:      staticDir,
		Log:            logging.WithComponent(log, "web"),
	}
	if err := srv.ListenAndServe(ctx, cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("server stopped")
	return nil
}
