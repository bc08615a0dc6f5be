package main

import (
	"context"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/culturessh"
	"pkt.systems/culturessh/internal/appconfig"
	"pkt.systems/culturessh/internal/authlog"
	"pkt.systems/culturessh/internal/invite"
	"pkt.systems/culturessh/session"
	"pkt.systems/culturessh/sshserver"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var enableHTTP bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the ssh endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if enableHTTP {
				cfg.HTTP.Enabled = true
			}

			store, closeStore, err := openAuthStore(cmd.Context(), cfg.AuthLog)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore.Close() }()

			fetcher, err := newInviteFetcher(cfg.Invite, logger)
			if err != nil {
				return err
			}
			signer, err := sshserver.EnsureHostKey(cfg.SSH.KeyDir, logger)
			if err != nil {
				return err
			}

			opts := []culturessh.ServerOption{culturessh.WithSSH()}
			if cfg.HTTP.Enabled {
				opts = append(opts, culturessh.WithHTTP())
			}
			server, err := culturessh.New(toServerConfig(cfg), culturessh.ServerDeps{
				Auth:    authlog.New(store, logger),
				Fetcher: fetcher,
				Signer:  signer,
			}, opts...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().BoolVar(&enableHTTP, "http", false, "enable the diagnostics http endpoint")
	return cmd
}

func toServerConfig(cfg appconfig.Config) culturessh.ServerConfig {
	return culturessh.ServerConfig{
		SSH: sshserver.Config{
			Addr:        cfg.SSH.Addr,
			KeyDir:      cfg.SSH.KeyDir,
			IdleTimeout: time.Duration(cfg.SSH.IdleTimeoutSeconds) * time.Second,
		},
		Session: session.Config{
			InteractiveUser: cfg.SSH.InteractiveUser,
			InviteLink:      cfg.TUI.InviteLink,
			Tick:            time.Duration(cfg.TUI.TickMillis) * time.Millisecond,
		},
		HTTP: culturessh.HTTPConfig{Addr: cfg.HTTP.Addr},
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openAuthStore(ctx context.Context, cfg appconfig.AuthLogConfig) (authlog.Store, io.Closer, error) {
	if cfg.SQLitePath == "" {
		pslog.Ctx(ctx).Info("auth log in memory")
		return authlog.NewMemoryStore(), nopCloser{}, nil
	}
	store, err := authlog.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	pslog.Ctx(ctx).Info("auth log opened", "path", cfg.SQLitePath)
	return store, store, nil
}

func newInviteFetcher(cfg appconfig.InviteConfig, logger pslog.Logger) (session.InviteFetcher, error) {
	creds, err := invite.CredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	if !creds.Configured() {
		logger.Info("discord invite disabled", "reason", "DISCORD_BOT_TOKEN or DISCORD_CHANNEL_ID unset")
		return nil, nil
	}
	logger.Info("discord invite enabled", "channel", creds.ChannelID)
	return invite.NewClient(creds, invite.Options{
		APIBase: cfg.APIBase,
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:  logger,
	}), nil
}
