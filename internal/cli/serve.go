package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/dialogs/internal/channel"
	"github.com/soyeahso/dialogs/internal/channel/discord"
	"github.com/soyeahso/dialogs/internal/channel/irc"
	"github.com/soyeahso/dialogs/internal/config"
	"github.com/soyeahso/dialogs/internal/directory"
	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/hub"
	"github.com/soyeahso/dialogs/internal/logging"
	"github.com/soyeahso/dialogs/internal/recorder"
	"github.com/soyeahso/dialogs/internal/store"
	"github.com/soyeahso/dialogs/internal/syncer"
	"github.com/soyeahso/dialogs/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dialogs server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating state directories: %w", err)
			}

			log, err = buildLogger(cfg.Logging)
			if err != nil {
				return err
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			dbPath := paths.DatabasePath(cfg)
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			rs := store.NewRecordingStore(db)
			log.Info().Str("path", dbPath).Msg("session store ready")

			resolver := newResolver(cfg.Directory, log)

			h := hub.New(log)
			bus := hub.NewBroadcaster(h, rs, resolver, log)
			rec := recorder.New(rs, bus, log)
			router := channel.NewRouter(rec, log)

			channels := channel.NewRegistry(log)
			if cfg.Channels.IRC != nil {
				ch := irc.New(*cfg.Channels.IRC, log)
				wireChannel(ctx, ch, router, log)
				channels.Register(ch)
			}
			if cfg.Channels.Discord != nil {
				ch := discord.New(*cfg.Channels.Discord, log)
				wireChannel(ctx, ch, router, log)
				channels.Register(ch)
			}

			opts := []web.ServerOption{
				web.WithNotifier(bus),
				web.WithChannels(channels),
			}

			if syncEnabled(cfg.Sync) && cfg.Directory.BaseURL != "" {
				sy := syncer.New(rs, resolver, log)
				if err := sy.Start(cfg.Sync.Schedule); err != nil {
					return fmt.Errorf("starting directory sync: %w", err)
				}
				defer sy.Stop()
				opts = append(opts, web.WithSyncer(sy))
			}

			if channels.Count() > 0 {
				if err := channels.StartAll(ctx); err != nil {
					return fmt.Errorf("starting channels: %w", err)
				}
				defer channels.StopAll(context.Background())
				log.Info().Int("channels", channels.Count()).Msg("recording channels active")
			} else {
				log.Warn().Msg("no channels configured — nothing will record")
			}

			srv := web.New(cfg, db, resolver, h, log, opts...)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override server port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}

// wireChannel routes a channel's inbound traffic through the recording
// command router and sends any operator reply back where it came from.
func wireChannel(ctx context.Context, ch domain.Channel, router *channel.Router, log *logging.Logger) {
	ch.OnMessage(func(msg domain.InboundMessage) {
		reply := router.Handle(msg)
		if reply == "" {
			return
		}
		out := domain.OutboundMessage{
			ChannelID: msg.ChannelID,
			To:        msg.ChatID,
			Body:      reply,
		}
		if err := ch.Send(ctx, out); err != nil {
			log.Warn().Err(err).Str("channel", ch.ID()).Msg("sending reply failed")
		}
	})
}

// newResolver builds the identity resolver over the configured CMS
// directory, or an empty static source when none is configured.
func newResolver(cfg config.DirectoryConfig, log *logging.Logger) *directory.Resolver {
	ttl := time.Duration(cfg.TTLMinutes) * time.Minute

	var source directory.PageSource
	if cfg.BaseURL != "" {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		source = directory.NewCMSClient(cfg.BaseURL, cfg.Token, cfg.DatabaseID, timeout, log)
	} else {
		log.Warn().Msg("no directory configured — internal names will be displayed as-is")
		source = &directory.StaticSource{}
	}
	return directory.NewResolver(source, ttl, log)
}

// buildLogger constructs the root logger from the logging config,
// honoring a --log-level override.
func buildLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	level := cfg.Level
	if logLevel != "" {
		level = logLevel
	}

	if cfg.File != "" {
		path := cfg.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(paths.Logs, path)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		return logging.New(f, level), nil
	}

	if cfg.ConsoleStyle == "json" {
		return logging.New(os.Stderr, level), nil
	}
	return logging.New(nil, level), nil
}

func syncEnabled(cfg config.SyncConfig) bool {
	return cfg.Enabled == nil || *cfg.Enabled
}
