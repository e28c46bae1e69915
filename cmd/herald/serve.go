package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/hexfoundry/herald/internal/bot"
	"github.com/hexfoundry/herald/internal/config"
	"github.com/hexfoundry/herald/internal/dashboard"
	"github.com/hexfoundry/herald/internal/db"
	"github.com/hexfoundry/herald/internal/delivery"
	"github.com/hexfoundry/herald/internal/message"
	"github.com/hexfoundry/herald/internal/timezone"
	"github.com/hexfoundry/herald/internal/transport/telegram"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, delivery engine, and dashboard",
		Long: `Connects to Telegram and runs everything: the command bot, the
scheduled delivery loop, the optional dashboard API, and the optional
daily stats digest. Stops cleanly on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	// .env is optional; the config file is the source of truth.
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("serve: telegram token is required (config telegram.token or HERALD_TELEGRAM_TOKEN)")
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	gdb, err := db.Connect(db.Options{Path: cfg.DB.Path, DSN: cfg.DB.DSN})
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	adapter, err := telegram.New(telegram.Options{
		Token:       cfg.Telegram.Token,
		SendTimeout: time.Duration(cfg.Scheduler.SendTimeoutSec) * time.Second,
	})
	if err != nil {
		return err
	}
	defer adapter.Close()

	engine, err := delivery.NewEngine(delivery.EngineOpts{
		DB:            gdb,
		Transport:     adapter,
		BroadcastChat: cfg.Telegram.BroadcastChatID,
		PollInterval:  time.Duration(cfg.Scheduler.PollIntervalSec) * time.Second,
		BatchLimit:    cfg.Scheduler.BatchLimit,
		Logger:        log.With().Str("component", "delivery").Logger(),
	})
	if err != nil {
		return err
	}

	zones := timezone.NewZoneCache(0)
	router, err := bot.NewRouter(bot.RouterOpts{
		DB:       gdb,
		Engine:   engine,
		Zones:    zones,
		Timezone: cfg.Timezone,
		Logger:   log.With().Str("component", "bot").Logger(),
	})
	if err != nil {
		return err
	}
	router.Attach(adapter.Bot())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)

	if cfg.Dashboard.Enabled {
		go func() {
			err := dashboard.Start(ctx, dashboard.StartOpts{
				DB:       gdb,
				Port:     cfg.Dashboard.Port,
				Timezone: cfg.Timezone,
				Zones:    zones,
				Out:      cmd.OutOrStdout(),
			})
			if err != nil {
				log.Error().Err(err).Msg("dashboard stopped")
			}
		}()
	}

	if cfg.Digest.Enabled {
		c := cron.New()
		digest := newDigestJob(gdb, adapter, cfg, zones, log)
		if _, err := c.AddFunc(cfg.Digest.Schedule, digest); err != nil {
			return fmt.Errorf("serve: digest schedule %q: %w", cfg.Digest.Schedule, err)
		}
		c.Start()
		defer c.Stop()
	}

	go watchConfig(ctx, configPath, engine, zones, log)

	log.Info().Str("config", configPath).Msg("herald running")
	go func() {
		<-ctx.Done()
		adapter.Bot().Stop()
	}()
	adapter.Bot().Start()

	log.Info().Msg("herald stopped")
	return nil
}

// newDigestJob posts the daily stats summary to the broadcast chat.
func newDigestJob(gdb *gorm.DB, adapter *telegram.Adapter,
	cfg *config.Config, zones *timezone.ZoneCache, log zerolog.Logger) func() {
	return func() {
		chat := cfg.Telegram.BroadcastChatID
		if chat == 0 {
			log.Warn().Msg("digest enabled but no broadcast chat configured")
			return
		}
		loc, err := zones.Get(cfg.Timezone)
		if err != nil {
			loc = time.Local
		}
		s, err := message.ComputeStats(gdb, time.Now(), loc)
		if err != nil {
			log.Error().Err(err).Msg("digest stats")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := adapter.Send(ctx, chat, "Daily digest\n"+s.Summary()); err != nil {
			log.Error().Err(err).Msg("digest send")
		}
	}
}

// watchConfig re-applies hot-reloadable settings when the config file
// changes on disk. Only the broadcast destination and timezone cache
// react live; everything else needs a restart.
func watchConfig(ctx context.Context, path string, engine *delivery.Engine,
	zones *timezone.ZoneCache, log zerolog.Logger) {
	err := config.Watch(ctx, path,
		func(cfg *config.Config) {
			engine.SetBroadcastChat(cfg.Telegram.BroadcastChatID)
			zones.Invalidate()
			if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				zerolog.SetGlobalLevel(lvl)
			}
			log.Info().Int64("broadcast_chat", cfg.Telegram.BroadcastChatID).
				Msg("config reloaded")
		},
		func(err error) {
			log.Warn().Err(err).Msg("config reload failed")
		},
	)
	if err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("config watch stopped")
	}
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("serve: log level %q: %w", level, err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(lvl)
	return log, nil
}
