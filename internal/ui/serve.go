package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/chronoflow/chronoflow/internal/assistant"
	"github.com/chronoflow/chronoflow/internal/auth"
	"github.com/chronoflow/chronoflow/internal/feed"
	"github.com/chronoflow/chronoflow/internal/httpapi"
	"github.com/chronoflow/chronoflow/internal/llm"
	"github.com/chronoflow/chronoflow/internal/logging"
	"github.com/chronoflow/chronoflow/internal/reminder"
	"github.com/chronoflow/chronoflow/internal/schedule"
	"github.com/chronoflow/chronoflow/internal/slots"
	"github.com/chronoflow/chronoflow/internal/telegram"
)

// shutdownTimeout bounds graceful shutdown of the HTTP server and reminders.
const shutdownTimeout = 10 * time.Second

func (a *App) serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web API, Telegram bot and reminders",
		Long: `Start the long-running services:

  - the JSON API and live schedule stream used by the web UI
  - the Telegram bot, when telegram.bot_token is set
  - Telegram reminders, when telegram.reminders is enabled

Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.config.Server.Listen = listen
			}
			if err := a.config.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			logger, err := logging.New(logging.Config{Level: a.config.Log.Level, Format: a.config.Log.Format})
			if err != nil {
				return err
			}
			defer func() { _ = logging.Sync(logger) }()

			if err := a.ensureStore(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, logger)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default from config)")
	return cmd
}

// serve wires the services around one store and blocks until ctx is done
// or a service fails.
func (a *App) serve(ctx context.Context, logger *zap.Logger) error {
	cfg := a.config
	loc := cfg.Location()
	finder := slots.New(cfg.Workdays(), cfg.Schedule.DayStart, cfg.Schedule.DayEnd)

	broker := feed.NewBroker(feed.DefaultBuffer)
	store := feed.WrapStore(a.store, broker)

	issuer, err := auth.NewIssuer(cfg.Server.JWTSecret, cfg.TokenTTL())
	if err != nil {
		return fmt.Errorf("configuring tokens: %w", err)
	}
	callbacks := &auth.Callbacks{}

	webAssistant, botAssistant := a.assistants(store, finder, logger)

	opts := httpapi.Options{
		Items:                  store,
		Users:                  store,
		Broker:                 broker,
		Issuer:                 issuer,
		Callbacks:              callbacks,
		Logger:                 logger.Named("http"),
		BotToken:               cfg.Telegram.BotToken,
		BotUsername:            cfg.Telegram.BotUsername,
		LoginMaxAge:            cfg.LoginMaxAge(),
		CORSOrigins:            cfg.Server.CORSOrigins,
		AssistantRatePerMinute: cfg.Server.AssistantRatePerMinute,
		VisibleDays:            cfg.Schedule.VisibleDays,
		Location:               loc,
	}
	if webAssistant != nil {
		opts.Assistant = webAssistant
	}
	srv, err := httpapi.New(opts)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Telegram.BotToken != "" {
		api, err := telegram.NewAPI(cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		botOpts := telegram.Options{
			Finder:    finder,
			Location:  loc,
			Logger:    logger.Named("telegram"),
			RateLimit: rate.Every(time.Second),
			Burst:     5,
		}
		if botAssistant != nil {
			botOpts.Asker = botAssistant
		}
		bot := telegram.New(api, store, botOpts)

		unregister := callbacks.Register(func(ctx context.Context, u *schedule.User) {
			if u.ChatID == 0 {
				return
			}
			msg := fmt.Sprintf("🔐 New ChronoFlow web sign-in for %s.", u.DisplayName())
			if err := bot.Notify(ctx, u.ChatID, msg); err != nil {
				logger.Warn("login notification failed", zap.String("user_id", u.ID), zap.Error(err))
			}
		})
		defer unregister()

		g.Go(func() error { return bot.Run(ctx, api) })

		if cfg.Telegram.Reminders {
			reminders := reminder.New(store, bot, reminder.Options{
				Lead:     cfg.ReminderLead(),
				Location: loc,
				Logger:   logger.Named("reminder"),
			})
			if err := reminders.Start(); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				reminders.Stop(stopCtx)
			}()
		}
	} else {
		logger.Info("telegram bot disabled, no bot token configured")
	}

	g.Go(func() error { return srv.Start(cfg.Server.Listen) })
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("chronoflow stopped")
	return nil
}

// assistants builds the web and Telegram assistants. Both are nil when
// the LLM client cannot be created; the rest of the server still runs.
func (a *App) assistants(store schedule.Repository, finder *slots.Finder, logger *zap.Logger) (web, bot *assistant.Assistant) {
	cfg := a.config
	client, err := llm.NewClient(cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.BaseURL, cfg.LLM.APIKey)
	if err != nil {
		logger.Warn("assistant disabled", zap.String("provider", cfg.LLM.Provider), zap.Error(err))
		return nil, nil
	}

	opts := assistant.Options{
		Finder:   finder,
		Location: cfg.Location(),
		Logger:   logger.Named("assistant"),
	}
	web = assistant.New(client, store, opts)
	opts.Source = schedule.SourceTelegram
	bot = assistant.New(client, store, opts)
	return web, bot
}
