package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hray3182/DeskPal/internal/bot"
	"github.com/hray3182/DeskPal/internal/bot/handlers"
	"github.com/hray3182/DeskPal/internal/config"
	"github.com/hray3182/DeskPal/internal/logging"
	"github.com/hray3182/DeskPal/internal/notify"
	"github.com/hray3182/DeskPal/internal/scheduler"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reminder service (and the Telegram bot when configured)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, opts, cmd.ErrOrStderr(), func(a *app) error {
				return serve(ctx, a, cmd.OutOrStdout())
			})
		},
	}
}

func serve(ctx context.Context, a *app, out io.Writer) error {
	cfg := a.cfg

	var api *tgbotapi.BotAPI
	if cfg.TelegramToken != "" {
		var err error
		api, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("failed to create Telegram API: %w", err)
		}
	}

	var (
		polisher notify.Polisher
		sender   notify.MessageSender
	)
	if a.ai != nil {
		polisher = a.ai
	}
	if api != nil {
		sender = api
	}
	collab := buildCollaborators(cfg, polisher, sender, out, a.log)

	sched := scheduler.New(a.repo, a.tracker, collab, cfg.Reminder, logging.Component(a.log, "scheduler"))
	a.svc.SetWaker(sched)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	if cfg.ReminderConfigPath != "" {
		base, err := config.EnvReminder()
		if err != nil {
			a.log.Warn().Err(err).Msg("Invalid reminder environment; using defaults as reload base")
			base = config.DefaultReminderSettings()
		}
		watcher := config.NewReminderWatcher(cfg.ReminderConfigPath, base, sched, logging.Component(a.log, "config"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watcher.Watch(ctx); err != nil {
				a.log.Error().Err(err).Msg("Reminder settings watcher stopped")
			}
		}()
	}

	if api != nil {
		botLog := logging.Component(a.log, "bot")
		if cfg.TelegramChatID == 0 {
			botLog.Warn().Msg("TELEGRAM_CHAT_ID is not set; the bot only answers /start")
		}
		h := handlers.New(api, a.svc, a.tools, sched, cfg.TelegramChatID, botLog)
		b := bot.New(api, h, botLog)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				botLog.Error().Err(err).Msg("Bot stopped")
			}
		}()
	}

	a.log.Info().
		Str("db", cfg.DBDriver).
		Bool("ai", a.ai != nil).
		Bool("telegram", api != nil).
		Bool("push", collab.Push != nil).
		Msg("DeskPal is running")

	<-ctx.Done()
	a.log.Info().Msg("Shutting down...")
	sched.Stop()
	wg.Wait()
	return nil
}

// buildCollaborators picks the reminder surfaces the configuration enables.
// The console is always the last resort for on-screen notifications.
func buildCollaborators(cfg *config.Config, polisher notify.Polisher, sender notify.MessageSender, out io.Writer, log zerolog.Logger) scheduler.Collaborators {
	notifyLog := logging.Component(log, "notify")

	var notifier notify.Notifier = notify.NewConsoleNotifier(out)
	if cfg.NotifyCommand != "" {
		notifier = notify.NewCommandNotifier(cfg.NotifyCommand, notifier, notifyLog)
	}

	collab := scheduler.Collaborators{
		Polisher: polisher,
		Notifier: notifier,
	}
	if cfg.SpeakCommand != "" {
		collab.Speaker = notify.NewCommandSpeaker(cfg.SpeakCommand)
	}

	var pushes notify.MultiPush
	if sender != nil && cfg.TelegramChatID != 0 {
		pushes = append(pushes, notify.NewTelegramPush(sender, cfg.TelegramChatID, notifyLog))
	}
	if cfg.PushPlusToken != "" {
		pushes = append(pushes, notify.NewPushPlus(cfg.PushPlusToken, notifyLog))
	}
	if len(pushes) > 0 {
		collab.Push = pushes
	}
	return collab
}
