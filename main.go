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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"telegram-support-bot/internal/handlers"
	"telegram-support-bot/internal/models"
	"telegram-support-bot/internal/orchestrator"
	"telegram-support-bot/internal/scheduler"
	"telegram-support-bot/internal/utils"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "supportbot",
		Short:        "Telegram emotional support bot",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newTickCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Long-poll Telegram and run the daily schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp()
			utils.Must(err)
			defer a.Close()
			return serve(ctx, a)
		},
	}
}

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "tick <morningCheckin|eveningReflection|weeklyAnalysis>",
		Short:     "Fire one outreach tick now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(models.TickMorningCheckin), string(models.TickEveningReflection), string(models.TickWeeklyAnalysis)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := models.ParseTickKind(args[0])
			if !ok {
				return fmt.Errorf("unknown tick %q", args[0])
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.orch.HandleTick(cmd.Context(), kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: planned %d, sent %d, failed %d\n", kind, r.Planned, r.Sent, r.Failed)
			return nil
		},
	}
}

func serve(ctx context.Context, a *app) error {
	log := a.log
	if err := handlers.RegisterCommands(a.bot); err != nil {
		log.Warn().Err(err).Msg("command menu not registered")
	}

	sched, err := scheduler.Start(ctx, a.orch, a.cfg.Location(), log)
	if err != nil {
		return err
	}
	defer func() { _ = sched.Shutdown() }()

	mailbox := orchestrator.NewMailbox(log)
	h := handlers.NewHandler(a.bot, a.orch, mailbox, log)

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", a.cfg.MetricsAddr).Msg("metrics listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		updates := a.bot.GetUpdatesChan(u)

		log.Info().Str("bot", a.bot.Self.UserName).Msg("listening for updates")
		h.Listen(gctx, updates)
		a.bot.StopReceivingUpdates()
		return nil
	})

	err = g.Wait()
	mailbox.Close()
	log.Info().Msg("stopped")
	return err
}
