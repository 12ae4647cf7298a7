package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"tg-wellness-bot/internal/adapters/bot"
	"tg-wellness-bot/internal/adapters/repo"
	"tg-wellness-bot/internal/infra/config"
	"tg-wellness-bot/internal/infra/db"
	applog "tg-wellness-bot/internal/infra/log"
	"tg-wellness-bot/internal/infra/metrics"
	"tg-wellness-bot/internal/usecase/schedule"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "scheduler")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	sched, err := schedule.ParseSchedule(cfg.Reminders.WaterEvery, cfg.Reminders.WaterFrom, cfg.Reminders.WaterUntil, cfg.Reminders.StepsAt, cfg.Reminders.WeightAt, cfg.Reminders.WeightDOW)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: некорректное расписание")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: не удалось создать бота")
	}

	repoAdapter := repo.NewPostgres(pool)
	sink := bot.NewSink(botAPI, logger)
	scheduleService := schedule.NewService(repoAdapter, repoAdapter, sink, sched, cfg.Reminders.FanOut, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.Port))

	logger.Info().Msg("scheduler: запущен")
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case <-ticker.C:
			if err := scheduleService.Tick(ctx, time.Now()); err != nil {
				logger.Error().Err(err).Msg("scheduler: проход завершился ошибкой")
			}
		}
	}
}
