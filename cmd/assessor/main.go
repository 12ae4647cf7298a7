package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"tg-wellness-bot/internal/adapters/repo"
	"tg-wellness-bot/internal/adapters/vision"
	"tg-wellness-bot/internal/domain"
	"tg-wellness-bot/internal/infra/config"
	"tg-wellness-bot/internal/infra/db"
	applog "tg-wellness-bot/internal/infra/log"
	"tg-wellness-bot/internal/infra/metrics"
	"tg-wellness-bot/internal/infra/openai"
	"tg-wellness-bot/internal/infra/queue"
	"tg-wellness-bot/internal/usecase/assess"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "assessor")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("assessor: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	var assessQueue domain.AssessmentQueue
	if cfg.AMQPURL != "" {
		rabbit, err := queue.NewRabbitAssessQueue(cfg.AMQPURL, cfg.Queues.Assess)
		if err != nil {
			logger.Fatal().Err(err).Msg("assessor: нет подключения к AMQP")
		}
		defer rabbit.Close()
		assessQueue = rabbit
	} else {
		assessQueue = queue.NewRedisAssessQueue(redisClient, cfg.Queues.Assess)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("assessor: не удалось создать бота")
	}

	repoAdapter := repo.NewPostgres(pool)
	files := vision.NewTelegramFiles(botAPI)
	openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
	model := vision.NewOpenAI(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	engine := assess.NewService(model, domain.DefaultRules, cfg.Assess.ScoreMin, cfg.Assess.ScoreMax, assess.RetryPolicy{
		MaxAttempts: cfg.Assess.MaxAttempts,
		Backoff:     cfg.Assess.Backoff,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.Port))

	worker := &worker{
		bot:    botAPI,
		log:    logger,
		groups: repoAdapter,
		files:  files,
		engine: engine,
	}

	logger.Info().Msg("assessor: запущен")
	var g errgroup.Group
	g.SetLimit(cfg.Assess.Workers)
	for {
		job, err := assessQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error().Err(err).Msg("assessor: ошибка чтения очереди")
			continue
		}
		g.Go(func() error {
			worker.process(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	logger.Info().Msg("assessor: остановка")
}

type worker struct {
	bot    *tgbotapi.BotAPI
	log    zerolog.Logger
	groups domain.GroupRepo
	files  domain.FileFetcher
	engine *assess.Service
}

// process выполняет одно задание: скачивает фото, читает цель группы,
// получает вердикт и отвечает на исходное сообщение.
func (w *worker) process(ctx context.Context, job domain.AssessmentJob) {
	log := w.log.With().Str("job", job.ID).Int64("chat", job.ChatID).Logger()

	image, err := w.files.Fetch(ctx, job.FileID)
	if err != nil {
		log.Error().Err(err).Msg("assessor: не удалось скачать фото")
		w.reply(job, "Не смог обработать фото 😅 Попробуй другое или подпиши, что на тарелке.")
		return
	}

	goal := domain.GoalMaintain
	group, err := w.groups.GetGroup(ctx, job.ChatID)
	if err == nil {
		goal = group.Goal
	} else if !errors.Is(err, domain.ErrGroupNotFound) {
		log.Error().Err(err).Msg("assessor: не удалось прочитать группу, цель по умолчанию")
	}

	verdict := w.engine.Assess(ctx, image, goal)
	log.Info().Int("score", verdict.Score).Str("alignment", string(verdict.Alignment)).Bool("degraded", verdict.Degraded).Msg("assessor: вердикт готов")
	w.reply(job, renderVerdict(verdict, goal))
}

func (w *worker) reply(job domain.AssessmentJob, text string) {
	msg := tgbotapi.NewMessage(job.ChatID, text)
	msg.ReplyToMessageID = job.MessageID
	if _, err := w.bot.Send(msg); err != nil {
		w.log.Error().Err(err).Str("job", job.ID).Msg("assessor: не удалось отправить ответ")
	}
}

func renderVerdict(v domain.Verdict, goal domain.GoalKind) string {
	var b strings.Builder
	if v.Dish != "" {
		fmt.Fprintf(&b, "Блюдо: %s\n", v.Dish)
	}
	fmt.Fprintf(&b, "Оценка: %d\n", v.Score)
	if v.Calories != "" {
		fmt.Fprintf(&b, "Калории: %s\n", v.Calories)
	}
	fmt.Fprintf(&b, "Почему: %s\n", v.Rationale)
	if v.Advice != "" {
		fmt.Fprintf(&b, "Совет: %s\n", v.Advice)
	}
	switch v.Alignment {
	case domain.AlignmentAligned:
		fmt.Fprintf(&b, "Для цели %s — хороший выбор 👍", goal)
	case domain.AlignmentMisaligned:
		fmt.Fprintf(&b, "Для цели %s — не лучший выбор ⚠️", goal)
	default:
		fmt.Fprintf(&b, "Для цели %s — нейтрально.", goal)
	}
	if v.Degraded {
		b.WriteString("\n(Оценка могла получиться неточной.)")
	}
	return b.String()
}
