package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-wellness-bot/internal/domain"
	"tg-wellness-bot/internal/usecase/schedule"
	"tg-wellness-bot/internal/usecase/stats"
	"tg-wellness-bot/internal/usecase/track"
)

// Handler обслуживает вебхук бота.
type Handler struct {
	bot        *tgbotapi.BotAPI
	log        zerolog.Logger
	scheduleUC *schedule.Service
	trackUC    *track.Service
	statsUC    *stats.Service
	queue      domain.AssessmentQueue
	gate       domain.Gate
	antiSpam   time.Duration
	defaultTZ  string
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, scheduleUC *schedule.Service, trackUC *track.Service, statsUC *stats.Service, queue domain.AssessmentQueue, gate domain.Gate, antiSpam time.Duration, defaultTZ string) *Handler {
	return &Handler{
		bot:        bot,
		log:        log,
		scheduleUC: scheduleUC,
		trackUC:    trackUC,
		statsUC:    statsUC,
		queue:      queue,
		gate:       gate,
		antiSpam:   antiSpam,
		defaultTZ:  defaultTZ,
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if len(msg.Photo) > 0 && isGroup(msg.Chat) {
		h.handlePhoto(ctx, msg)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if !strings.HasPrefix(text, "/") {
		if isGroup(msg.Chat) {
			h.handleFreeText(ctx, msg, text)
		}
		return
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		h.reply(msg.Chat.ID, "Я на месте ✅\nКидай фото еды — оценю и прикину калории.\nКоманды: /bind /unbind /goal /rules /stats")
	case strings.HasPrefix(text, "/unbind"):
		h.handleUnbind(ctx, msg)
	case strings.HasPrefix(text, "/bind"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/bind"))
		h.handleBind(ctx, msg, payload)
	case strings.HasPrefix(text, "/goal"):
		payload := strings.TrimSpace(strings.TrimPrefix(text, "/goal"))
		h.handleGoal(ctx, msg.Chat.ID, payload)
	case strings.HasPrefix(text, "/rules"):
		h.reply(msg.Chat.ID, domain.DefaultRules)
	case strings.HasPrefix(text, "/stats"):
		h.handleStats(ctx, msg.Chat.ID)
	}
}

func (h *Handler) handleBind(ctx context.Context, msg *tgbotapi.Message, timezone string) {
	if !isGroup(msg.Chat) {
		h.reply(msg.Chat.ID, "Эта команда нужна в группе.")
		return
	}
	if timezone == "" {
		timezone = h.defaultTZ
	}
	if _, err := h.scheduleUC.Bind(ctx, msg.Chat.ID, timezone); err != nil {
		if errors.Is(err, schedule.ErrInvalidTimezone) {
			h.reply(msg.Chat.ID, "Не понял часовой пояс. Пример: /bind Asia/Almaty")
			return
		}
		h.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("bind: ошибка")
		h.reply(msg.Chat.ID, "Не получилось включить напоминания, попробуй ещё раз.")
		return
	}
	h.reply(msg.Chat.ID, "Ок! Напоминания включены для этой группы ✅")
}

func (h *Handler) handleUnbind(ctx context.Context, msg *tgbotapi.Message) {
	if !isGroup(msg.Chat) {
		h.reply(msg.Chat.ID, "Эта команда нужна в группе.")
		return
	}
	if err := h.scheduleUC.Unbind(ctx, msg.Chat.ID); err != nil {
		h.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("unbind: ошибка")
		h.reply(msg.Chat.ID, "Не получилось выключить напоминания, попробуй ещё раз.")
		return
	}
	h.reply(msg.Chat.ID, "Ок! Напоминания выключены для этой группы ✅")
}

func (h *Handler) handleGoal(ctx context.Context, chatID int64, payload string) {
	goal, err := h.scheduleUC.SetGoal(ctx, chatID, payload)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownGoal) {
			h.reply(chatID, "Формат: /goal cut | maintain | bulk")
			return
		}
		h.log.Error().Err(err).Int64("chat", chatID).Msg("goal: ошибка")
		h.reply(chatID, "Не получилось сохранить цель, попробуй ещё раз.")
		return
	}
	h.reply(chatID, fmt.Sprintf("Цель установлена: %s ✅", goal))
}

func (h *Handler) handleStats(ctx context.Context, chatID int64) {
	summary, err := h.statsUC.Summary(ctx, chatID, time.Now())
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("stats: ошибка")
		h.reply(chatID, "Не получилось собрать статистику, попробуй позже.")
		return
	}
	h.reply(chatID, renderStats(summary))
}

// handlePhoto молча гасит повторные фото внутри антиспам-окна и ставит
// задание в очередь: сама оценка живёт в отдельном процессе, чтобы не
// тормозить обработку команд и напоминаний.
func (h *Handler) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	ok, err := h.gate.Acquire(ctx, fmt.Sprintf("food:%d", msg.Chat.ID), h.antiSpam)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("photo: антиспам недоступен")
		return
	}
	if !ok {
		return
	}
	photo := msg.Photo[len(msg.Photo)-1]
	job := domain.AssessmentJob{
		ID:         uuid.NewString(),
		ChatID:     msg.Chat.ID,
		MessageID:  msg.MessageID,
		FileID:     photo.FileID,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.queue.Enqueue(ctx, job); err != nil {
		h.log.Error().Err(err).Int64("chat", msg.Chat.ID).Str("job", job.ID).Msg("photo: не удалось поставить задание")
		h.reply(msg.Chat.ID, "Не смог обработать фото 😅 Попробуй ещё раз чуть позже.")
		return
	}
	h.log.Debug().Int64("chat", msg.Chat.ID).Str("job", job.ID).Msg("photo: задание поставлено")
}

// handleFreeText ловит вес и шаги в обычных сообщениях. Нераспознанный
// текст игнорируется молча, бот не встревает в разговор группы.
func (h *Handler) handleFreeText(ctx context.Context, msg *tgbotapi.Message, text string) {
	userID := int64(0)
	if msg.From != nil {
		userID = msg.From.ID
	}
	if kg, ok := ParseWeight(text); ok {
		comment, err := h.trackUC.RecordWeight(ctx, msg.Chat.ID, userID, kg, time.Now())
		if err == nil {
			h.reply(msg.Chat.ID, fmt.Sprintf("Вес: %.1f кг ✅\n%s", kg, comment))
			return
		}
		if !errors.Is(err, track.ErrWeightOutOfRange) {
			h.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("weight: ошибка записи")
			return
		}
		// Число не похоже на вес — пробуем как шаги.
	}
	if steps, ok := ParseSteps(text); ok {
		err := h.trackUC.RecordSteps(ctx, msg.Chat.ID, userID, steps, time.Now())
		if err == nil {
			h.reply(msg.Chat.ID, fmt.Sprintf("Шаги: %d ✅", steps))
			return
		}
		if !errors.Is(err, track.ErrStepsOutOfRange) {
			h.log.Error().Err(err).Int64("chat", msg.Chat.ID).Msg("steps: ошибка записи")
		}
	}
}

var (
	weightRe = regexp.MustCompile(`(?i)^(?:вес\s*)?(\d{2,3}(?:[.,]\d)?)(?:\s*кг)?$`)
	stepsRe  = regexp.MustCompile(`(?i)^(\d{3,6})\s*(?:шагов|шага|шаг|steps)?$`)
)

// ParseWeight извлекает вес из сообщения вида "вес 79.4" или "79,4".
func ParseWeight(text string) (float64, bool) {
	m := weightRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseSteps извлекает шаги из сообщения вида "8500 шагов" или "8500".
func ParseSteps(text string) (int, bool) {
	m := stepsRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	value, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return value, true
}

func renderStats(s domain.StatsSummary) string {
	if s.Insufficient && s.LatestWeight == 0 {
		return "Пока нет записей веса. Напиши, например: 79.4"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Последний вес: %.1f кг (%s)\n", s.LatestWeight, s.LatestAt.Format("02.01 15:04"))
	if s.Insufficient {
		b.WriteString("Мало данных для динамики — продолжай записывать вес.")
		return b.String()
	}
	if s.Delta7 != nil {
		fmt.Fprintf(&b, "Изменение за 7 дней: %+.1f кг\n", *s.Delta7)
	}
	if s.Delta30 != nil {
		fmt.Fprintf(&b, "Изменение за 30 дней: %+.1f кг\n", *s.Delta30)
	}
	if s.AvgSteps7 != nil {
		fmt.Fprintf(&b, "Шаги за неделю: в среднем %.0f/день\n", *s.AvgSteps7)
	}
	switch s.Adherence {
	case domain.AlignmentAligned:
		fmt.Fprintf(&b, "Цель %s: идём по плану 💪", s.Goal)
	case domain.AlignmentMisaligned:
		fmt.Fprintf(&b, "Цель %s: тренд пока не туда — смотрим по 2–3 неделям.", s.Goal)
	default:
		fmt.Fprintf(&b, "Цель %s: пока без выраженного тренда.", s.Goal)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("не удалось отправить сообщение")
	}
}

func isGroup(chat *tgbotapi.Chat) bool {
	return chat != nil && (chat.IsGroup() || chat.IsSuperGroup())
}
