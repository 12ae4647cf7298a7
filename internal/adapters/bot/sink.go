package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-wellness-bot/internal/domain"
)

var reminderTexts = map[domain.ReminderKind]string{
	domain.RemindWater:  "🥤 Время выпить стакан воды.",
	domain.RemindSteps:  "🚶 Скинь скрин шагов (или напиши цифрой).",
	domain.RemindWeight: "⚖️ Взвешивание. Скинь фото весов или напиши вес цифрой (например: 79.4).",
}

// Sink доставляет события планировщика в Telegram.
type Sink struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.ReminderSink = (*Sink)(nil)

// NewSink создаёт доставщик напоминаний.
func NewSink(bot *tgbotapi.BotAPI, log zerolog.Logger) *Sink {
	return &Sink{bot: bot, log: log}
}

// Fire отправляет напоминание вида kind в группу.
func (s *Sink) Fire(ctx context.Context, chatID int64, kind domain.ReminderKind) error {
	text, ok := reminderTexts[kind]
	if !ok {
		return fmt.Errorf("неизвестный вид напоминания: %s", kind)
	}
	if _, err := s.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("отправка напоминания %s: %w", kind, err)
	}
	s.log.Debug().Int64("chat", chatID).Str("kind", string(kind)).Msg("напоминание отправлено")
	return nil
}
