package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-wellness-bot/internal/domain"
	"tg-wellness-bot/internal/infra/metrics"
)

// RetryPolicy ограничивает повторы обращения к модели.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Service превращает фото и цель группы в вердикт.
// Любой исход — пригодный вердикт: ошибки модели и кривые ответы
// деградируют до запасного, но наружу не вылетают.
type Service struct {
	vision   domain.VisionModel
	rules    string
	scoreMin int
	scoreMax int
	retry    RetryPolicy
	log      zerolog.Logger
}

// NewService создаёт движок оценки.
func NewService(vision domain.VisionModel, rules string, scoreMin, scoreMax int, retry RetryPolicy, log zerolog.Logger) *Service {
	if rules == "" {
		rules = domain.DefaultRules
	}
	if scoreMax <= scoreMin {
		scoreMin, scoreMax = 1, 10
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	return &Service{
		vision:   vision,
		rules:    rules,
		scoreMin: scoreMin,
		scoreMax: scoreMax,
		retry:    retry,
		log:      log,
	}
}

const fallbackRationale = "Не смог полностью оценить блюдо по фото. Попробуй другое фото или подпиши, что это."

var strictness = map[domain.GoalKind]string{
	domain.GoalCut:      "Будь строже: контролируй калории/сладкое/жирное, упор на белок и овощи.",
	domain.GoalMaintain: "Баланс: без жесткача, но по делу.",
	domain.GoalBulk:     "Упор на белок и достаточную калорийность; отмечай качество продуктов.",
}

// Assess оценивает фото относительно цели. Ошибок не возвращает:
// деградированный вердикт помечен Degraded и хранит сырой ответ модели.
func (s *Service) Assess(ctx context.Context, image []byte, goal domain.GoalKind) domain.Verdict {
	started := time.Now()
	verdict := s.assess(ctx, image, goal)
	metrics.ObserveAssessment(verdict.Degraded, started)
	return verdict
}

func (s *Service) assess(ctx context.Context, image []byte, goal domain.GoalKind) domain.Verdict {
	raw, err := s.generateWithRetry(ctx, image, goal)
	if err != nil {
		s.log.Warn().Err(err).Str("goal", string(goal)).Msg("assess: модель недоступна, отдаём запасной вердикт")
		return s.fallback(raw)
	}
	verdict, ok := s.parse(raw)
	if !ok {
		s.log.Warn().Str("goal", string(goal)).Msg("assess: ответ модели не разобран, отдаём запасной вердикт")
		return s.fallback(raw)
	}
	return verdict
}

func (s *Service) generateWithRetry(ctx context.Context, image []byte, goal domain.GoalKind) (string, error) {
	prompt := s.buildPrompt(goal)
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		raw, err := s.vision.Generate(ctx, image, prompt)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if attempt == s.retry.MaxAttempts {
			break
		}
		wait := s.retry.Backoff * time.Duration(attempt)
		s.log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("assess: повтор запроса к модели")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", fmt.Errorf("vision generate: %w", lastErr)
}

func (s *Service) buildPrompt(goal domain.GoalKind) string {
	tone, ok := strictness[goal]
	if !ok {
		tone = strictness[domain.GoalMaintain]
	}
	return fmt.Sprintf(`Ты — помощник по питанию. Цель группы: %s. %s

%s

По фото еды определи блюдо (если не уверен — 2–3 варианта), оцени его и верни JSON формата
{"dish": "...", "score": N, "calories": "...", "alignment": "aligned|neutral|misaligned", "why": "...", "advice": "..."}
без пояснений вокруг. Поле score — целое число от %d до %d. Поле alignment — поддерживает ли блюдо цель %s.
Калории укажи диапазоном, примерно.`, goal, tone, s.rules, s.scoreMin, s.scoreMax, goal)
}

type verdictPayload struct {
	Dish      string  `json:"dish"`
	Score     float64 `json:"score"`
	Calories  string  `json:"calories"`
	Alignment string  `json:"alignment"`
	Why       string  `json:"why"`
	Advice    string  `json:"advice"`
}

// parse строго валидирует ответ модели. Частично типизированные данные
// наружу не отдаются: либо полный вердикт, либо ok=false.
func (s *Service) parse(raw string) (domain.Verdict, bool) {
	content := stripFences(strings.TrimSpace(raw))
	if content == "" {
		return domain.Verdict{}, false
	}
	var payload verdictPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return domain.Verdict{}, false
	}
	dish := strings.TrimSpace(payload.Dish)
	why := strings.TrimSpace(payload.Why)
	if dish == "" || why == "" {
		return domain.Verdict{}, false
	}

	degraded := false
	score := int(payload.Score)
	if score < s.scoreMin {
		score = s.scoreMin
		degraded = true
	}
	if score > s.scoreMax {
		score = s.scoreMax
		degraded = true
	}

	alignment := domain.Alignment(strings.ToLower(strings.TrimSpace(payload.Alignment)))
	switch alignment {
	case domain.AlignmentAligned, domain.AlignmentNeutral, domain.AlignmentMisaligned:
	default:
		alignment = domain.AlignmentNeutral
		degraded = true
	}

	return domain.Verdict{
		Dish:         dish,
		Score:        score,
		Calories:     strings.TrimSpace(payload.Calories),
		Alignment:    alignment,
		Rationale:    why,
		Advice:       strings.TrimSpace(payload.Advice),
		RawModelText: raw,
		Degraded:     degraded,
	}, true
}

// fallback собирает запасной вердикт, сохраняя сырой текст модели.
func (s *Service) fallback(raw string) domain.Verdict {
	return domain.Verdict{
		Score:        (s.scoreMin + s.scoreMax) / 2,
		Alignment:    domain.AlignmentNeutral,
		Rationale:    fallbackRationale,
		RawModelText: raw,
		Degraded:     true,
	}
}

// stripFences убирает обёртку ```json ... ```, которую модели любят
// добавлять вопреки просьбе.
func stripFences(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
