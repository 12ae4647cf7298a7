package vision

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tg-wellness-bot/internal/domain"
	"tg-wellness-bot/internal/infra/metrics"
)

// Фото с весов и тарелок укладываются в мегабайты, лимит защитный.
const maxFileSize = 20 << 20

// TelegramFiles скачивает файлы через Bot API.
type TelegramFiles struct {
	bot  *tgbotapi.BotAPI
	http *http.Client
}

var _ domain.FileFetcher = (*TelegramFiles)(nil)

// NewTelegramFiles создаёт загрузчик файлов.
func NewTelegramFiles(bot *tgbotapi.BotAPI) *TelegramFiles {
	return &TelegramFiles{bot: bot, http: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch возвращает содержимое файла по его идентификатору.
func (f *TelegramFiles) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := f.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("telegram get file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	start := time.Now()
	resp, err := f.http.Do(req)
	metrics.ObserveNetworkRequest("telegram", "download_file", "file", start, err)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}
