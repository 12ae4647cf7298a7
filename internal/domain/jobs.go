package domain

import "time"

// AssessmentJob задание на оценку фото еды, путешествует через очередь.
type AssessmentJob struct {
	ID         string    `json:"id"`
	ChatID     int64     `json:"chat_id"`
	MessageID  int       `json:"message_id"`
	FileID     string    `json:"file_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
