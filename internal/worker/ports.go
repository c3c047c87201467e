// Package worker holds the three stage processors and the queue controller
// loop that drives them. Processors depend on narrow ports so stage logic is
// testable without AWS.
package worker

import (
	"context"
	"time"

	"github.com/meetscribe/minuted/internal/model"
	"github.com/meetscribe/minuted/internal/queue"
)

// MeetingStore is the record-store surface the stages use.
type MeetingStore interface {
	Get(ctx context.Context, meetingID, createdAt string) (*model.MeetingRecord, error)
	GetByID(ctx context.Context, meetingID string) (*model.MeetingRecord, error)
	Put(ctx context.Context, rec *model.MeetingRecord) error
	FindByS3Key(ctx context.Context, s3Key string) (*model.MeetingRecord, error)
	SetProcessing(ctx context.Context, meetingID, createdAt string) error
	SetStage(ctx context.Context, meetingID, createdAt string, stage model.Stage) error
	MarkTranscribed(ctx context.Context, meetingID, createdAt, transcribeKey, whisperKey, funasrKey string) error
	MarkReported(ctx context.Context, meetingID, createdAt, reportKey string) error
	MarkCompleted(ctx context.Context, meetingID, createdAt string) error
	MarkFailed(ctx context.Context, meetingID, createdAt, errorMessage string) error
	ResetForRetry(ctx context.Context, meetingID, createdAt string) error
}

// BlobStore reads and writes pipeline artifacts. Put returns the full key.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Queue is the message-bus surface shared by the controller and producers.
type Queue interface {
	Receive(ctx context.Context, url string, max int, wait time.Duration) ([]queue.Message, error)
	Delete(ctx context.Context, url, receiptHandle string) error
	Send(ctx context.Context, url, body string) error
}

// LLM generates report text from a prompt.
type LLM interface {
	Invoke(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Mailer delivers the rendered minutes.
type Mailer interface {
	SendHTML(ctx context.Context, to, bcc []string, subject, htmlBody string) error
}

// Glossary yields the current glossary term set.
type Glossary interface {
	Terms(ctx context.Context) ([]model.GlossaryTerm, error)
}
