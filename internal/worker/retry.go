package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/model"
	"github.com/meetscribe/minuted/internal/store"
)

// Retrier re-enqueues a failed meeting into the transcription queue. It is
// the one entry point exposed to the HTTP layer.
type Retrier struct {
	records  MeetingStore
	queue    Queue
	queueURL string
	log      zerolog.Logger
}

func NewRetrier(records MeetingStore, q Queue, transcriptionQueueURL string, log zerolog.Logger) *Retrier {
	return &Retrier{
		records:  records,
		queue:    q,
		queueURL: transcriptionQueueURL,
		log:      log.With().Str("component", "retrier").Logger(),
	}
}

// Retry flips a failed record back to processing and emits one NewJob.
// Errors map to the HTTP contract: store.ErrNotFound (404), ErrNotFailed
// (400), ErrConflict (409), anything else (500).
func (r *Retrier) Retry(ctx context.Context, meetingID string) error {
	rec, err := r.records.GetByID(ctx, meetingID)
	if err != nil {
		return err
	}
	if rec.Status != model.StatusFailed {
		return fmt.Errorf("%w: status is %s", ErrNotFailed, rec.Status)
	}

	if err := r.records.ResetForRetry(ctx, rec.MeetingID, rec.CreatedAt); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			return ErrConflict
		}
		return fmt.Errorf("reset record: %w", err)
	}

	job, err := json.Marshal(model.NewJob{
		MeetingID:   rec.MeetingID,
		S3Key:       rec.S3Key,
		Filename:    rec.Filename,
		MeetingType: rec.MeetingType,
		CreatedAt:   rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal retry job: %w", err)
	}

	if err := r.queue.Send(ctx, r.queueURL, string(job)); err != nil {
		// Revert so the record stays retryable; a failure here is logged
		// and swallowed, the enqueue error is what the caller needs.
		msg := "SQS 入队失败: " + err.Error()
		if markErr := r.records.MarkFailed(ctx, rec.MeetingID, rec.CreatedAt, msg); markErr != nil {
			r.log.Error().Err(markErr).Str("meeting_id", meetingID).Msg("retry revert did not stick")
		}
		return fmt.Errorf("enqueue retry job: %w", err)
	}

	r.log.Info().Str("meeting_id", meetingID).Msg("meeting re-enqueued for processing")
	return nil
}
