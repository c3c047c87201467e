package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/asr"
	"github.com/meetscribe/minuted/internal/metrics"
	"github.com/meetscribe/minuted/internal/model"
	"github.com/meetscribe/minuted/internal/queue"
)

// Transcription is the first stage: it consumes NewJob messages, fans out to
// the enabled ASR tracks and enqueues TranscribeDone on the report queue.
type Transcription struct {
	records        MeetingStore
	queue          Queue
	reportQueueURL string
	tracks         []asr.Track
	now            func() time.Time
	log            zerolog.Logger
}

func NewTranscription(records MeetingStore, q Queue, reportQueueURL string, tracks []asr.Track, log zerolog.Logger) *Transcription {
	return &Transcription{
		records:        records,
		queue:          q,
		reportQueueURL: reportQueueURL,
		tracks:         tracks,
		now:            time.Now,
		log:            log.With().Str("component", "transcription-stage").Logger(),
	}
}

func (p *Transcription) Stage() string { return "transcription" }

func (p *Transcription) Process(ctx context.Context, msg queue.Message) error {
	job, external, err := model.ParseNewJob([]byte(msg.Body), p.now)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSkipMessage, err)
	}
	if job.S3Key == "" || strings.HasSuffix(job.S3Key, ".keep") {
		return fmt.Errorf("%w: no media key in message", ErrSkipMessage)
	}

	log := p.log.With().Str("meeting_id", job.MeetingID).Str("s3_key", job.S3Key).Logger()

	if external {
		// Bucket notifications are redelivered outside the queue dedup
		// window, so check for a record already holding this key.
		existing, err := p.records.FindByS3Key(ctx, job.S3Key)
		if err != nil {
			return fmt.Errorf("dedup lookup: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("%w: media already tracked by %s", ErrSkipMessage, existing.MeetingID)
		}

		if err := p.records.Put(ctx, &model.MeetingRecord{
			MeetingID:   job.MeetingID,
			CreatedAt:   job.CreatedAt,
			Status:      model.StatusPending,
			Stage:       model.StageTranscribing,
			Filename:    job.Filename,
			MeetingType: job.MeetingType,
			S3Key:       job.S3Key,
		}); err != nil {
			return fmt.Errorf("create record: %w", err)
		}
	}

	createdAt := job.CreatedAt
	meetingType := job.MeetingType
	if createdAt == "" || meetingType == "" || meetingType == model.MeetingGeneral {
		rec, err := p.records.GetByID(ctx, job.MeetingID)
		if err != nil {
			if createdAt == "" {
				return fmt.Errorf("resolve createdAt for %s: %w", job.MeetingID, err)
			}
			log.Warn().Err(err).Msg("record lookup failed, keeping message meeting type")
		} else {
			createdAt = rec.CreatedAt
			// A non-general message value wins over the record.
			if (meetingType == "" || meetingType == model.MeetingGeneral) && rec.MeetingType != "" {
				meetingType = rec.MeetingType
			}
		}
	}
	if meetingType == "" {
		meetingType = model.MeetingGeneral
	}

	if err := p.records.SetProcessing(ctx, job.MeetingID, createdAt); err != nil {
		return p.fail(ctx, job.MeetingID, createdAt, fmt.Errorf("mark processing: %w", err))
	}

	log.Info().Int("tracks", len(p.tracks)).Msg("transcription fan-out starting")
	results := asr.RunAll(ctx, p.tracks, job.MeetingID, job.S3Key, log)

	keys := map[string]string{}
	for _, r := range results {
		switch {
		case r.Err != nil:
			metrics.ASRTrackTotal.WithLabelValues(r.Name, "error").Inc()
		case r.BlobKey == "":
			metrics.ASRTrackTotal.WithLabelValues(r.Name, "skipped").Inc()
		default:
			metrics.ASRTrackTotal.WithLabelValues(r.Name, "ok").Inc()
			keys[r.Name] = r.BlobKey
		}
	}

	if len(keys) == 0 {
		return p.fail(ctx, job.MeetingID, createdAt, ErrAllTracksFailed)
	}

	if err := p.records.MarkTranscribed(ctx, job.MeetingID, createdAt, keys["transcribe"], keys["whisper"], keys["funasr"]); err != nil {
		return p.fail(ctx, job.MeetingID, createdAt, fmt.Errorf("mark transcribed: %w", err))
	}

	done, err := json.Marshal(model.TranscribeDone{
		MeetingID:     job.MeetingID,
		CreatedAt:     createdAt,
		TranscribeKey: keys["transcribe"],
		WhisperKey:    keys["whisper"],
		FunASRKey:     keys["funasr"],
		MeetingType:   meetingType,
	})
	if err != nil {
		return p.fail(ctx, job.MeetingID, createdAt, fmt.Errorf("marshal transcribe-done: %w", err))
	}
	if err := p.queue.Send(ctx, p.reportQueueURL, string(done)); err != nil {
		return p.fail(ctx, job.MeetingID, createdAt, fmt.Errorf("enqueue report stage: %w", err))
	}

	log.Info().Int("transcripts", len(keys)).Msg("transcription stage complete")
	return nil
}

// fail best-effort marks the record failed and returns the original error so
// the controller leaves the message for redelivery. A secondary failure in
// the record update is logged and swallowed.
func (p *Transcription) fail(ctx context.Context, meetingID, createdAt string, err error) error {
	if markErr := p.records.MarkFailed(ctx, meetingID, createdAt, err.Error()); markErr != nil {
		p.log.Error().Err(markErr).Str("meeting_id", meetingID).Msg("mark failed did not stick")
	}
	return err
}
