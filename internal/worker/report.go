package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/llm"
	"github.com/meetscribe/minuted/internal/model"
	"github.com/meetscribe/minuted/internal/queue"
	"github.com/meetscribe/minuted/internal/report"
	"github.com/meetscribe/minuted/internal/store"
)

// Report is the second stage: it fuses the per-track transcripts, calls the
// model with a type-specific prompt, validates and stores the report, and
// enqueues the export stage.
type Report struct {
	records        MeetingStore
	blobs          BlobStore
	queue          Queue
	exportQueueURL string
	llm            LLM
	glossary       Glossary
	maxTokens      int
	log            zerolog.Logger
}

func NewReport(records MeetingStore, blobs BlobStore, q Queue, exportQueueURL string, model LLM, glossary Glossary, maxTokens int, log zerolog.Logger) *Report {
	return &Report{
		records:        records,
		blobs:          blobs,
		queue:          q,
		exportQueueURL: exportQueueURL,
		llm:            model,
		glossary:       glossary,
		maxTokens:      maxTokens,
		log:            log.With().Str("component", "report-stage").Logger(),
	}
}

func (p *Report) Stage() string { return "report" }

func (p *Report) Process(ctx context.Context, msg queue.Message) error {
	var done model.TranscribeDone
	if err := json.Unmarshal([]byte(msg.Body), &done); err != nil {
		return fmt.Errorf("%w: decode transcribe-done: %w", ErrSkipMessage, err)
	}
	if done.MeetingID == "" || done.CreatedAt == "" {
		return fmt.Errorf("%w: transcribe-done missing meeting identity", ErrSkipMessage)
	}

	log := p.log.With().Str("meeting_id", done.MeetingID).Logger()

	// Load the record before any update: UpdateItem upserts, and a stage
	// write for a meeting that was never created must not mint a phantom item.
	rec, err := p.records.Get(ctx, done.MeetingID, done.CreatedAt)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: no record for meeting %s", ErrSkipMessage, done.MeetingID)
		}
		return fmt.Errorf("load record: %w", err)
	}

	if err := p.records.SetStage(ctx, done.MeetingID, done.CreatedAt, model.StageGenerating); err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("set stage: %w", err))
	}

	meetingType := done.MeetingType
	if meetingType == "" || meetingType == model.MeetingGeneral {
		if rec.MeetingType != "" {
			meetingType = rec.MeetingType
		}
	}
	if meetingType == "" {
		meetingType = model.MeetingGeneral
	}

	transcript, err := report.Assemble(ctx, p.blobs, report.Sources{
		TranscribeKey: done.TranscribeKey,
		WhisperKey:    done.WhisperKey,
		FunASRKey:     done.FunASRKey,
	}, log)
	if err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, err)
	}
	transcript = report.Truncate(transcript)

	// Glossary terms only influence prompt hints; a fetch failure is not
	// worth failing the job over.
	terms, err := p.glossary.Terms(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("glossary fetch failed, building prompt without terms")
		terms = nil
	}

	prompt := report.BuildPrompt(meetingType, transcript, terms)
	log.Info().Str("meeting_type", string(meetingType)).Int("prompt_chars", len(prompt)).Msg("invoking model")

	output, err := p.llm.Invoke(ctx, prompt, p.maxTokens)
	if err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("model invoke: %w", err))
	}

	raw, err := llm.ExtractJSON(output)
	if err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("model output: %w", err))
	}
	if err := report.Validate(meetingType, []byte(raw)); err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("report validation: %w", err))
	}

	reportKey, err := p.blobs.Put(ctx, model.ReportJSONKey(done.MeetingID), []byte(raw), "application/json")
	if err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("store report: %w", err))
	}

	if err := p.records.MarkReported(ctx, done.MeetingID, done.CreatedAt, reportKey); err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("mark reported: %w", err))
	}

	next, err := json.Marshal(model.ReportDone{
		MeetingID:   done.MeetingID,
		CreatedAt:   done.CreatedAt,
		ReportKey:   reportKey,
		MeetingName: rec.DisplayName(),
	})
	if err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("marshal report-done: %w", err))
	}
	if err := p.queue.Send(ctx, p.exportQueueURL, string(next)); err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("enqueue export stage: %w", err))
	}

	log.Info().Str("report_key", reportKey).Msg("report stage complete")
	return nil
}

func (p *Report) fail(ctx context.Context, meetingID, createdAt string, err error) error {
	if markErr := p.records.MarkFailed(ctx, meetingID, createdAt, err.Error()); markErr != nil {
		p.log.Error().Err(markErr).Str("meeting_id", meetingID).Msg("mark failed did not stick")
	}
	return err
}
