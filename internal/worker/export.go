package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/export"
	"github.com/meetscribe/minuted/internal/metrics"
	"github.com/meetscribe/minuted/internal/model"
	"github.com/meetscribe/minuted/internal/queue"
	"github.com/meetscribe/minuted/internal/store"
)

// Export is the final stage: it renders the HTML minutes and emails them to
// the record's recipients, then marks the job terminal.
type Export struct {
	records          MeetingStore
	blobs            BlobStore
	mailer           Mailer
	defaultRecipient string
	log              zerolog.Logger
}

func NewExport(records MeetingStore, blobs BlobStore, mailer Mailer, defaultRecipient string, log zerolog.Logger) *Export {
	return &Export{
		records:          records,
		blobs:            blobs,
		mailer:           mailer,
		defaultRecipient: defaultRecipient,
		log:              log.With().Str("component", "export-stage").Logger(),
	}
}

func (p *Export) Stage() string { return "export" }

func (p *Export) Process(ctx context.Context, msg queue.Message) error {
	var done model.ReportDone
	if err := json.Unmarshal([]byte(msg.Body), &done); err != nil {
		return fmt.Errorf("%w: decode report-done: %w", ErrSkipMessage, err)
	}
	if done.MeetingID == "" || done.CreatedAt == "" {
		return fmt.Errorf("%w: report-done missing meeting identity", ErrSkipMessage)
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

	if err := p.records.SetStage(ctx, done.MeetingID, done.CreatedAt, model.StageSending); err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("set stage: %w", err))
	}

	reportKey := done.ReportKey
	if reportKey == "" {
		reportKey = rec.ReportKey
	}
	if reportKey == "" {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("no report key for meeting %s", done.MeetingID))
	}

	reportJSON, err := p.blobs.Get(ctx, reportKey)
	if err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("fetch report: %w", err))
	}

	name := done.MeetingName
	if name == "" {
		name = rec.DisplayName()
	}

	body, err := export.BuildHTML(reportJSON, name)
	if err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("render email: %w", err))
	}

	to, bcc := resolveRecipients(rec.RecipientEmails, p.defaultRecipient)
	if len(to) == 0 {
		log.Warn().Msg("no recipients configured, skipping email delivery")
	} else {
		if err := p.mailer.SendHTML(ctx, to, bcc, export.Subject(name), body); err != nil {
			return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("send email: %w", err))
		}
		metrics.EmailsSentTotal.Inc()
	}

	if err := p.records.MarkCompleted(ctx, done.MeetingID, done.CreatedAt); err != nil {
		return p.fail(ctx, done.MeetingID, done.CreatedAt, fmt.Errorf("mark completed: %w", err))
	}

	log.Info().Int("to", len(to)).Int("bcc", len(bcc)).Msg("export stage complete")
	return nil
}

// resolveRecipients applies the delivery policy: custom recipients get the
// default address in BCC so ops retain a copy; no custom recipients fall back
// to the default alone; neither means delivery is skipped.
func resolveRecipients(custom []string, defaultRecipient string) (to, bcc []string) {
	if len(custom) > 0 {
		to = custom
		if defaultRecipient != "" {
			bcc = []string{defaultRecipient}
		}
		return to, bcc
	}
	if defaultRecipient != "" {
		return []string{defaultRecipient}, nil
	}
	return nil, nil
}

func (p *Export) fail(ctx context.Context, meetingID, createdAt string, err error) error {
	if markErr := p.records.MarkFailed(ctx, meetingID, createdAt, err.Error()); markErr != nil {
		p.log.Error().Err(markErr).Str("meeting_id", meetingID).Msg("mark failed did not stick")
	}
	return err
}
