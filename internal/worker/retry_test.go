package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/model"
	"github.com/meetscribe/minuted/internal/store"
)

const transcriptionQueueURL = "https://sqs/transcription"

func failedRecord() *model.MeetingRecord {
	return &model.MeetingRecord{
		MeetingID: "m1", CreatedAt: "t0",
		Status: model.StatusFailed, Stage: model.StageFailed,
		Filename: "a.mp4", MeetingType: model.MeetingWeekly,
		S3Key: "inbox/m1/a.mp4", ErrorMessage: "all ASR tracks failed",
	}
}

func TestRetryHappyPath(t *testing.T) {
	records := newFakeRecords(failedRecord())
	q := &fakeQueue{}
	r := NewRetrier(records, q, transcriptionQueueURL, zerolog.Nop())

	if err := r.Retry(context.Background(), "m1"); err != nil {
		t.Fatal(err)
	}

	rec := records.recs["m1"]
	if rec.Status != model.StatusProcessing || rec.Stage != model.StageTranscribing {
		t.Errorf("record = %s/%s, want processing/transcribing", rec.Status, rec.Stage)
	}
	if rec.ErrorMessage != "" {
		t.Error("errorMessage not cleared")
	}

	if len(q.sent) != 1 || q.sent[0].URL != transcriptionQueueURL {
		t.Fatalf("sent = %+v, want exactly one NewJob", q.sent)
	}
	var job model.NewJob
	if err := json.Unmarshal([]byte(q.sent[0].Body), &job); err != nil {
		t.Fatal(err)
	}
	if job.MeetingID != "m1" || job.S3Key != "inbox/m1/a.mp4" || job.Filename != "a.mp4" {
		t.Errorf("job = %+v", job)
	}
	if job.MeetingType != model.MeetingWeekly {
		t.Errorf("meetingType = %q", job.MeetingType)
	}
	if job.CreatedAt != "t0" {
		t.Errorf("createdAt = %q, must reuse the record's value", job.CreatedAt)
	}
}

func TestRetryUnknownMeeting(t *testing.T) {
	r := NewRetrier(newFakeRecords(), &fakeQueue{}, transcriptionQueueURL, zerolog.Nop())
	err := r.Retry(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRetryNonFailedRecordHasNoSideEffects(t *testing.T) {
	rec := failedRecord()
	rec.Status = model.StatusProcessing
	records := newFakeRecords(rec)
	q := &fakeQueue{}
	r := NewRetrier(records, q, transcriptionQueueURL, zerolog.Nop())

	err := r.Retry(context.Background(), "m1")
	if !errors.Is(err, ErrNotFailed) {
		t.Fatalf("err = %v, want ErrNotFailed", err)
	}
	if len(q.sent) != 0 {
		t.Error("non-failed retry enqueued a job")
	}
	if records.recs["m1"].Status != model.StatusProcessing {
		t.Error("non-failed retry mutated the record")
	}
}

func TestRetryConcurrentLoserGetsConflict(t *testing.T) {
	records := newFakeRecords(failedRecord())
	records.resetErr = store.ErrConditionFailed
	q := &fakeQueue{}
	r := NewRetrier(records, q, transcriptionQueueURL, zerolog.Nop())

	err := r.Retry(context.Background(), "m1")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(q.sent) != 0 {
		t.Error("conflicting retry enqueued a job")
	}
}

func TestRetryEnqueueFailureReverts(t *testing.T) {
	records := newFakeRecords(failedRecord())
	q := &fakeQueue{sendErr: errors.New("sqs down")}
	r := NewRetrier(records, q, transcriptionQueueURL, zerolog.Nop())

	err := r.Retry(context.Background(), "m1")
	if err == nil || !strings.Contains(err.Error(), "sqs down") {
		t.Fatalf("err = %v", err)
	}

	rec := records.recs["m1"]
	if rec.Status != model.StatusFailed {
		t.Errorf("status = %s, want reverted to failed", rec.Status)
	}
	if !strings.HasPrefix(rec.ErrorMessage, "SQS 入队失败: ") {
		t.Errorf("errorMessage = %q", rec.ErrorMessage)
	}
}
