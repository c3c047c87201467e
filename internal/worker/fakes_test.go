package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/meetscribe/minuted/internal/model"
	"github.com/meetscribe/minuted/internal/queue"
	"github.com/meetscribe/minuted/internal/store"
)

// fakeRecords is an in-memory MeetingStore keyed by meetingId.
type fakeRecords struct {
	recs     map[string]*model.MeetingRecord
	dedupHit *model.MeetingRecord
	dedupErr error
	resetErr error

	puts       int
	stageCalls []model.Stage
	failedMsgs []string
}

func newFakeRecords(recs ...*model.MeetingRecord) *fakeRecords {
	f := &fakeRecords{recs: map[string]*model.MeetingRecord{}}
	for _, r := range recs {
		f.recs[r.MeetingID] = r
	}
	return f
}

func (f *fakeRecords) Get(_ context.Context, meetingID, createdAt string) (*model.MeetingRecord, error) {
	rec, ok := f.recs[meetingID]
	if !ok || rec.CreatedAt != createdAt {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) GetByID(_ context.Context, meetingID string) (*model.MeetingRecord, error) {
	rec, ok := f.recs[meetingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) Put(_ context.Context, rec *model.MeetingRecord) error {
	f.puts++
	cp := *rec
	f.recs[rec.MeetingID] = &cp
	return nil
}

func (f *fakeRecords) FindByS3Key(_ context.Context, s3Key string) (*model.MeetingRecord, error) {
	if f.dedupErr != nil {
		return nil, f.dedupErr
	}
	return f.dedupHit, nil
}

func (f *fakeRecords) must(meetingID string) *model.MeetingRecord {
	rec, ok := f.recs[meetingID]
	if !ok {
		panic("no record for " + meetingID)
	}
	return rec
}

func (f *fakeRecords) SetProcessing(_ context.Context, meetingID, createdAt string) error {
	rec := f.must(meetingID)
	rec.Status = model.StatusProcessing
	rec.Stage = model.StageTranscribing
	return nil
}

func (f *fakeRecords) SetStage(_ context.Context, meetingID, createdAt string, stage model.Stage) error {
	f.stageCalls = append(f.stageCalls, stage)
	f.must(meetingID).Stage = stage
	return nil
}

func (f *fakeRecords) MarkTranscribed(_ context.Context, meetingID, createdAt, transcribeKey, whisperKey, funasrKey string) error {
	rec := f.must(meetingID)
	rec.Status = model.StatusTranscribed
	rec.Stage = model.StageReporting
	rec.TranscribeKey = transcribeKey
	rec.WhisperKey = whisperKey
	rec.FunASRKey = funasrKey
	return nil
}

func (f *fakeRecords) MarkReported(_ context.Context, meetingID, createdAt, reportKey string) error {
	rec := f.must(meetingID)
	rec.Status = model.StatusReported
	rec.Stage = model.StageExporting
	rec.ReportKey = reportKey
	return nil
}

func (f *fakeRecords) MarkCompleted(_ context.Context, meetingID, createdAt string) error {
	rec := f.must(meetingID)
	rec.Status = model.StatusCompleted
	rec.Stage = model.StageDone
	rec.ExportedAt = model.Timestamp(time.Now())
	return nil
}

func (f *fakeRecords) MarkFailed(_ context.Context, meetingID, createdAt, errorMessage string) error {
	f.failedMsgs = append(f.failedMsgs, errorMessage)
	rec, ok := f.recs[meetingID]
	if !ok {
		return store.ErrNotFound
	}
	rec.Status = model.StatusFailed
	rec.Stage = model.StageFailed
	rec.ErrorMessage = errorMessage
	return nil
}

func (f *fakeRecords) ResetForRetry(_ context.Context, meetingID, createdAt string) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	rec := f.must(meetingID)
	rec.Status = model.StatusProcessing
	rec.Stage = model.StageTranscribing
	rec.ErrorMessage = ""
	return nil
}

type sentMessage struct {
	URL  string
	Body string
}

// fakeQueue records sends and serves canned receives.
type fakeQueue struct {
	batches [][]queue.Message
	recvs   int

	sent    []sentMessage
	sendErr error
	deleted []string
}

func (f *fakeQueue) Receive(_ context.Context, url string, max int, wait time.Duration) ([]queue.Message, error) {
	if f.recvs >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.recvs]
	f.recvs++
	return batch, nil
}

func (f *fakeQueue) Delete(_ context.Context, url, receiptHandle string) error {
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

func (f *fakeQueue) Send(_ context.Context, url, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentMessage{URL: url, Body: body})
	return nil
}

// fakeBlobs is an in-memory BlobStore. Put prefixes keys the way S3Store does.
type fakeBlobs struct {
	data map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{data: map[string][]byte{}}
}

func (f *fakeBlobs) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", key)
	}
	return data, nil
}

func (f *fakeBlobs) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	full := "pfx/" + key
	f.data[full] = data
	return full, nil
}

type fakeLLM struct {
	output  string
	err     error
	prompts []string
}

func (f *fakeLLM) Invoke(_ context.Context, prompt string, maxTokens int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.output, f.err
}

type fakeMailer struct {
	to      []string
	bcc     []string
	subject string
	body    string
	sends   int
	err     error
}

func (f *fakeMailer) SendHTML(_ context.Context, to, bcc []string, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sends++
	f.to = to
	f.bcc = bcc
	f.subject = subject
	f.body = htmlBody
	return nil
}

type fakeGlossary struct {
	terms []model.GlossaryTerm
	err   error
}

func (f *fakeGlossary) Terms(context.Context) ([]model.GlossaryTerm, error) {
	return f.terms, f.err
}

// stubTrack is a canned asr.Track.
type stubTrack struct {
	name    string
	enabled bool
	key     string
	err     error
}

func (s *stubTrack) Name() string  { return s.name }
func (s *stubTrack) Enabled() bool { return s.enabled }
func (s *stubTrack) Run(context.Context, string, string) (string, error) {
	return s.key, s.err
}
