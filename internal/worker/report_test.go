package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/model"
	"github.com/meetscribe/minuted/internal/queue"
)

const exportQueueURL = "https://sqs/export"

func reportFixture() (*fakeRecords, *fakeBlobs, *fakeQueue, *fakeLLM) {
	records := newFakeRecords(&model.MeetingRecord{
		MeetingID: "m1", CreatedAt: "t0",
		Status: model.StatusTranscribed, Stage: model.StageReporting,
		Title: "架构评审", MeetingType: model.MeetingTech,
	})
	blobs := newFakeBlobs()
	blobs.data["pfx/transcripts/m1/whisper.json"] = []byte(`{"text":"讨论了架构"}`)
	q := &fakeQueue{}
	llm := &fakeLLM{output: "以下是纪要：\n{\"summary\":\"架构已定\",\"topics\":[]}"}
	return records, blobs, q, llm
}

func doneMessage(t *testing.T, done model.TranscribeDone) queue.Message {
	t.Helper()
	body, err := json.Marshal(done)
	if err != nil {
		t.Fatal(err)
	}
	return queue.Message{MessageID: "msg-2", Body: string(body), ReceiptHandle: "rh-2"}
}

func TestReportHappyPath(t *testing.T) {
	records, blobs, q, llm := reportFixture()
	p := NewReport(records, blobs, q, exportQueueURL, llm, &fakeGlossary{}, 16000, zerolog.Nop())

	msg := doneMessage(t, model.TranscribeDone{
		MeetingID: "m1", CreatedAt: "t0",
		WhisperKey: "pfx/transcripts/m1/whisper.json",
	})
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	rec := records.recs["m1"]
	if rec.Status != model.StatusReported || rec.Stage != model.StageExporting {
		t.Errorf("record = %s/%s, want reported/exporting", rec.Status, rec.Stage)
	}
	if rec.ReportKey != "pfx/reports/m1/report.json" {
		t.Errorf("reportKey = %q", rec.ReportKey)
	}

	stored := blobs.data["pfx/reports/m1/report.json"]
	var report map[string]any
	if err := json.Unmarshal(stored, &report); err != nil {
		t.Fatalf("stored report is not valid JSON: %v", err)
	}
	if report["summary"] != "架构已定" {
		t.Errorf("stored report = %s", stored)
	}

	if len(q.sent) != 1 || q.sent[0].URL != exportQueueURL {
		t.Fatalf("sent = %+v", q.sent)
	}
	var done model.ReportDone
	if err := json.Unmarshal([]byte(q.sent[0].Body), &done); err != nil {
		t.Fatal(err)
	}
	if done.CreatedAt != "t0" || done.ReportKey != rec.ReportKey {
		t.Errorf("done = %+v", done)
	}
	if done.MeetingName != "架构评审" {
		t.Errorf("meetingName = %q, want record title", done.MeetingName)
	}

	// The record's tech type drives the prompt when the message omits it.
	if len(llm.prompts) != 1 || !strings.Contains(llm.prompts[0], "knowledgeBase") {
		t.Error("tech prompt not used")
	}
	if records.stageCalls[0] != model.StageGenerating {
		t.Errorf("first stage call = %s, want generating", records.stageCalls[0])
	}
}

func TestReportSkipsUnknownMeeting(t *testing.T) {
	records, blobs, q, llm := reportFixture()
	p := NewReport(records, blobs, q, exportQueueURL, llm, &fakeGlossary{}, 16000, zerolog.Nop())

	// A message for a meeting with no record must not write anything: stage
	// updates upsert, so a stray message would otherwise mint a phantom item.
	msg := doneMessage(t, model.TranscribeDone{MeetingID: "ghost", CreatedAt: "t9"})
	err := p.Process(context.Background(), msg)
	if !errors.Is(err, ErrSkipMessage) {
		t.Fatalf("err = %v, want ErrSkipMessage", err)
	}
	if len(records.stageCalls) != 0 {
		t.Error("stage written for a meeting with no record")
	}
	if len(records.failedMsgs) != 0 {
		t.Error("failure written for a meeting with no record")
	}
	if len(q.sent) != 0 {
		t.Error("stray message enqueued work")
	}
}

func TestReportSkipsMalformedMessages(t *testing.T) {
	records, blobs, q, llm := reportFixture()
	p := NewReport(records, blobs, q, exportQueueURL, llm, &fakeGlossary{}, 16000, zerolog.Nop())

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed", body: "not json"},
		{name: "missing_identity", body: `{"transcribeKey":"k"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Process(context.Background(), queue.Message{Body: tt.body})
			if !errors.Is(err, ErrSkipMessage) {
				t.Fatalf("err = %v, want ErrSkipMessage", err)
			}
		})
	}
}

func TestReportModelOutputWithoutJSONFails(t *testing.T) {
	records, blobs, q, llm := reportFixture()
	llm.output = "抱歉，我无法生成纪要。"
	p := NewReport(records, blobs, q, exportQueueURL, llm, &fakeGlossary{}, 16000, zerolog.Nop())

	msg := doneMessage(t, model.TranscribeDone{
		MeetingID: "m1", CreatedAt: "t0",
		WhisperKey: "pfx/transcripts/m1/whisper.json",
	})
	err := p.Process(context.Background(), msg)
	if err == nil {
		t.Fatal("expected failure for output without JSON")
	}

	rec := records.recs["m1"]
	if rec.Status != model.StatusFailed {
		t.Errorf("status = %s, want failed", rec.Status)
	}
	if len(q.sent) != 0 {
		t.Error("failed report enqueued export")
	}
}

func TestReportInvalidSchemaFails(t *testing.T) {
	records, blobs, q, llm := reportFixture()
	llm.output = `{"topics":[]}` // no summary
	p := NewReport(records, blobs, q, exportQueueURL, llm, &fakeGlossary{}, 16000, zerolog.Nop())

	msg := doneMessage(t, model.TranscribeDone{
		MeetingID: "m1", CreatedAt: "t0",
		WhisperKey: "pfx/transcripts/m1/whisper.json",
	})
	if err := p.Process(context.Background(), msg); err == nil {
		t.Fatal("expected validation failure")
	}
	if records.recs["m1"].Status != model.StatusFailed {
		t.Error("record not marked failed")
	}
}

func TestReportGlossaryFailureIsTolerated(t *testing.T) {
	records, blobs, q, llm := reportFixture()
	glossary := &fakeGlossary{err: errors.New("dynamo down")}
	p := NewReport(records, blobs, q, exportQueueURL, llm, glossary, 16000, zerolog.Nop())

	msg := doneMessage(t, model.TranscribeDone{
		MeetingID: "m1", CreatedAt: "t0",
		WhisperKey: "pfx/transcripts/m1/whisper.json",
	})
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatalf("glossary outage must not fail the job, got %v", err)
	}
}

func TestReportGlossaryTermsInPrompt(t *testing.T) {
	records, blobs, q, llm := reportFixture()
	glossary := &fakeGlossary{terms: []model.GlossaryTerm{{Term: "Karpenter"}}}
	p := NewReport(records, blobs, q, exportQueueURL, llm, glossary, 16000, zerolog.Nop())

	msg := doneMessage(t, model.TranscribeDone{
		MeetingID: "m1", CreatedAt: "t0",
		WhisperKey: "pfx/transcripts/m1/whisper.json",
	})
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(llm.prompts[0], "Karpenter") {
		t.Error("glossary term missing from prompt")
	}
}

func TestReportAllTranscriptsMissingFails(t *testing.T) {
	records, _, q, llm := reportFixture()
	p := NewReport(records, newFakeBlobs(), q, exportQueueURL, llm, &fakeGlossary{}, 16000, zerolog.Nop())

	msg := doneMessage(t, model.TranscribeDone{
		MeetingID: "m1", CreatedAt: "t0",
		WhisperKey: "pfx/transcripts/m1/whisper.json",
	})
	if err := p.Process(context.Background(), msg); err == nil {
		t.Fatal("expected assembly failure")
	}
	if records.recs["m1"].Status != model.StatusFailed {
		t.Error("record not marked failed")
	}
}

func TestReportMessageTypeWinsOverRecord(t *testing.T) {
	records, blobs, q, llm := reportFixture()
	p := NewReport(records, blobs, q, exportQueueURL, llm, &fakeGlossary{}, 16000, zerolog.Nop())
	llm.output = `{"summary":"ok"}`

	msg := doneMessage(t, model.TranscribeDone{
		MeetingID: "m1", CreatedAt: "t0",
		WhisperKey:  "pfx/transcripts/m1/whisper.json",
		MeetingType: model.MeetingCustomer,
	})
	if err := p.Process(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(llm.prompts[0], "customerInfo") {
		t.Error("customer prompt not used despite message meetingType")
	}
}
