package model

import (
	"strings"
	"time"
)

// Status is the coarse lifecycle state of a meeting job.
// Transitions: created|pending -> processing -> transcribed -> reported -> completed,
// with failed reachable from any non-terminal state. failed is re-entered only
// through the retry contract.
type Status string

const (
	StatusCreated     Status = "created"
	StatusPending     Status = "pending"
	StatusProcessing  Status = "processing"
	StatusTranscribed Status = "transcribed"
	StatusReported    Status = "reported"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Stage is the fine-grained UI-facing progress label. It advances in
// declaration order except for failed and the retry reset.
type Stage string

const (
	StageTranscribing Stage = "transcribing"
	StageReporting    Stage = "reporting"
	StageGenerating   Stage = "generating"
	StageExporting    Stage = "exporting"
	StageSending      Stage = "sending"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// MeetingType selects the report prompt and schema.
type MeetingType string

const (
	MeetingGeneral  MeetingType = "general"
	MeetingWeekly   MeetingType = "weekly"
	MeetingTech     MeetingType = "tech"
	MeetingCustomer MeetingType = "customer"
)

// MeetingTypeFromFilename infers the meeting type from the upload filename
// prefix used by external bucket notifications: "weekly__" and "tech__" map
// to their types, everything else is general.
func MeetingTypeFromFilename(name string) MeetingType {
	base := name
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	switch {
	case strings.HasPrefix(base, "weekly__"):
		return MeetingWeekly
	case strings.HasPrefix(base, "tech__"):
		return MeetingTech
	default:
		return MeetingGeneral
	}
}

// MeetingRecord is the durable record of a single job.
// Composite primary key (meetingId, createdAt); GSI on (status, createdAt).
type MeetingRecord struct {
	MeetingID       string      `dynamodbav:"meetingId" json:"meetingId"`
	CreatedAt       string      `dynamodbav:"createdAt" json:"createdAt"`
	Status          Status      `dynamodbav:"status" json:"status"`
	Stage           Stage       `dynamodbav:"stage" json:"stage"`
	Title           string      `dynamodbav:"title,omitempty" json:"title,omitempty"`
	Filename        string      `dynamodbav:"filename,omitempty" json:"filename,omitempty"`
	MeetingType     MeetingType `dynamodbav:"meetingType,omitempty" json:"meetingType,omitempty"`
	S3Key           string      `dynamodbav:"s3Key,omitempty" json:"s3Key,omitempty"`
	TranscribeKey   string      `dynamodbav:"transcribeKey,omitempty" json:"transcribeKey,omitempty"`
	WhisperKey      string      `dynamodbav:"whisperKey,omitempty" json:"whisperKey,omitempty"`
	FunASRKey       string      `dynamodbav:"funasrKey,omitempty" json:"funasrKey,omitempty"`
	ReportKey       string      `dynamodbav:"reportKey,omitempty" json:"reportKey,omitempty"`
	PDFKey          string      `dynamodbav:"pdfKey,omitempty" json:"pdfKey,omitempty"`
	RecipientEmails []string    `dynamodbav:"recipientEmails,omitempty" json:"recipientEmails,omitempty"`
	ErrorMessage    string      `dynamodbav:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	UpdatedAt       string      `dynamodbav:"updatedAt,omitempty" json:"updatedAt,omitempty"`
	ExportedAt      string      `dynamodbav:"exportedAt,omitempty" json:"exportedAt,omitempty"`
}

// DisplayName returns the human name used in email subjects: title when set,
// otherwise the upload filename, otherwise the meeting id.
func (r *MeetingRecord) DisplayName() string {
	if r.Title != "" {
		return r.Title
	}
	if r.Filename != "" {
		return r.Filename
	}
	return r.MeetingID
}

// GlossaryTerm is a domain term injected into report prompts to stabilize
// spelling. Read-only from the pipeline.
type GlossaryTerm struct {
	TermID     string   `dynamodbav:"termId" json:"termId"`
	Term       string   `dynamodbav:"term" json:"term"`
	Aliases    []string `dynamodbav:"aliases,omitempty" json:"aliases,omitempty"`
	Definition string   `dynamodbav:"definition,omitempty" json:"definition,omitempty"`
	CreatedAt  string   `dynamodbav:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// Timestamp renders t as the ISO-8601 instant with millisecond precision used
// for createdAt/updatedAt. createdAt is set exactly once and propagated
// through every queue message; no stage re-derives it.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
