package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"time"
)

// NewJob is the transcription-queue message. Internal producers (the upload
// service and the retry contract) send it directly; S3 bucket notifications
// are normalized into the same shape by ParseNewJob.
type NewJob struct {
	MeetingID   string      `json:"meetingId"`
	S3Key       string      `json:"s3Key"`
	Filename    string      `json:"filename,omitempty"`
	MeetingType MeetingType `json:"meetingType,omitempty"`
	CreatedAt   string      `json:"createdAt,omitempty"`
}

// TranscribeDone is the report-queue message. Track keys are empty when the
// track was disabled or failed.
type TranscribeDone struct {
	MeetingID     string      `json:"meetingId"`
	CreatedAt     string      `json:"createdAt"`
	TranscribeKey string      `json:"transcribeKey,omitempty"`
	WhisperKey    string      `json:"whisperKey,omitempty"`
	FunASRKey     string      `json:"funasrKey,omitempty"`
	MeetingType   MeetingType `json:"meetingType,omitempty"`
}

// ReportDone is the export-queue message.
type ReportDone struct {
	MeetingID   string `json:"meetingId"`
	CreatedAt   string `json:"createdAt"`
	ReportKey   string `json:"reportKey"`
	MeetingName string `json:"meetingName,omitempty"`
}

// s3Notification is the bucket-notification envelope delivered when media is
// dropped into the bucket outside the upload service.
type s3Notification struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseNewJob decodes a transcription-queue message body. It accepts either
// the internal NewJob shape or an S3 bucket-notification envelope. For
// external notifications it synthesizes meetingId as meeting-<epoch-ms>,
// stamps createdAt, and infers the meeting type from the filename prefix.
// The second return value reports whether the message came from a bucket
// notification (the path that requires dedup and record creation).
func ParseNewJob(body []byte, now func() time.Time) (NewJob, bool, error) {
	var env s3Notification
	if err := json.Unmarshal(body, &env); err == nil && len(env.Records) > 0 {
		rawKey := env.Records[0].S3.Object.Key
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return NewJob{}, true, fmt.Errorf("unescape object key %q: %w", rawKey, err)
		}
		t := now()
		return NewJob{
			MeetingID:   fmt.Sprintf("meeting-%d", t.UnixMilli()),
			S3Key:       key,
			Filename:    path.Base(key),
			MeetingType: MeetingTypeFromFilename(key),
			CreatedAt:   Timestamp(t),
		}, true, nil
	}

	var job NewJob
	if err := json.Unmarshal(body, &job); err != nil {
		return NewJob{}, false, fmt.Errorf("decode new-job message: %w", err)
	}
	return job, false, nil
}
