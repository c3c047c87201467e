package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/aws/aws-sdk-go-v2/service/transcribe/types"
	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/model"
)

type transcribeAPI interface {
	StartTranscriptionJob(ctx context.Context, params *transcribe.StartTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.StartTranscriptionJobOutput, error)
	GetTranscriptionJob(ctx context.Context, params *transcribe.GetTranscriptionJobInput, optFns ...func(*transcribe.Options)) (*transcribe.GetTranscriptionJobOutput, error)
}

// TranscribeTrack runs an AWS Transcribe batch job and polls it to completion.
// The job writes its transcript JSON directly to the per-meeting blob key.
type TranscribeTrack struct {
	api          transcribeAPI
	enabled      bool
	bucket       string
	prefix       string
	languageCode string
	vocabulary   string
	pollInterval time.Duration
	maxAttempts  int
	log          zerolog.Logger
}

type TranscribeOptions struct {
	Enabled      bool
	Bucket       string
	Prefix       string
	LanguageCode string
	Vocabulary   string
}

func NewTranscribeTrack(awsCfg aws.Config, opts TranscribeOptions, log zerolog.Logger) *TranscribeTrack {
	return &TranscribeTrack{
		api:          transcribe.NewFromConfig(awsCfg),
		enabled:      opts.Enabled,
		bucket:       opts.Bucket,
		prefix:       strings.Trim(opts.Prefix, "/"),
		languageCode: opts.LanguageCode,
		vocabulary:   opts.Vocabulary,
		pollInterval: 10 * time.Second,
		maxAttempts:  180, // 30 minutes
		log:          log.With().Str("track", "transcribe").Logger(),
	}
}

// NewTranscribeTrackWithAPI builds a track around an explicit API, for tests.
func NewTranscribeTrackWithAPI(api transcribeAPI, opts TranscribeOptions, pollInterval time.Duration, maxAttempts int, log zerolog.Logger) *TranscribeTrack {
	return &TranscribeTrack{
		api:          api,
		enabled:      opts.Enabled,
		bucket:       opts.Bucket,
		prefix:       strings.Trim(opts.Prefix, "/"),
		languageCode: opts.LanguageCode,
		vocabulary:   opts.Vocabulary,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
		log:          log,
	}
}

func (t *TranscribeTrack) Name() string  { return "transcribe" }
func (t *TranscribeTrack) Enabled() bool { return t.enabled }

func (t *TranscribeTrack) outputKey(meetingID string) string {
	key := model.TranscriptKey(meetingID, "transcribe")
	if t.prefix != "" {
		return t.prefix + "/" + key
	}
	return key
}

// Run starts (or re-attaches to) the job <meetingId>-transcribe and polls
// every pollInterval until COMPLETED, FAILED, or the attempt budget runs out.
func (t *TranscribeTrack) Run(ctx context.Context, meetingID, s3Key string) (string, error) {
	jobName := meetingID + "-transcribe"
	mediaURI := fmt.Sprintf("s3://%s/%s", t.bucket, s3Key)
	outKey := t.outputKey(meetingID)

	in := &transcribe.StartTranscriptionJobInput{
		TranscriptionJobName: aws.String(jobName),
		Media:                &types.Media{MediaFileUri: aws.String(mediaURI)},
		LanguageCode:         types.LanguageCode(t.languageCode),
		OutputBucketName:     aws.String(t.bucket),
		OutputKey:            aws.String(outKey),
	}
	if t.vocabulary != "" {
		in.Settings = &types.Settings{VocabularyName: aws.String(t.vocabulary)}
	}

	if _, err := t.api.StartTranscriptionJob(ctx, in); err != nil {
		// A redelivered message may find the job already running; poll it.
		var conflict *types.ConflictException
		if !errors.As(err, &conflict) {
			return "", fmt.Errorf("start transcription job %s: %w", jobName, err)
		}
		t.log.Info().Str("job", jobName).Msg("transcription job already exists, polling")
	}

	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(t.pollInterval):
		}

		out, err := t.api.GetTranscriptionJob(ctx, &transcribe.GetTranscriptionJobInput{
			TranscriptionJobName: aws.String(jobName),
		})
		if err != nil {
			return "", fmt.Errorf("get transcription job %s: %w", jobName, err)
		}

		job := out.TranscriptionJob
		switch job.TranscriptionJobStatus {
		case types.TranscriptionJobStatusCompleted:
			return outKey, nil
		case types.TranscriptionJobStatusFailed:
			return "", fmt.Errorf("transcription job %s failed: %s", jobName, aws.ToString(job.FailureReason))
		}
	}

	return "", fmt.Errorf("transcription job %s timed out after %d polls", jobName, t.maxAttempts)
}
