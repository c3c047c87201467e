package asr

import (
	"time"

	"github.com/rs/zerolog"
)

// WhisperTrack calls the faster-whisper HTTP server.
// Response shape: {text, segments:[{start,end,text}], language}.
type WhisperTrack struct {
	*httpTrack
	enabled bool
}

type WhisperOptions struct {
	Enabled      bool
	URL          string
	Bucket       string
	ProbeTimeout time.Duration
	PostTimeout  time.Duration
}

func NewWhisperTrack(opts WhisperOptions, blobs BlobPutter, log zerolog.Logger) *WhisperTrack {
	return &WhisperTrack{
		httpTrack: newHTTPTrack("whisper", opts.URL, opts.Bucket, blobs, opts.ProbeTimeout, opts.PostTimeout, nil, log),
		enabled:   opts.Enabled && opts.URL != "",
	}
}

func (t *WhisperTrack) Enabled() bool { return t.enabled }
