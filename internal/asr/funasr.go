package asr

import (
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// FunASRTrack calls the Paraformer/CAM++ HTTP server. It is the only track
// producing speaker-labelled segments.
// Response shape: {text, segments:[{start,end,text,speaker}], speakers, speaker_count}
// where speaker is either an integer spk-id or a "SPEAKER_n" string.
type FunASRTrack struct {
	*httpTrack
}

type FunASROptions struct {
	URL          string // empty disables the track
	Bucket       string
	Language     string
	ProbeTimeout time.Duration
	PostTimeout  time.Duration
}

func NewFunASRTrack(opts FunASROptions, blobs BlobPutter, log zerolog.Logger) *FunASRTrack {
	extra := url.Values{}
	if opts.Language != "" {
		extra.Set("language", opts.Language)
	}
	return &FunASRTrack{
		httpTrack: newHTTPTrack("funasr", opts.URL, opts.Bucket, blobs, opts.ProbeTimeout, opts.PostTimeout, extra, log),
	}
}
