// Package asr holds the speech-to-text tracks fanned out by the
// transcription stage. Each track is independently failable: one track's
// error never cancels its siblings, and a skipped track (backend down,
// track disabled) reports an empty blob key with no error.
package asr

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Track is one speech-to-text backend. Run transcribes the media at s3Key and
// returns the blob key of the stored transcript, or "" when the track skipped.
type Track interface {
	Name() string
	Enabled() bool
	Run(ctx context.Context, meetingID, s3Key string) (string, error)
}

// Result is the outcome of one track.
type Result struct {
	Name    string
	BlobKey string
	Err     error
}

// BlobPutter stores a transcript payload and returns the full blob key.
type BlobPutter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// RunAll fans out to every enabled track in parallel and gathers per-track
// results. Errors are captured, not propagated; the caller decides whether
// zero successes is fatal.
func RunAll(ctx context.Context, tracks []Track, meetingID, s3Key string, log zerolog.Logger) []Result {
	enabled := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t.Enabled() {
			enabled = append(enabled, t)
		}
	}

	results := make([]Result, len(enabled))
	var wg sync.WaitGroup
	for i, t := range enabled {
		wg.Add(1)
		go func(i int, t Track) {
			defer wg.Done()
			key, err := t.Run(ctx, meetingID, s3Key)
			results[i] = Result{Name: t.Name(), BlobKey: key, Err: err}
			if err != nil {
				log.Warn().Err(err).Str("track", t.Name()).Str("meeting_id", meetingID).Msg("asr track failed")
			}
		}(i, t)
	}
	wg.Wait()
	return results
}
