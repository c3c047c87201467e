package asr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetscribe/minuted/internal/model"
)

// httpTrack is the shared client for the Whisper and FunASR HTTP servers.
// Both expose GET /health and POST /asr taking s3 coordinates as form fields
// and returning transcript JSON, which is persisted to the per-meeting key.
type httpTrack struct {
	name         string
	baseURL      string
	bucket       string
	blobs        BlobPutter
	client       *http.Client
	probeTimeout time.Duration
	postTimeout  time.Duration
	extraFields  url.Values
	log          zerolog.Logger
}

func newHTTPTrack(name, baseURL, bucket string, blobs BlobPutter, probeTimeout, postTimeout time.Duration, extra url.Values, log zerolog.Logger) *httpTrack {
	return &httpTrack{
		name:         name,
		baseURL:      strings.TrimRight(baseURL, "/"),
		bucket:       bucket,
		blobs:        blobs,
		client:       &http.Client{},
		probeTimeout: probeTimeout,
		postTimeout:  postTimeout,
		extraFields:  extra,
		log:          log.With().Str("track", name).Logger(),
	}
}

func (t *httpTrack) Name() string  { return t.name }
func (t *httpTrack) Enabled() bool { return t.baseURL != "" }

// healthy probes GET /health with a short deadline. Any 2xx counts as up.
func (t *httpTrack) healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, t.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Run skips when the backend is down (empty key, nil error); otherwise POSTs
// the blob coordinates and stores the response JSON. The POST is abandoned
// after postTimeout via the request context.
func (t *httpTrack) Run(ctx context.Context, meetingID, s3Key string) (string, error) {
	if !t.healthy(ctx) {
		t.log.Warn().Str("url", t.baseURL).Msg("asr backend unhealthy, skipping track")
		return "", nil
	}

	form := url.Values{}
	form.Set("s3_key", s3Key)
	form.Set("s3_bucket", t.bucket)
	for k, vs := range t.extraFields {
		for _, v := range vs {
			form.Add(k, v)
		}
	}

	postCtx, cancel := context.WithTimeout(ctx, t.postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(postCtx, http.MethodPost, t.baseURL+"/asr", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%s request: %w", t.name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s post: %w", t.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s read response: %w", t.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%s returned status %d: %s", t.name, resp.StatusCode, truncateForLog(body))
	}

	key, err := t.blobs.Put(ctx, model.TranscriptKey(meetingID, t.name), body, "application/json")
	if err != nil {
		return "", fmt.Errorf("store %s transcript: %w", t.name, err)
	}

	t.log.Info().Str("meeting_id", meetingID).Str("key", key).Int("bytes", len(body)).Msg("transcript stored")
	return key, nil
}

func truncateForLog(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
