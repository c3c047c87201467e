package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Transcript source labels. The dual-track truncation splits on LabelWhisper,
// so it must stay byte-identical to what Assemble emits.
const (
	LabelAWS     = "[AWS Transcribe 转录]"
	LabelWhisper = "[Whisper 转录]"
	LabelFunASR  = "[FunASR 转录（含说话人标签）]"
)

// Truncation budgets, in runes.
const (
	sideLimit   = 60000  // each side of a dual transcript, and the FunASR body
	wholeLimit  = 120000 // single-source transcripts
	globalLimit = 200000 // hard cap before the prompt is built (LLM input envelope)
)

// ErrAllSourcesFailed is returned when no transcript part could be assembled.
var ErrAllSourcesFailed = errors.New("all transcript sources failed")

// Fetcher reads a stored blob by its full key.
type Fetcher interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Sources carries the per-track transcript keys from the TranscribeDone
// message. Empty means the track produced nothing.
type Sources struct {
	TranscribeKey string
	WhisperKey    string
	FunASRKey     string
}

// awsTranscript is the AWS Transcribe output envelope. Older jobs stored the
// plain text instead, so parse failures fall back to the raw payload.
type awsTranscript struct {
	Results struct {
		Transcripts []struct {
			Transcript string `json:"transcript"`
		} `json:"transcripts"`
	} `json:"results"`
}

// speakerTag tolerates both spellings of the FunASR speaker field: an integer
// spk-id (normalized to SPEAKER_<n>) or an explicit "SPEAKER_n" string.
type speakerTag string

func (s *speakerTag) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = speakerTag(str)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("speaker tag is neither string nor number: %s", b)
	}
	*s = speakerTag(fmt.Sprintf("SPEAKER_%d", n))
	return nil
}

type funasrSegment struct {
	Start   float64    `json:"start"`
	End     float64    `json:"end"`
	Text    string     `json:"text"`
	Speaker speakerTag `json:"speaker"`
}

type funasrPayload struct {
	Text     string          `json:"text"`
	Segments []funasrSegment `json:"segments"`
}

// Assemble fetches the available transcripts and concatenates them into the
// labelled ensemble fed to the model. Text-track fetches run concurrently
// with per-fetch error capture: one side failing must not lose the other.
func Assemble(ctx context.Context, blobs Fetcher, src Sources, log zerolog.Logger) (string, error) {
	var parts []string
	var fetchErrs []error

	if src.TranscribeKey != "" || src.WhisperKey != "" {
		var awsText, whisperText string
		var awsErr, whisperErr error
		var wg sync.WaitGroup

		if src.TranscribeKey != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var data []byte
				if data, awsErr = blobs.Get(ctx, src.TranscribeKey); awsErr == nil {
					awsText = extractAWSText(data)
				}
			}()
		}
		if src.WhisperKey != "" {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var data []byte
				if data, whisperErr = blobs.Get(ctx, src.WhisperKey); whisperErr == nil {
					whisperText = extractWhisperText(data)
				}
			}()
		}
		wg.Wait()

		if awsErr != nil {
			log.Warn().Err(awsErr).Msg("aws transcript fetch failed")
			fetchErrs = append(fetchErrs, awsErr)
		}
		if whisperErr != nil {
			log.Warn().Err(whisperErr).Msg("whisper transcript fetch failed")
			fetchErrs = append(fetchErrs, whisperErr)
		}

		switch {
		case awsText != "" && whisperText != "":
			parts = append(parts, LabelAWS+"\n"+awsText+"\n\n"+LabelWhisper+"\n"+whisperText)
		case awsText != "":
			parts = append(parts, awsText)
		case whisperText != "":
			parts = append(parts, whisperText)
		}
	}

	if src.FunASRKey != "" {
		data, err := blobs.Get(ctx, src.FunASRKey)
		if err != nil {
			log.Warn().Err(err).Msg("funasr transcript fetch failed")
			fetchErrs = append(fetchErrs, err)
		} else if body := renderFunASR(data); body != "" {
			parts = append(parts, LabelFunASR+"\n"+truncateRunes(body, sideLimit))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(fetchErrs...))
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractAWSText pulls the inner plain text out of the AWS Transcribe
// envelope, falling back to the raw payload for non-envelope blobs.
func extractAWSText(data []byte) string {
	var env awsTranscript
	if err := json.Unmarshal(data, &env); err == nil && len(env.Results.Transcripts) > 0 && env.Results.Transcripts[0].Transcript != "" {
		return env.Results.Transcripts[0].Transcript
	}
	return strings.TrimSpace(string(data))
}

// extractWhisperText reads the whisper server's {text, …} payload, falling
// back to the raw payload when it isn't JSON.
func extractWhisperText(data []byte) string {
	var resp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &resp); err == nil && resp.Text != "" {
		return resp.Text
	}
	return strings.TrimSpace(string(data))
}

// renderFunASR coalesces adjacent same-speaker segments and renders one
// "[SPEAKER_n] text" line per turn.
func renderFunASR(data []byte) string {
	var payload funasrPayload
	if err := json.Unmarshal(data, &payload); err != nil || len(payload.Segments) == 0 {
		return strings.TrimSpace(payload.Text)
	}

	var lines []string
	current := string(payload.Segments[0].Speaker)
	var turn strings.Builder
	turn.WriteString(payload.Segments[0].Text)

	flush := func() {
		lines = append(lines, "["+current+"] "+strings.TrimSpace(turn.String()))
		turn.Reset()
	}

	for _, seg := range payload.Segments[1:] {
		if string(seg.Speaker) != current {
			flush()
			current = string(seg.Speaker)
		}
		turn.WriteString(seg.Text)
	}
	flush()

	return strings.Join(lines, "\n")
}

// Truncate enforces the per-mode input budgets:
//   - dual (both AWS and Whisper labels): each side trimmed to 60k runes,
//     the Whisper label preserved between them;
//   - FunASR-only: the body after the label trimmed to 60k runes;
//   - anything else: the whole string trimmed to 120k runes.
//
// A 200k global cap guards the triple-source case.
func Truncate(s string) string {
	hasAWS := strings.Contains(s, LabelAWS)
	hasWhisper := strings.Contains(s, LabelWhisper)
	funasrOnly := strings.HasPrefix(s, LabelFunASR) && !hasAWS && !hasWhisper

	switch {
	case funasrOnly:
		body := strings.TrimPrefix(s, LabelFunASR)
		s = LabelFunASR + truncateRunes(body, sideLimit)
	case hasAWS && hasWhisper:
		idx := strings.Index(s, LabelWhisper)
		left := s[:idx]
		right := s[idx+len(LabelWhisper):]
		s = truncateRunes(left, sideLimit) + LabelWhisper + truncateRunes(right, sideLimit)
	default:
		s = truncateRunes(s, wholeLimit)
	}

	return truncateRunes(s, globalLimit)
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s // fewer bytes than the limit means fewer runes too
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
