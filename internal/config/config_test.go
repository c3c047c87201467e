package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		S3Bucket:              "media",
		MeetingsTable:         "meetings",
		TranscriptionQueueURL: "https://sqs/q1",
		ReportQueueURL:        "https://sqs/q2",
		ExportQueueURL:        "https://sqs/q3",
		EnableWhisper:         true,
		WhisperURL:            "http://whisper:9000",
		MaxMessages:           1,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name: "no_tracks",
			mutate: func(c *Config) {
				c.EnableTranscribe = false
				c.EnableWhisper = false
				c.FunASRURL = ""
			},
			wantErr: "no ASR track enabled",
		},
		{
			name: "funasr_url_alone_is_enough",
			mutate: func(c *Config) {
				c.EnableWhisper = false
				c.FunASRURL = "http://funasr:9001"
			},
		},
		{
			name: "whisper_without_url",
			mutate: func(c *Config) {
				c.WhisperURL = ""
			},
			wantErr: "requires WHISPER_URL",
		},
		{
			name: "max_messages_too_low",
			mutate: func(c *Config) {
				c.MaxMessages = 0
			},
			wantErr: "QUEUE_MAX_MESSAGES",
		},
		{
			name: "max_messages_too_high",
			mutate: func(c *Config) {
				c.MaxMessages = 11
			},
			wantErr: "QUEUE_MAX_MESSAGES",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFunASREnabled(t *testing.T) {
	cfg := validConfig()
	if cfg.FunASREnabled() {
		t.Error("FunASREnabled() = true with empty URL")
	}
	cfg.FunASRURL = "http://funasr:9001"
	if !cfg.FunASREnabled() {
		t.Error("FunASREnabled() = false with URL set")
	}
}
