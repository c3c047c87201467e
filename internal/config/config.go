package config

import (
	"errors"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AWSRegion string `env:"AWS_REGION" envDefault:"us-east-1"`

	S3Bucket string `env:"S3_BUCKET,required"`
	S3Prefix string `env:"S3_PREFIX"`

	MeetingsTable string `env:"DYNAMODB_TABLE,required"`
	GlossaryTable string `env:"GLOSSARY_TABLE"`

	TranscriptionQueueURL string `env:"SQS_TRANSCRIPTION_QUEUE,required"`
	ReportQueueURL        string `env:"SQS_REPORT_QUEUE,required"`
	ExportQueueURL        string `env:"SQS_EXPORT_QUEUE,required"`

	// ASR tracks. FunASR is enabled by a non-empty FUNASR_URL.
	EnableTranscribe bool   `env:"ENABLE_TRANSCRIBE" envDefault:"false"`
	EnableWhisper    bool   `env:"ENABLE_WHISPER" envDefault:"false"`
	WhisperURL       string `env:"WHISPER_URL"`
	FunASRURL        string `env:"FUNASR_URL"`
	FunASRLanguage   string `env:"FUNASR_LANGUAGE" envDefault:"auto"`

	TranscribeLanguage   string `env:"TRANSCRIBE_LANGUAGE_CODE" envDefault:"zh-CN"`
	TranscribeVocabulary string `env:"TRANSCRIBE_VOCABULARY"`

	BedrockModelID string `env:"BEDROCK_MODEL_ID" envDefault:"anthropic.claude-3-5-sonnet-20241022-v2:0"`
	LLMMaxTokens   int    `env:"LLM_MAX_TOKENS" envDefault:"16000"`

	SESFromEmail string `env:"SES_FROM_EMAIL"`
	SESToEmail   string `env:"SES_TO_EMAIL"`

	// Stage controller tuning.
	PollWait      time.Duration `env:"QUEUE_POLL_WAIT" envDefault:"20s"`
	IdleSleep     time.Duration `env:"QUEUE_IDLE_SLEEP" envDefault:"5s"`
	MaxMessages   int           `env:"QUEUE_MAX_MESSAGES" envDefault:"1"`
	ASRPostLimit  time.Duration `env:"ASR_POST_TIMEOUT" envDefault:"30m"`
	ASRProbeLimit time.Duration `env:"ASR_PROBE_TIMEOUT" envDefault:"5s"`

	OpsAddr      string        `env:"OPS_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// FunASREnabled reports whether the FunASR track is active.
func (c *Config) FunASREnabled() bool { return c.FunASRURL != "" }

// Validate catches configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if !c.EnableTranscribe && !c.EnableWhisper && !c.FunASREnabled() {
		return errors.New("no ASR track enabled: set ENABLE_TRANSCRIBE, ENABLE_WHISPER or FUNASR_URL")
	}
	if c.EnableWhisper && c.WhisperURL == "" {
		return errors.New("ENABLE_WHISPER=true requires WHISPER_URL")
	}
	if c.MaxMessages < 1 || c.MaxMessages > 10 {
		return errors.New("QUEUE_MAX_MESSAGES must be between 1 and 10")
	}
	return nil
}

// Load reads configuration from an optional .env file and the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
