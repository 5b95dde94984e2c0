package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the meeting audio service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Externally reachable base URL of this service, without scheme
	// (e.g. "meetings.example.com"). Used to build the realtime endpoints
	// handed to the meeting-bot platform.
	PublicHost string `envconfig:"PUBLIC_HOST" default:""`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Language code (en, es, fr, etc.)

	// Recall.ai meeting-bot API configuration
	RecallAPIKey  string `envconfig:"RECALL_API_KEY" default:""`
	RecallBaseURL string `envconfig:"RECALL_BASE_URL" default:"https://us-west-2.recall.ai/api/v1"`
	BotName       string `envconfig:"BOT_NAME" default:"VoiceBot"`

	// TTS service for spoken prompt synthesis (optional)
	TTSServiceURL string `envconfig:"TTS_SERVICE_URL" default:""`
	TTSAuthToken  string `envconfig:"TTS_AUTH_TOKEN" default:""`

	// MongoDB document store
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"meeting_audio"`

	// Audio processing configuration
	SampleRate    int     `envconfig:"SAMPLE_RATE" default:"16000"`   // Hz, 16 kHz mono S16LE
	WindowSeconds float64 `envconfig:"WINDOW_SECONDS" default:"10.0"` // Transcription window duration
	Channels      int     `envconfig:"CHANNELS" default:"1"`          // Mono
	SampleWidth   int     `envconfig:"SAMPLE_WIDTH" default:"2"`      // 16-bit = 2 bytes

	// Transcription dispatcher configuration
	TranscribeWorkers   int `envconfig:"TRANSCRIBE_WORKERS" default:"4"`     // Worker pool size
	TranscribeQueueSize int `envconfig:"TRANSCRIBE_QUEUE_SIZE" default:"64"` // Bounded submit queue
	TranscribeTimeout   int `envconfig:"TRANSCRIBE_TIMEOUT" default:"60"`    // Per-window STT timeout (seconds)

	// Transcript log output
	TranscriptDir string `envconfig:"TRANSCRIPT_DIR" default:"transcripts"`

	// Session lifecycle
	SessionIdleTimeout int `envconfig:"SESSION_IDLE_TIMEOUT" default:"300"` // Seconds before an idle session is closed

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// WindowSamples returns the number of PCM samples in one transcription window.
func (c *Config) WindowSamples() int {
	return int(c.WindowSeconds * float64(c.SampleRate))
}

// AudioStreamURL is the websocket endpoint the meeting bot streams raw
// audio to. Empty when no public host is configured.
func (c *Config) AudioStreamURL() string {
	if c.PublicHost == "" {
		return ""
	}
	return "wss://" + c.PublicHost + "/streams/meeting"
}

// TranscriptWebhookURL is the webhook endpoint for provider transcript
// events. Empty when no public host is configured.
func (c *Config) TranscriptWebhookURL() string {
	if c.PublicHost == "" {
		return ""
	}
	return "https://" + c.PublicHost + "/api/webhook/meeting/transcript"
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("SAMPLE_RATE must be positive, got %d", cfg.SampleRate)
	}
	if cfg.WindowSeconds <= 0 {
		return nil, fmt.Errorf("WINDOW_SECONDS must be positive, got %f", cfg.WindowSeconds)
	}

	return &cfg, nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
