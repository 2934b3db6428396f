package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	BackendVertex = "vertex"
	BackendAPI    = "api"
)

type Config struct {
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	Model     Model     `yaml:"model"`
	MQTT      MQTT      `yaml:"mqtt"`
	Actuation Actuation `yaml:"actuation"`
	Session   Session   `yaml:"session"`
	Speech    Speech    `yaml:"speech"`
	Journal   Journal   `yaml:"journal"`
	MCP       MCP       `yaml:"mcp"`
}

type Log struct {
	// Minimal level: debug, info, warn, error
	Level string `yaml:"level" example:"debug" validate:"oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

type HTTP struct {
	// Listen address of the API
	Addr string `yaml:"addr" example:":8000" validate:"required"`
	// Comma separated list of allowed CORS origins
	CORSOrigins string `yaml:"cors_origins" example:"*"`
	// Max accepted request body (audio uploads included)
	BodyLimit int `yaml:"body_limit" example:"16777216" validate:"min=0"`
}

type Model struct {
	// gemini or openai
	Provider string `yaml:"provider" example:"gemini" validate:"oneof=gemini openai"`
	// Upper bound of a single model invocation
	Timeout time.Duration `yaml:"timeout" example:"30s" validate:"gt=0"`
	// Sampling temperature
	Temperature float32 `yaml:"temperature" example:"0.4" validate:"min=0,max=2"`

	Gemini Gemini `yaml:"gemini"`
	OpenAI OpenAI `yaml:"openai"`
}

type Gemini struct {
	// vertex or api
	Backend string `yaml:"backend" example:"vertex" validate:"oneof=vertex api"`
	// GCP project, required for the vertex backend
	Project string `yaml:"project" example:"genai-exchange-bootcamp"`
	// GCP location, vertex backend only
	Location string `yaml:"location" example:"us-central1"`
	// Gemini API key, required for the api backend
	APIKey string `yaml:"api_key"`
	// Model name
	Model string `yaml:"model" example:"gemini-2.0-flash-001" validate:"required"`
}

type OpenAI struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX"`
	// OpenAI model
	Model string `yaml:"model" example:"gpt-4o-mini"`
}

type MQTT struct {
	// Broker host
	Broker string `yaml:"broker" example:"192.168.1.3" validate:"required"`
	// Broker port
	Port int `yaml:"port" example:"1883" validate:"min=1,max=65535"`
	// Topic the robot controller subscribes to
	Topic string `yaml:"topic" example:"robot/control" validate:"required"`
	// Client id prefix, a random suffix is appended per connection
	ClientID string `yaml:"client_id" example:"GeminiClient" validate:"required"`
	// Optional broker credentials
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// Publish QoS
	QoS byte `yaml:"qos" example:"0" validate:"max=2"`
	// MQTT keepalive
	KeepAlive time.Duration `yaml:"keep_alive" example:"60s" validate:"gt=0"`
	// Upper bound of connect+publish
	PublishTimeout time.Duration `yaml:"publish_timeout" example:"5s" validate:"gt=0"`
}

type Actuation struct {
	// Reject motor values outside of 1/0/-1 and speeds outside of 0-100
	StrictMotorValues bool `yaml:"strict_motor_values" example:"false"`
}

type Session struct {
	// Sessions idle for longer than this are evicted
	IdleTimeout time.Duration `yaml:"idle_timeout" example:"30m" validate:"gt=0"`
	// Reaper sweep period
	SweepInterval time.Duration `yaml:"sweep_interval" example:"5m" validate:"gt=0"`
}

type Speech struct {
	// Enable Yandex SpeechKit transcription
	Enabled bool `yaml:"enabled" example:"true"`
	// Path to the service account key json
	KeyFile string `yaml:"key_file" example:"service-account-key.json"`
	// Recognition language whitelist, empty means auto detection
	Languages []string `yaml:"languages" example:"[en-US]"`
	// ffmpeg binary used to decode uploads
	FFmpeg string `yaml:"ffmpeg" example:"ffmpeg"`
	// Upper bound of a single transcription
	Timeout time.Duration `yaml:"timeout" example:"30s" validate:"gt=0"`
}

type Journal struct {
	// sqlite or postgres, empty disables the command journal
	Driver string `yaml:"driver" example:"sqlite" validate:"omitempty,oneof=sqlite postgres"`
	// Driver DSN
	DSN string `yaml:"dsn" example:"data/journal.db"`
}

type MCP struct {
	// Listen address of the MCP server, empty disables it
	Addr string `yaml:"addr" example:":8090"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	if err := validateProvider(result.Model); err != nil {
		return nil, err
	}

	return &result, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8000"
	}
	if cfg.HTTP.CORSOrigins == "" {
		cfg.HTTP.CORSOrigins = "*"
	}
	if cfg.HTTP.BodyLimit == 0 {
		cfg.HTTP.BodyLimit = 16 << 20
	}

	if cfg.Model.Provider == "" {
		cfg.Model.Provider = ProviderGemini
	}
	if cfg.Model.Timeout == 0 {
		cfg.Model.Timeout = 30 * time.Second
	}
	if cfg.Model.Gemini.Backend == "" {
		cfg.Model.Gemini.Backend = BackendVertex
	}
	if cfg.Model.Gemini.Location == "" {
		cfg.Model.Gemini.Location = "us-central1"
	}
	if cfg.Model.Gemini.Model == "" {
		cfg.Model.Gemini.Model = "gemini-2.0-flash-001"
	}

	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "robot/control"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "GeminiClient"
	}
	if cfg.MQTT.KeepAlive == 0 {
		cfg.MQTT.KeepAlive = 60 * time.Second
	}
	if cfg.MQTT.PublishTimeout == 0 {
		cfg.MQTT.PublishTimeout = 5 * time.Second
	}

	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = 30 * time.Minute
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = 5 * time.Minute
	}

	if cfg.Speech.KeyFile == "" {
		cfg.Speech.KeyFile = "service-account-key.json"
	}
	if cfg.Speech.FFmpeg == "" {
		cfg.Speech.FFmpeg = "ffmpeg"
	}
	if cfg.Speech.Timeout == 0 {
		cfg.Speech.Timeout = 30 * time.Second
	}

	cfg.Journal.Driver = strings.ToLower(strings.TrimSpace(cfg.Journal.Driver))
	if cfg.Journal.Driver == "sqlite" && cfg.Journal.DSN == "" {
		cfg.Journal.DSN = "data/journal.db"
	}
}

func validateProvider(m Model) error {
	errBuilder := oops.In("config").With("provider", m.Provider)

	switch m.Provider {
	case ProviderGemini:
		if m.Gemini.Backend == BackendVertex && m.Gemini.Project == "" {
			return errBuilder.Errorf("model.gemini.project is required for the vertex backend")
		}
		if m.Gemini.Backend == BackendAPI && m.Gemini.APIKey == "" {
			return errBuilder.Errorf("model.gemini.api_key is required for the api backend")
		}
	case ProviderOpenAI:
		if m.OpenAI.Token == "" || m.OpenAI.Model == "" {
			return errBuilder.Errorf("model.openai.token and model.openai.model are required")
		}
	}

	return nil
}
