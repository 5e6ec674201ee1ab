package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// TTS settings
	PiperPath        string
	PiperModel       string
	SynthesisTimeout time.Duration

	// State settings
	StateBackend string
	StateFile    string
	StateDB      string

	// Audio settings
	AudioOutput   string
	PlayerCommand string

	// Reading settings
	ReadChunkSize    int
	MaxSentenceBytes int
	StopTimeout      time.Duration

	// HTTP settings
	HTTPPort    int
	BearerToken string

	// Discord settings, used when AudioOutput is "discord"
	DiscordToken   string
	GuildID        string
	VoiceChannelID string

	// Logging settings
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	stateDir := defaultStateDir()

	cfg := &Config{
		// TTS settings
		PiperPath:        getEnvString("PIPER_PATH", "piper"),
		PiperModel:       getEnvString("PIPER_MODEL", ""),
		SynthesisTimeout: getEnvDuration("SYNTHESIS_TIMEOUT", 0),

		// State settings
		StateBackend: getEnvString("STATE_BACKEND", "json"),
		StateFile:    getEnvString("STATE_FILE", filepath.Join(stateDir, "app_config.json")),
		StateDB:      getEnvString("STATE_DB", filepath.Join(stateDir, "state.db")),

		// Audio settings
		AudioOutput:   getEnvString("AUDIO_OUTPUT", "local"),
		PlayerCommand: getEnvString("PLAYER_COMMAND", "ffplay -nodisp -autoexit -loglevel error"),

		// Reading settings
		ReadChunkSize:    getEnvInt("READ_CHUNK_SIZE", 4096),
		MaxSentenceBytes: getEnvInt("MAX_SENTENCE_BYTES", 2048),
		StopTimeout:      getEnvDuration("STOP_TIMEOUT", 2*time.Second),

		// HTTP settings
		HTTPPort:    getEnvInt("HTTP_PORT", 8080),
		BearerToken: os.Getenv("BEARER_TOKEN"),

		// Discord settings
		DiscordToken:   os.Getenv("DISCORD_TOKEN"),
		GuildID:        os.Getenv("GUILD_ID"),
		VoiceChannelID: os.Getenv("VOICE_CHANNEL_ID"),

		// Logging settings
		LogLevel:  getEnvString("LOG_LEVEL", "info"),
		LogFormat: getEnvString("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaultStateDir is the per-user directory holding reading state.
func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "readaloud")
	}
	return ".readaloud"
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.ReadChunkSize < 64 {
		return errors.New("READ_CHUNK_SIZE must be at least 64")
	}

	if c.MaxSentenceBytes < 1 {
		return errors.New("MAX_SENTENCE_BYTES must be at least 1")
	}

	if c.StopTimeout <= 0 {
		return errors.New("STOP_TIMEOUT must be positive")
	}

	if c.SynthesisTimeout < 0 {
		return errors.New("SYNTHESIS_TIMEOUT must be non-negative")
	}

	switch c.StateBackend {
	case "json":
		if c.StateFile == "" {
			return errors.New("STATE_FILE is required for the json state backend")
		}
	case "sqlite":
		if c.StateDB == "" {
			return errors.New("STATE_DB is required for the sqlite state backend")
		}
	default:
		return errors.New("STATE_BACKEND must be one of: json, sqlite")
	}

	switch c.AudioOutput {
	case "local":
		if c.PlayerCommand == "" {
			return errors.New("PLAYER_COMMAND is required for local audio output")
		}
	case "discord":
		if c.DiscordToken == "" || c.GuildID == "" || c.VoiceChannelID == "" {
			return errors.New("DISCORD_TOKEN, GUILD_ID and VOICE_CHANNEL_ID are required for discord audio output")
		}
	default:
		return errors.New("AUDIO_OUTPUT must be one of: local, discord")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
