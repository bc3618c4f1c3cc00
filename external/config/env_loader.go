package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/otomaze/internal/config"
)

type envConfig struct {
	Env                    string        `env:"ENV" envDefault:"production"`
	DiscordToken           string        `env:"DISCORD_TOKEN,required"`
	DiscordGuildID         string        `env:"DISCORD_GUILD_ID,required"`
	DatabaseURL            string        `env:"DATABASE_URL,required"`
	FFmpegPath             string        `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFmpegReconnect        bool          `env:"FFMPEG_RECONNECT" envDefault:"true"`
	AudioSourceDir         string        `env:"AUDIO_SOURCE_DIR"`
	AudioDefaultVolume     float64       `env:"AUDIO_DEFAULT_VOLUME" envDefault:"1.0"`
	AudioMaxTracks         int           `env:"AUDIO_MAX_TRACKS" envDefault:"8"`
	AudioLoopPreopen       bool          `env:"AUDIO_LOOP_PREOPEN" envDefault:"true"`
	AudioLoopReopenTimeout time.Duration `env:"AUDIO_LOOP_REOPEN_TIMEOUT" envDefault:"2s"`
	OpusBitrate            int           `env:"OPUS_BITRATE" envDefault:"64000"`
	PlaybackWebhookURL     string        `env:"PLAYBACK_WEBHOOK_URL"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                    raw.Env,
		DiscordToken:           raw.DiscordToken,
		DiscordGuildID:         raw.DiscordGuildID,
		DatabaseURL:            raw.DatabaseURL,
		FFmpegPath:             raw.FFmpegPath,
		FFmpegReconnect:        raw.FFmpegReconnect,
		AudioSourceDir:         raw.AudioSourceDir,
		AudioDefaultVolume:     raw.AudioDefaultVolume,
		AudioMaxTracks:         raw.AudioMaxTracks,
		AudioLoopPreopen:       raw.AudioLoopPreopen,
		AudioLoopReopenTimeout: raw.AudioLoopReopenTimeout,
		OpusBitrate:            raw.OpusBitrate,
		PlaybackWebhookURL:     raw.PlaybackWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
