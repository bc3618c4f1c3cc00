package config

import (
	"fmt"
	"time"
)

type Config struct {
	Env                    string
	DiscordToken           string
	DiscordGuildID         string
	DatabaseURL            string
	FFmpegPath             string
	FFmpegReconnect        bool
	AudioSourceDir         string
	AudioDefaultVolume     float64
	AudioMaxTracks         int
	AudioLoopPreopen       bool
	AudioLoopReopenTimeout time.Duration
	OpusBitrate            int
	PlaybackWebhookURL     string
}

const (
	minOpusBitrate = 6000
	maxOpusBitrate = 510000
)

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if c.AudioDefaultVolume < 0 || c.AudioDefaultVolume > 1 {
		return fmt.Errorf("AUDIO_DEFAULT_VOLUME must be between 0 and 1, got %v", c.AudioDefaultVolume)
	}
	if c.AudioMaxTracks <= 0 {
		return fmt.Errorf("AUDIO_MAX_TRACKS must be positive, got %d", c.AudioMaxTracks)
	}
	if c.AudioLoopReopenTimeout <= 0 {
		return fmt.Errorf("AUDIO_LOOP_REOPEN_TIMEOUT must be positive, got %s", c.AudioLoopReopenTimeout)
	}
	if c.OpusBitrate < minOpusBitrate || c.OpusBitrate > maxOpusBitrate {
		return fmt.Errorf("OPUS_BITRATE must be between %d and %d, got %d", minOpusBitrate, maxOpusBitrate, c.OpusBitrate)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "FFMPEG_PATH", value: c.FFmpegPath},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
