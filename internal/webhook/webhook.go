package webhook

import (
	"context"
	"time"
)

type PlaybackReportTrack struct {
	TrackID     string     `json:"track_id"`
	Source      string     `json:"source"`
	RequestedBy string     `json:"requested_by"`
	Volume      float64    `json:"volume"`
	Loop        bool       `json:"loop"`
	AddedAt     time.Time  `json:"added_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	EndReason   string     `json:"end_reason,omitempty"`
}

// PlaybackReport summarises one voice session after the bot has left.
type PlaybackReport struct {
	SessionID       string                `json:"session_id"`
	GuildID         string                `json:"guild_id"`
	ChannelID       string                `json:"channel_id"`
	StartedAt       time.Time             `json:"started_at"`
	EndedAt         time.Time             `json:"ended_at"`
	DurationSeconds int64                 `json:"duration_seconds"`
	StopReason      string                `json:"stop_reason"`
	Tracks          []PlaybackReportTrack `json:"tracks"`
}

type Sender interface {
	SendPlaybackReport(ctx context.Context, report PlaybackReport) error
}
