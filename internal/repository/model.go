package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

// Session is one stay of the bot in a voice channel.
type Session struct {
	ID         string
	GuildID    string
	ChannelID  string
	StartedAt  time.Time
	EndedAt    *time.Time
	Status     SessionStatus
	StopReason string
}

// TrackPlay records one track added to a session mix. EndedAt and EndReason
// are set when the mixer lets go of the track.
type TrackPlay struct {
	TrackID     string
	SessionID   string
	Source      string
	RequestedBy string
	Volume      float64
	Loop        bool
	AddedAt     time.Time
	EndedAt     *time.Time
	EndReason   string
}
