package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	GuildID   string
	ChannelID string
	StartedAt time.Time
}

type CompleteSessionInput struct {
	SessionID  string
	EndedAt    time.Time
	StopReason string
}

type InsertTrackPlayInput struct {
	TrackID     string
	SessionID   string
	Source      string
	RequestedBy string
	Volume      float64
	Loop        bool
	AddedAt     time.Time
}

// CompleteTrackPlayInput carries the whole play so that completion can be
// recorded even if it is persisted before the matching insert.
type CompleteTrackPlayInput struct {
	InsertTrackPlayInput
	EndedAt   time.Time
	EndReason string
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	CompleteSession(ctx context.Context, input CompleteSessionInput) error
	GetRunningSessionByGuild(ctx context.Context, guildID string) (*Session, error)
	// CompleteStaleSessions closes sessions left running by a previous process.
	CompleteStaleSessions(ctx context.Context, endedAt time.Time, reason string) (int64, error)
}

type TrackPlayRepository interface {
	InsertTrackPlay(ctx context.Context, input InsertTrackPlayInput) error
	CompleteTrackPlay(ctx context.Context, input CompleteTrackPlayInput) error
	ListTrackPlaysBySessionID(ctx context.Context, sessionID string) ([]TrackPlay, error)
}

type Repository interface {
	SessionRepository
	TrackPlayRepository
}
