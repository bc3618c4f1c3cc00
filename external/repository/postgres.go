package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foxseedlab/otomaze/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

// Shutdown closes the pool. The injector calls it on shutdown.
func (r *PostgresRepository) Shutdown() {
	r.pool.Close()
}

const sessionColumns = `id, guild_id, channel_id, started_at, ended_at, status, stop_reason`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var endedAt *time.Time
	if err := row.Scan(&s.ID, &s.GuildID, &s.ChannelID, &s.StartedAt, &endedAt, &s.Status, &s.StopReason); err != nil {
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO voice_sessions (guild_id, channel_id, started_at, status)
		 VALUES ($1, $2, $3, 'running')
		 RETURNING `+sessionColumns,
		input.GuildID, input.ChannelID, input.StartedAt)
	return scanSession(row)
}

func (r *PostgresRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE voice_sessions SET status = 'completed', ended_at = $2, stop_reason = $3
		 WHERE id = $1 AND status = 'running'`,
		input.SessionID, input.EndedAt, input.StopReason)
	return err
}

func (r *PostgresRepository) GetRunningSessionByGuild(ctx context.Context, guildID string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM voice_sessions WHERE guild_id = $1 AND status = 'running'
		 ORDER BY started_at DESC LIMIT 1`,
		guildID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) CompleteStaleSessions(ctx context.Context, endedAt time.Time, reason string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE voice_sessions SET status = 'completed', ended_at = $1, stop_reason = $2
		 WHERE status = 'running'`,
		endedAt, reason)
	if err != nil {
		return 0, err
	}
	if _, err := r.pool.Exec(ctx,
		`UPDATE track_plays SET ended_at = $1, end_reason = $2 WHERE ended_at IS NULL`,
		endedAt, reason); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) InsertTrackPlay(ctx context.Context, input repository.InsertTrackPlayInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO track_plays (track_id, session_id, source, requested_by, volume, loop_enabled, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (track_id) DO NOTHING`,
		input.TrackID, input.SessionID, input.Source, input.RequestedBy, input.Volume, input.Loop, input.AddedAt)
	return err
}

func (r *PostgresRepository) CompleteTrackPlay(ctx context.Context, input repository.CompleteTrackPlayInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO track_plays (track_id, session_id, source, requested_by, volume, loop_enabled, added_at, ended_at, end_reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (track_id) DO UPDATE SET ended_at = EXCLUDED.ended_at, end_reason = EXCLUDED.end_reason
		 WHERE track_plays.ended_at IS NULL`,
		input.TrackID, input.SessionID, input.Source, input.RequestedBy, input.Volume, input.Loop, input.AddedAt,
		input.EndedAt, input.EndReason)
	return err
}

func (r *PostgresRepository) ListTrackPlaysBySessionID(ctx context.Context, sessionID string) ([]repository.TrackPlay, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT track_id, session_id, source, requested_by, volume, loop_enabled, added_at, ended_at, end_reason
		 FROM track_plays WHERE session_id = $1 ORDER BY added_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.TrackPlay
	for rows.Next() {
		var p repository.TrackPlay
		var endedAt *time.Time
		if err := rows.Scan(&p.TrackID, &p.SessionID, &p.Source, &p.RequestedBy, &p.Volume, &p.Loop, &p.AddedAt, &endedAt, &p.EndReason); err != nil {
			return nil, err
		}
		p.EndedAt = endedAt
		list = append(list, p)
	}
	return list, rows.Err()
}
