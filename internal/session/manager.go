package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/config"
	"github.com/foxseedlab/otomaze/internal/discord"
	"github.com/foxseedlab/otomaze/internal/repository"
	"github.com/foxseedlab/otomaze/internal/webhook"
)

const (
	stopReasonManualSlash      = "manual_slash"
	stopReasonParticipantsLeft = "participants_left"
	stopReasonBotRemoved       = "bot_removed"
	stopReasonServerClosed     = "server_closed"
	stopReasonOrphaned         = "orphaned"

	metadataRequestedBy = "requested_by"

	recordTimeout   = 5 * time.Second
	finalizeTimeout = 15 * time.Second
)

var (
	errAlreadyJoined   = errors.New("already joined this voice channel")
	errJoinedElsewhere = errors.New("already joined another voice channel in this guild")
	errNotJoined       = errors.New("not joined to a voice channel")
	errTrackNotFound   = errors.New("track not found")
	errTrackAmbiguous  = errors.New("track id prefix matches more than one track")
)

// Manager owns one voice session per guild and is the control plane for the
// mixer inside it.
type Manager struct {
	cfg        *config.Config
	repo       repository.Repository
	discord    discord.Client
	webhook    webhook.Sender
	newMixer   audio.MixerFactory
	newEncoder audio.EncoderFactory

	joinMu     sync.Mutex
	mu         sync.Mutex
	sessions   map[string]*voiceSession
	botUserID  string
	finalizing sync.WaitGroup
}

type voiceSession struct {
	repoSession   *repository.Session
	guildID       string
	channelID     string
	textChannelID string
	voice         discord.VoiceConnection
	mixer         *audio.Mixer
	cancel        context.CancelFunc
	done          chan struct{}

	recordMu      sync.Mutex
	recordsSealed bool
	records       sync.WaitGroup
}

// goRecord runs write in the background unless the session's history has
// already been sealed for its report. It reports whether write was started.
func (vs *voiceSession) goRecord(write func()) bool {
	vs.recordMu.Lock()
	defer vs.recordMu.Unlock()
	if vs.recordsSealed {
		return false
	}
	vs.records.Add(1)
	go func() {
		defer vs.records.Done()
		write()
	}()
	return true
}

// sealRecords refuses further writes and waits for the pending ones.
func (vs *voiceSession) sealRecords() {
	vs.recordMu.Lock()
	vs.recordsSealed = true
	vs.recordMu.Unlock()
	vs.records.Wait()
}

func NewManager(cfg *config.Config, repo repository.Repository, dc discord.Client, wh webhook.Sender, newMixer audio.MixerFactory, newEncoder audio.EncoderFactory) *Manager {
	return &Manager{
		cfg:        cfg,
		repo:       repo,
		discord:    dc,
		webhook:    wh,
		newMixer:   newMixer,
		newEncoder: newEncoder,
		sessions:   make(map[string]*voiceSession),
	}
}

func (m *Manager) SetBotUserID(botUserID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botUserID = botUserID
}

func (m *Manager) session(guildID string) (*voiceSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.sessions[guildID]
	return vs, ok
}

// Join connects to a voice channel and starts a playback loop for it.
func (m *Manager) Join(ctx context.Context, guildID, channelID, textChannelID string) error {
	m.joinMu.Lock()
	defer m.joinMu.Unlock()

	if vs, ok := m.session(guildID); ok {
		if vs.channelID == channelID {
			return errAlreadyJoined
		}
		return errJoinedElsewhere
	}
	slog.Info("join requested", "guild_id", guildID, "channel_id", channelID)

	orphan, err := m.repo.GetRunningSessionByGuild(ctx, guildID)
	if err != nil {
		return fmt.Errorf("query running session: %w", err)
	}
	if orphan != nil {
		slog.Warn("found orphan running session in repository; closing and continuing", "session_id", orphan.ID, "guild_id", guildID)
		if err := m.repo.CompleteSession(ctx, repository.CompleteSessionInput{
			SessionID:  orphan.ID,
			EndedAt:    time.Now(),
			StopReason: stopReasonOrphaned,
		}); err != nil {
			return fmt.Errorf("complete orphan session: %w", err)
		}
	}

	encoder, err := m.newEncoder()
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}
	voice, err := m.discord.JoinVoiceChannel(guildID, channelID)
	if err != nil {
		return fmt.Errorf("join voice channel: %w", err)
	}
	created, err := m.repo.CreateSession(ctx, repository.CreateSessionInput{
		GuildID:   guildID,
		ChannelID: channelID,
		StartedAt: time.Now(),
	})
	if err != nil {
		_ = voice.Disconnect()
		return fmt.Errorf("create session: %w", err)
	}

	vs := &voiceSession{
		repoSession:   created,
		guildID:       guildID,
		channelID:     channelID,
		textChannelID: textChannelID,
		voice:         voice,
		done:          make(chan struct{}),
	}
	vs.mixer = m.newMixer(audio.WithOnTrackRemoved(func(t *audio.Track, reason audio.RemoveReason) {
		m.recordTrackEnd(vs, t, reason)
	}))
	loopCtx, cancel := context.WithCancel(context.Background())
	vs.cancel = cancel

	m.mu.Lock()
	m.sessions[guildID] = vs
	m.mu.Unlock()

	p := newPlayer(created.ID, vs.mixer, encoder, voice)
	go func() {
		defer close(vs.done)
		p.run(loopCtx)
	}()
	slog.Info("session activated", "session_id", created.ID, "guild_id", guildID, "channel_id", channelID)
	return nil
}

// Leave stops the guild's session. It reports whether a session was running.
func (m *Manager) Leave(guildID, reason string) bool {
	return m.stop(guildID, nil, reason)
}

// stop tears down the guild's session. With want set, only that exact session
// is stopped.
func (m *Manager) stop(guildID string, want *voiceSession, reason string) bool {
	m.mu.Lock()
	vs, ok := m.sessions[guildID]
	if ok && want != nil && vs != want {
		ok = false
	}
	if ok {
		delete(m.sessions, guildID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	slog.Info("stopping session", "session_id", vs.repoSession.ID, "guild_id", guildID, "channel_id", vs.channelID, "reason", reason)
	vs.cancel()
	// Closing the mixer first unblocks a loop stuck on a stalled source.
	vs.mixer.Close()
	<-vs.done
	if err := vs.voice.Speaking(false); err != nil {
		slog.Debug("failed to clear speaking state", "error", err, "session_id", vs.repoSession.ID)
	}
	if err := vs.voice.Disconnect(); err != nil {
		slog.Warn("voice disconnect failed", "error", err, "session_id", vs.repoSession.ID)
	}

	m.finalizing.Add(1)
	go func() {
		defer m.finalizing.Done()
		m.finalizeSession(vs, reason)
	}()
	return true
}

// Shutdown leaves every guild and waits for their reports until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	guildIDs := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		guildIDs = append(guildIDs, id)
	}
	m.mu.Unlock()

	for _, id := range guildIDs {
		m.Leave(id, stopReasonServerClosed)
	}

	done := make(chan struct{})
	go func() {
		m.finalizing.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown finished before all sessions were finalized", "error", ctx.Err())
	}
}

func (m *Manager) finalizeSession(vs *voiceSession, reason string) {
	vs.sealRecords()

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	s := vs.repoSession
	endedAt := time.Now()
	if err := m.repo.CompleteSession(ctx, repository.CompleteSessionInput{
		SessionID:  s.ID,
		EndedAt:    endedAt,
		StopReason: reason,
	}); err != nil {
		slog.Error("failed to complete session", "error", err, "session_id", s.ID)
	}

	plays, err := m.repo.ListTrackPlaysBySessionID(ctx, s.ID)
	if err != nil {
		slog.Error("failed to list track plays", "error", err, "session_id", s.ID)
	}
	report := buildPlaybackReport(s, endedAt, reason, plays)
	if err := m.webhook.SendPlaybackReport(ctx, report); err != nil {
		slog.Error("failed to send playback report", "error", err, "session_id", s.ID)
	}
	slog.Info("session finalized", "session_id", s.ID, "reason", reason, "tracks", len(report.Tracks), "duration_seconds", report.DurationSeconds)
}

func buildPlaybackReport(s *repository.Session, endedAt time.Time, reason string, plays []repository.TrackPlay) webhook.PlaybackReport {
	tracks := make([]webhook.PlaybackReportTrack, 0, len(plays))
	for _, p := range plays {
		tracks = append(tracks, webhook.PlaybackReportTrack{
			TrackID:     p.TrackID,
			Source:      p.Source,
			RequestedBy: p.RequestedBy,
			Volume:      p.Volume,
			Loop:        p.Loop,
			AddedAt:     p.AddedAt,
			EndedAt:     p.EndedAt,
			EndReason:   p.EndReason,
		})
	}
	return webhook.PlaybackReport{
		SessionID:       s.ID,
		GuildID:         s.GuildID,
		ChannelID:       s.ChannelID,
		StartedAt:       s.StartedAt,
		EndedAt:         endedAt,
		DurationSeconds: int64(endedAt.Sub(s.StartedAt).Seconds()),
		StopReason:      reason,
		Tracks:          tracks,
	}
}

// PlayRequest describes one /play invocation.
type PlayRequest struct {
	Source      string
	Start       time.Duration
	Volume      float64
	Loop        bool
	RequestedBy string
}

// Play opens a source and adds it to the guild's mix. A session that is left
// while the source is opening gets nothing: the track is dropped and Play
// fails with errNotJoined.
func (m *Manager) Play(ctx context.Context, guildID string, req PlayRequest) (*audio.Track, error) {
	vs, ok := m.session(guildID)
	if !ok {
		return nil, errNotJoined
	}
	src := audio.Source{Location: req.Source, Start: req.Start}
	id, err := vs.mixer.AddTrack(ctx, src, req.Volume, req.Loop, audio.Metadata{
		metadataRequestedBy: req.RequestedBy,
	})
	if errors.Is(err, audio.ErrMixerClosed) {
		return nil, errNotJoined
	}
	if err != nil {
		return nil, err
	}
	if cur, ok := m.session(guildID); !ok || cur != vs {
		vs.mixer.RemoveTrack(id)
		return nil, errNotJoined
	}
	t, ok := vs.mixer.GetTrack(id)
	if !ok {
		// Finished before we could look at it; the removal hook has recorded it.
		return nil, fmt.Errorf("%w: %s ended immediately", errTrackNotFound, id)
	}

	started := vs.goRecord(func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := m.repo.InsertTrackPlay(ctx, trackPlayInput(vs, t)); err != nil {
			slog.Error("failed to record track play", "error", err, "track_id", t.ID(), "session_id", vs.repoSession.ID)
		}
	})
	if !started {
		vs.mixer.RemoveTrack(id)
		return nil, errNotJoined
	}
	slog.Info("track started", "guild_id", guildID, "track_id", t.ID(), "source", req.Source, "start", req.Start, "volume", t.Volume(), "loop", req.Loop, "requested_by", req.RequestedBy)
	return t, nil
}

// recordTrackEnd runs from the mixer hook, possibly on the audio path, so the
// write is handed to a goroutine.
func (m *Manager) recordTrackEnd(vs *voiceSession, t *audio.Track, reason audio.RemoveReason) {
	endedAt := time.Now()
	started := vs.goRecord(func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := m.repo.CompleteTrackPlay(ctx, repository.CompleteTrackPlayInput{
			InsertTrackPlayInput: trackPlayInput(vs, t),
			EndedAt:              endedAt,
			EndReason:            string(reason),
		}); err != nil {
			slog.Error("failed to record track end", "error", err, "track_id", t.ID(), "session_id", vs.repoSession.ID)
		}
	})
	if !started {
		slog.Debug("track ended after session was finalized", "track_id", t.ID(), "session_id", vs.repoSession.ID, "reason", reason)
	}
}

func trackPlayInput(vs *voiceSession, t *audio.Track) repository.InsertTrackPlayInput {
	requestedBy, _ := t.Metadata()[metadataRequestedBy].(string)
	return repository.InsertTrackPlayInput{
		TrackID:     string(t.ID()),
		SessionID:   vs.repoSession.ID,
		Source:      t.Source().Location,
		RequestedBy: requestedBy,
		Volume:      t.Volume(),
		Loop:        t.Loop(),
		AddedAt:     t.AddedAt(),
	}
}

// FindTrack resolves a user-supplied id prefix against the guild's tracks.
func (m *Manager) FindTrack(guildID, prefix string) (*audio.Track, error) {
	vs, ok := m.session(guildID)
	if !ok {
		return nil, errNotJoined
	}
	tracks := vs.mixer.Tracks()
	ids := make([]audio.TrackID, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID())
	}
	id, err := matchTrackID(ids, prefix)
	if err != nil {
		return nil, err
	}
	t, ok := vs.mixer.GetTrack(id)
	if !ok {
		return nil, errTrackNotFound
	}
	return t, nil
}

func matchTrackID(ids []audio.TrackID, prefix string) (audio.TrackID, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return "", errTrackNotFound
	}
	var found []audio.TrackID
	for _, id := range ids {
		if string(id) == prefix {
			return id, nil
		}
		if strings.HasPrefix(string(id), prefix) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", errTrackNotFound
	case 1:
		return found[0], nil
	default:
		return "", errTrackAmbiguous
	}
}

// StopTrack removes a track from the guild's mix.
func (m *Manager) StopTrack(guildID, prefix string) (*audio.Track, error) {
	t, err := m.FindTrack(guildID, prefix)
	if err != nil {
		return nil, err
	}
	vs, ok := m.session(guildID)
	if !ok {
		return nil, errNotJoined
	}
	if !vs.mixer.RemoveTrack(t.ID()) {
		return nil, errTrackNotFound
	}
	return t, nil
}

// Tracks lists the guild's tracks in the order they were added.
func (m *Manager) Tracks(guildID string) ([]*audio.Track, error) {
	vs, ok := m.session(guildID)
	if !ok {
		return nil, errNotJoined
	}
	return vs.mixer.Tracks(), nil
}

func (m *Manager) HandleVoiceStateUpdate(event discord.VoiceStateEvent) {
	if event.GuildID != m.cfg.DiscordGuildID {
		return
	}
	vs, ok := m.session(event.GuildID)
	if !ok {
		return
	}
	m.mu.Lock()
	botUserID := m.botUserID
	m.mu.Unlock()

	if event.UserID == botUserID {
		if event.AfterChannelID != vs.channelID {
			slog.Info("bot left voice channel", "guild_id", event.GuildID, "before_channel_id", event.BeforeChannelID, "after_channel_id", event.AfterChannelID)
			m.endSession(vs, stopReasonBotRemoved)
		}
		return
	}
	if event.BeforeChannelID != vs.channelID && event.AfterChannelID != vs.channelID {
		return
	}

	participants, err := m.discord.ListVoiceChannelParticipants(event.GuildID, vs.channelID)
	if err != nil {
		slog.Warn("failed to list voice channel participants", "error", err, "guild_id", event.GuildID, "channel_id", vs.channelID)
		return
	}
	humans := 0
	for _, p := range participants {
		if !p.IsBot && p.UserID != botUserID {
			humans++
		}
	}
	slog.Debug("voice participants updated", "guild_id", event.GuildID, "channel_id", vs.channelID, "humans", humans)
	if humans == 0 {
		m.endSession(vs, stopReasonParticipantsLeft)
	}
}

// endSession leaves on the bot's own initiative and tells the text channel why.
func (m *Manager) endSession(vs *voiceSession, reason string) {
	if !m.stop(vs.guildID, vs, reason) {
		return
	}
	if vs.textChannelID == "" {
		return
	}
	if err := m.discord.SendChannelMessage(vs.textChannelID, sessionEndedMessage(reason)); err != nil {
		slog.Warn("failed to post session end message", "error", err, "channel_id", vs.textChannelID)
	}
}
