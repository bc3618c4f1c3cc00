package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/foxseedlab/otomaze/internal/audio"
	"github.com/foxseedlab/otomaze/internal/discord"
)

const (
	commandJoin   = "join"
	commandLeave  = "leave"
	commandPlay   = "play"
	commandStop   = "stop"
	commandVolume = "volume"
	commandPause  = "pause"
	commandResume = "resume"
	commandLoop   = "loop"
	commandTracks = "tracks"

	optionSource  = "source"
	optionVolume  = "volume"
	optionLoop    = "loop"
	optionStart   = "start"
	optionTrack   = "track"
	optionValue   = "value"
	optionEnabled = "enabled"

	joinTimeout = 15 * time.Second
	playTimeout = 15 * time.Second
)

func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	zero := 0.0
	trackOption := discord.SlashCommandOption{
		Name:        optionTrack,
		Description: optionTrackDescription,
		Type:        discord.OptionString,
		Required:    true,
	}
	return []discord.SlashCommandDefinition{
		{Name: commandJoin, Description: slashCommandJoinDescription},
		{Name: commandLeave, Description: slashCommandLeaveDescription},
		{
			Name:        commandPlay,
			Description: slashCommandPlayDescription,
			Options: []discord.SlashCommandOption{
				{Name: optionSource, Description: optionSourceDescription, Type: discord.OptionString, Required: true},
				{Name: optionVolume, Description: optionVolumeDescription, Type: discord.OptionInteger, MinValue: &zero, MaxValue: 100},
				{Name: optionLoop, Description: optionLoopDescription, Type: discord.OptionBoolean},
				{Name: optionStart, Description: optionStartDescription, Type: discord.OptionInteger, MinValue: &zero},
			},
		},
		{Name: commandStop, Description: slashCommandStopDescription, Options: []discord.SlashCommandOption{trackOption}},
		{
			Name:        commandVolume,
			Description: slashCommandVolumeDescription,
			Options: []discord.SlashCommandOption{
				trackOption,
				{Name: optionValue, Description: optionVolumeDescription, Type: discord.OptionInteger, Required: true, MinValue: &zero, MaxValue: 100},
			},
		},
		{Name: commandPause, Description: slashCommandPauseDescription, Options: []discord.SlashCommandOption{trackOption}},
		{Name: commandResume, Description: slashCommandResumeDescription, Options: []discord.SlashCommandOption{trackOption}},
		{
			Name:        commandLoop,
			Description: slashCommandLoopDescription,
			Options: []discord.SlashCommandOption{
				trackOption,
				{Name: optionEnabled, Description: optionEnabledDescription, Type: discord.OptionBoolean, Required: true},
			},
		},
		{Name: commandTracks, Description: slashCommandTracksDescription},
	}
}

func (m *Manager) HandleSlashCommand(event discord.SlashCommandEvent) {
	if event.GuildID != m.cfg.DiscordGuildID {
		m.respond(event, messageEphemeralWrongGuild)
		return
	}

	switch event.CommandName {
	case commandJoin:
		m.respond(event, m.handleJoin(event))
	case commandLeave:
		m.respond(event, m.handleLeave(event))
	case commandPlay:
		m.respondSlow(event, m.handlePlay)
	case commandStop:
		m.respond(event, m.handleStop(event))
	case commandVolume:
		m.respond(event, m.handleVolume(event))
	case commandPause:
		m.respond(event, m.handlePause(event, true))
	case commandResume:
		m.respond(event, m.handlePause(event, false))
	case commandLoop:
		m.respond(event, m.handleLoop(event))
	case commandTracks:
		m.respond(event, m.handleTracks(event))
	default:
		m.respond(event, messageEphemeralUnknownCommand)
	}
}

func (m *Manager) respond(event discord.SlashCommandEvent, content string) {
	if event.RespondEphemeral == nil {
		return
	}
	if err := event.RespondEphemeral(content); err != nil {
		slog.Error("failed to respond to slash command", "error", err, "command", event.CommandName, "guild_id", event.GuildID)
	}
}

// respondSlow defers the interaction before running handler, for commands that
// may outlast Discord's initial response window.
func (m *Manager) respondSlow(event discord.SlashCommandEvent, handler func(discord.SlashCommandEvent) string) {
	if event.Defer == nil || event.EditResponse == nil {
		m.respond(event, handler(event))
		return
	}
	if err := event.Defer(); err != nil {
		slog.Error("failed to defer slash command", "error", err, "command", event.CommandName, "guild_id", event.GuildID)
		return
	}
	if err := event.EditResponse(handler(event)); err != nil {
		slog.Error("failed to edit slash command response", "error", err, "command", event.CommandName, "guild_id", event.GuildID)
	}
}

func (m *Manager) handleJoin(event discord.SlashCommandEvent) string {
	channelID, msg := m.callerVoiceChannel(event)
	if msg != "" {
		return msg
	}
	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	if err := m.Join(ctx, event.GuildID, channelID, event.ChannelID); err != nil {
		return joinErrorMessage(err, event)
	}
	return joinedMessage(channelID)
}

func (m *Manager) handleLeave(event discord.SlashCommandEvent) string {
	vs, ok := m.session(event.GuildID)
	if !ok {
		return messageEphemeralNotJoined
	}
	if !m.stop(event.GuildID, vs, stopReasonManualSlash) {
		return messageEphemeralNotJoined
	}
	return leftMessage(vs.channelID)
}

func (m *Manager) handlePlay(event discord.SlashCommandEvent) string {
	source, _ := event.StringOption(optionSource)
	source = strings.TrimSpace(source)
	if source == "" {
		return messageEphemeralSourceRequired
	}
	volume := m.cfg.AudioDefaultVolume
	if v, ok := event.IntOption(optionVolume); ok {
		volume = float64(v) / 100
	}
	loop, _ := event.BoolOption(optionLoop)
	var start time.Duration
	if sec, ok := event.IntOption(optionStart); ok && sec > 0 {
		start = time.Duration(sec) * time.Second
	}

	if _, ok := m.session(event.GuildID); !ok {
		channelID, msg := m.callerVoiceChannel(event)
		if msg != "" {
			return msg
		}
		ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
		err := m.Join(ctx, event.GuildID, channelID, event.ChannelID)
		cancel()
		if err != nil && !errors.Is(err, errAlreadyJoined) {
			return joinErrorMessage(err, event)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), playTimeout)
	defer cancel()
	t, err := m.Play(ctx, event.GuildID, PlayRequest{
		Source:      source,
		Start:       start,
		Volume:      volume,
		Loop:        loop,
		RequestedBy: event.UserID,
	})
	switch {
	case err == nil:
		return playStartedMessage(t)
	case errors.Is(err, errNotJoined):
		return messageEphemeralNotJoined
	case errors.Is(err, audio.ErrTooManyTracks):
		return messageEphemeralTooManyTracks
	case errors.Is(err, audio.ErrDecodeUnavailable):
		slog.Warn("source could not be opened", "error", err, "source", source, "guild_id", event.GuildID)
		return messageEphemeralSourceUnavailable
	default:
		slog.Error("failed to start playback", "error", err, "source", source, "guild_id", event.GuildID)
		return messageEphemeralPlayFailed
	}
}

func (m *Manager) handleStop(event discord.SlashCommandEvent) string {
	prefix, _ := event.StringOption(optionTrack)
	t, err := m.StopTrack(event.GuildID, prefix)
	if err != nil {
		return trackErrorMessage(err)
	}
	return fmt.Sprintf(messageStoppedFormat, shortTrackID(t.ID()))
}

func (m *Manager) handleVolume(event discord.SlashCommandEvent) string {
	prefix, _ := event.StringOption(optionTrack)
	value, _ := event.IntOption(optionValue)
	t, err := m.FindTrack(event.GuildID, prefix)
	if err != nil {
		return trackErrorMessage(err)
	}
	t.SetVolume(float64(value) / 100)
	return fmt.Sprintf(messageVolumeFormat, shortTrackID(t.ID()), volumePercent(t.Volume()))
}

func (m *Manager) handlePause(event discord.SlashCommandEvent, pause bool) string {
	prefix, _ := event.StringOption(optionTrack)
	t, err := m.FindTrack(event.GuildID, prefix)
	if err != nil {
		return trackErrorMessage(err)
	}
	t.SetPaused(pause)
	if pause {
		return fmt.Sprintf(messagePausedFormat, shortTrackID(t.ID()))
	}
	return fmt.Sprintf(messageResumedFormat, shortTrackID(t.ID()))
}

func (m *Manager) handleLoop(event discord.SlashCommandEvent) string {
	prefix, _ := event.StringOption(optionTrack)
	enabled, _ := event.BoolOption(optionEnabled)
	t, err := m.FindTrack(event.GuildID, prefix)
	if err != nil {
		return trackErrorMessage(err)
	}
	t.SetLoop(enabled)
	if enabled {
		return fmt.Sprintf(messageLoopOnFormat, shortTrackID(t.ID()))
	}
	return fmt.Sprintf(messageLoopOffFormat, shortTrackID(t.ID()))
}

func (m *Manager) handleTracks(event discord.SlashCommandEvent) string {
	tracks, err := m.Tracks(event.GuildID)
	if err != nil {
		return messageEphemeralNotJoined
	}
	return tracksMessage(tracks)
}

func (m *Manager) callerVoiceChannel(event discord.SlashCommandEvent) (string, string) {
	channelID, err := m.discord.GetUserVoiceChannelID(event.GuildID, event.UserID)
	if err != nil {
		slog.Error("failed to look up caller voice channel", "error", err, "guild_id", event.GuildID, "user_id", event.UserID)
		return "", messageEphemeralVoiceLookupFailed
	}
	if channelID == "" {
		return "", messageEphemeralJoinVCFirst
	}
	return channelID, ""
}

func joinErrorMessage(err error, event discord.SlashCommandEvent) string {
	switch {
	case errors.Is(err, errAlreadyJoined):
		return messageEphemeralAlreadyJoined
	case errors.Is(err, errJoinedElsewhere):
		return messageEphemeralJoinedElsewhere
	default:
		slog.Error("failed to join voice channel", "error", err, "guild_id", event.GuildID, "user_id", event.UserID)
		return messageEphemeralJoinFailed
	}
}

func trackErrorMessage(err error) string {
	switch {
	case errors.Is(err, errNotJoined):
		return messageEphemeralNotJoined
	case errors.Is(err, errTrackAmbiguous):
		return messageEphemeralTrackAmbiguous
	default:
		return messageEphemeralTrackNotFound
	}
}
