package session

import (
	"fmt"
	"strings"

	"github.com/foxseedlab/otomaze/internal/audio"
)

const (
	slashCommandJoinDescription   = "あなたがいるボイスチャンネルに参加します。"
	slashCommandLeaveDescription  = "ボイスチャンネルから退出し、すべての再生を止めます。"
	slashCommandPlayDescription   = "音源をミックスに追加して再生します。"
	slashCommandStopDescription   = "トラックを停止してミックスから外します。"
	slashCommandVolumeDescription = "トラックの音量を変更します。"
	slashCommandPauseDescription  = "トラックを一時停止します。"
	slashCommandResumeDescription = "一時停止したトラックを再開します。"
	slashCommandLoopDescription   = "トラックのループ再生を切り替えます。"
	slashCommandTracksDescription = "再生中のトラックを一覧表示します。"

	optionSourceDescription  = "ファイル名または URL"
	optionVolumeDescription  = "音量 (0-100)"
	optionLoopDescription    = "ループ再生する"
	optionStartDescription   = "再生開始位置 (秒)"
	optionTrackDescription   = "トラック ID (先頭数文字でも可)"
	optionEnabledDescription = "ループを有効にする"

	messageEphemeralWrongGuild        = ":warning: **このサーバーでは実行できません。**"
	messageEphemeralUnknownCommand    = ":warning: **不明なコマンドです。**"
	messageEphemeralVoiceLookupFailed = ":warning: **ボイスチャンネルの参加状態の確認に失敗しました。**"
	messageEphemeralJoinVCFirst       = ":warning: **ボイスチャンネルに参加してから実行してください。**"
	messageEphemeralAlreadyJoined     = ":warning: **既にこのボイスチャンネルに参加しています。**"
	messageEphemeralJoinedElsewhere   = ":warning: **既に別のボイスチャンネルで再生中です。**"
	messageEphemeralJoinFailed        = ":warning: **ボイスチャンネルへの参加に失敗しました。**"
	messageEphemeralNotJoined         = ":warning: **現在ボイスチャンネルに参加していません。**"
	messageEphemeralSourceRequired    = ":warning: **再生する音源を指定してください。**"
	messageEphemeralSourceUnavailable = ":warning: **音源を開けませんでした。ファイル名や URL を確認してください。**"
	messageEphemeralTooManyTracks     = ":warning: **同時に再生できるトラック数の上限に達しています。**"
	messageEphemeralPlayFailed        = ":warning: **再生の開始に失敗しました。**"
	messageEphemeralTrackNotFound     = ":warning: **該当するトラックが見つかりません。** /tracks で ID を確認してください。"
	messageEphemeralTrackAmbiguous    = ":warning: **複数のトラックに一致しました。** ID をもう少し長く指定してください。"

	messageJoinedFormat      = ":loud_sound: <#%s> **に参加しました。**"
	messageJoinedHint        = "-# /play コマンドで音源を追加できます。"
	messageLeftFormat        = ":wave: <#%s> **から退出しました。**"
	messagePlayStartedFormat = ":arrow_forward: **再生を開始しました。** `%s` %s"
	messageStoppedFormat     = ":stop_button: `%s` **を停止しました。**"
	messageVolumeFormat      = ":level_slider: `%s` **の音量を %d%% にしました。**"
	messagePausedFormat      = ":pause_button: `%s` **を一時停止しました。**"
	messageResumedFormat     = ":arrow_forward: `%s` **を再開しました。**"
	messageLoopOnFormat      = ":repeat: `%s` **のループ再生を有効にしました。**"
	messageLoopOffFormat     = ":arrow_right: `%s` **のループ再生を無効にしました。**"
	messageNoTracks          = ":mute: **再生中のトラックはありません。**"
	messageTracksTitleFormat = ":notes: **再生中のトラック (%d)**"

	messageSessionEndedFormat = ":wave: **再生を終了しました。** %s"
)

// shortTrackID is the form shown to users. Commands accept any unique prefix.
func shortTrackID(id audio.TrackID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func volumePercent(v float64) int {
	return int(v*100 + 0.5)
}

func joinedMessage(channelID string) string {
	return fmt.Sprintf(messageJoinedFormat, channelID) + "\n" + messageJoinedHint
}

func leftMessage(channelID string) string {
	return fmt.Sprintf(messageLeftFormat, channelID)
}

func playStartedMessage(t *audio.Track) string {
	return fmt.Sprintf(messagePlayStartedFormat, shortTrackID(t.ID()), trackSummary(t))
}

func trackSummary(t *audio.Track) string {
	parts := []string{t.Source().String(), fmt.Sprintf("音量 %d%%", volumePercent(t.Volume()))}
	if t.Loop() {
		parts = append(parts, "ループ")
	}
	if t.Paused() {
		parts = append(parts, "一時停止中")
	}
	return strings.Join(parts, " / ")
}

func tracksMessage(tracks []*audio.Track) string {
	if len(tracks) == 0 {
		return messageNoTracks
	}
	lines := make([]string, 0, len(tracks)+1)
	lines = append(lines, fmt.Sprintf(messageTracksTitleFormat, len(tracks)))
	for _, t := range tracks {
		lines = append(lines, fmt.Sprintf("`%s` %s", shortTrackID(t.ID()), trackSummary(t)))
	}
	return strings.Join(lines, "\n")
}

func sessionEndedMessage(reason string) string {
	return fmt.Sprintf(messageSessionEndedFormat, stopReasonDetail(reason))
}

func stopReasonDetail(reason string) string {
	switch reason {
	case stopReasonManualSlash:
		return "参加者に退出コマンドを実行されました。"
	case stopReasonParticipantsLeft:
		return "ボイスチャットに誰もいなくなりました。"
	case stopReasonBotRemoved:
		return "ボットが退出させられました。"
	case stopReasonServerClosed:
		return "再生サーバーが閉じられました。"
	default:
		return "不明なエラーが発生しました。"
	}
}
