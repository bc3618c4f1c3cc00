package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foxseedlab/otomaze/internal/webhook"
)

func testReport() webhook.PlaybackReport {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return webhook.PlaybackReport{
		SessionID:       "session-1",
		GuildID:         "guild-1",
		ChannelID:       "vc-1",
		StartedAt:       started,
		EndedAt:         started.Add(90 * time.Second),
		DurationSeconds: 90,
		StopReason:      "leave",
		Tracks: []webhook.PlaybackReportTrack{
			{TrackID: "t-1", Source: "rain.ogg", RequestedBy: "user-1", Volume: 0.4, Loop: true, AddedAt: started},
		},
	}
}

func TestSendPlaybackReport_EmptyWebhookURL(t *testing.T) {
	sender := NewHTTPSender("")
	if err := sender.SendPlaybackReport(context.Background(), testReport()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestSendPlaybackReport_Success(t *testing.T) {
	var got webhook.PlaybackReport

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendPlaybackReport(context.Background(), testReport()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.SessionID != "session-1" || got.DurationSeconds != 90 {
		t.Fatalf("unexpected report: %+v", got)
	}
	if len(got.Tracks) != 1 || got.Tracks[0].Source != "rain.ogg" || !got.Tracks[0].Loop {
		t.Fatalf("unexpected tracks: %+v", got.Tracks)
	}
	if got.Tracks[0].EndedAt != nil {
		t.Fatalf("expected open track to have no ended_at, got %v", got.Tracks[0].EndedAt)
	}
}

func TestSendPlaybackReport_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewHTTPSender(server.URL)
	if err := sender.SendPlaybackReport(context.Background(), testReport()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
