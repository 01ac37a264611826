package alert

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	ch := NewMockChannel("test")
	mgr := NewManager([]Channel{ch}, 5*time.Minute)

	if mgr == nil {
		t.Fatal("manager should not be nil")
	}

	channels := mgr.GetChannels()
	if len(channels) != 1 {
		t.Errorf("expected 1 channel, got %d", len(channels))
	}
	if channels[0] != "test" {
		t.Errorf("channel name = %s, want test", channels[0])
	}
}

func TestSendTransition(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 5*time.Minute)

	if err := mgr.SendTransition("BTCUSDT", "1h", "RANGING", "TRENDING_UP", 64000); err != nil {
		t.Fatalf("SendTransition failed: %v", err)
	}

	if mock.Count() != 1 {
		t.Fatalf("expected 1 alert, got %d", mock.Count())
	}

	a := mock.GetAlerts()[0]
	if a.Level != "WARNING" {
		t.Errorf("level = %s, want WARNING (transition into a trend)", a.Level)
	}
	if a.Fields["from"] != "RANGING" || a.Fields["to"] != "TRENDING_UP" {
		t.Errorf("unexpected fields: %+v", a.Fields)
	}
	if a.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestSendTransitionBackToRangingIsInfo(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, 5*time.Minute)

	if err := mgr.SendTransition("BTCUSDT", "1h", "TRENDING_UP", "RANGING", 64000); err != nil {
		t.Fatalf("SendTransition failed: %v", err)
	}
	if mock.GetAlerts()[0].Level != "INFO" {
		t.Errorf("level = %s, want INFO", mock.GetAlerts()[0].Level)
	}
}

func TestThrottle(t *testing.T) {
	mock := NewMockChannel("mock")
	mgr := NewManager([]Channel{mock}, time.Hour)

	for i := 0; i < 3; i++ {
		if err := mgr.SendSystem("INFO", "repeated message"); err != nil {
			t.Fatalf("SendSystem failed: %v", err)
		}
	}

	if mock.Count() != 1 {
		t.Errorf("expected 1 alert after throttling, got %d", mock.Count())
	}

	mgr.ResetThrottle()
	if err := mgr.SendSystem("INFO", "repeated message"); err != nil {
		t.Fatalf("SendSystem failed: %v", err)
	}
	if mock.Count() != 2 {
		t.Errorf("expected 2 alerts after reset, got %d", mock.Count())
	}
}

func TestAllChannelsFailing(t *testing.T) {
	failing := &MockChannel{name: "broken", shouldErr: true}
	mgr := NewManager([]Channel{failing}, time.Minute)

	if err := mgr.SendSystem("ERROR", "something"); err == nil {
		t.Error("expected error when every channel fails")
	}
}

func TestWebhookChannel(t *testing.T) {
	var received map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("webhook", srv.URL)
	err := ch.Send(Alert{
		Level:     "WARNING",
		Message:   "BTCUSDT 1h regime changed: RANGING -> TRENDING_UP",
		Timestamp: time.Now(),
		Fields:    map[string]interface{}{"symbol": "BTCUSDT"},
	})
	if err != nil {
		t.Fatalf("webhook send failed: %v", err)
	}

	if received["level"] != "WARNING" {
		t.Errorf("webhook payload level = %v, want WARNING", received["level"])
	}
}

func TestWebhookChannelServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewWebhookChannel("webhook", srv.URL)
	if err := ch.Send(Alert{Level: "INFO", Message: "x", Timestamp: time.Now()}); err == nil {
		t.Error("expected error on 5xx response")
	}
}
