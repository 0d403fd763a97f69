package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sweep.NotifyInterval != 30*time.Second {
		t.Errorf("NotifyInterval = %v", cfg.Sweep.NotifyInterval)
	}
	if cfg.Sweep.ActiveWindow != time.Minute {
		t.Errorf("ActiveWindow = %v, want 2x interval", cfg.Sweep.ActiveWindow)
	}
	if cfg.Sweep.ReapInterval != time.Hour || cfg.Sweep.InactivityThreshold != 12*time.Hour {
		t.Errorf("reaper settings = %+v", cfg.Sweep)
	}
	if cfg.Broadcast.Delay != 100*time.Millisecond || cfg.Broadcast.Workers != 1 {
		t.Errorf("broadcast settings = %+v", cfg.Broadcast)
	}
	if cfg.RateLimit.Requests != 5 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.Relay.Transport != TransportHTTP {
		t.Errorf("Transport = %q", cfg.Relay.Transport)
	}
	if cfg.Timeout.Generate != 20*time.Second {
		t.Errorf("Generate timeout = %v", cfg.Timeout.Generate)
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("SECRET_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without SECRET_KEY")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SECRET_KEY", "x")
	t.Setenv("NOTIFY_INTERVAL", "10")
	t.Setenv("ACTIVE_WINDOW", "45s")
	t.Setenv("AUTHORIZED_OPERATORS", "111, 222,bad")
	t.Setenv("RELAY_TRANSPORT", "GRPC")
	t.Setenv("RESPONDER_URL", "http://responder:8000/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sweep.NotifyInterval != 10*time.Second || cfg.Sweep.ActiveWindow != 45*time.Second {
		t.Errorf("sweep = %+v", cfg.Sweep)
	}
	if got := cfg.Console.SeedOperators; len(got) != 2 || got[0] != 111 || got[1] != 222 {
		t.Errorf("SeedOperators = %v", got)
	}
	if cfg.Relay.Transport != TransportGRPC {
		t.Errorf("Transport = %q", cfg.Relay.Transport)
	}
	if cfg.Relay.URL != "http://responder:8000" {
		t.Errorf("URL = %q", cfg.Relay.URL)
	}
}

func TestValidateRejectsNarrowWindow(t *testing.T) {
	t.Setenv("SECRET_KEY", "x")
	t.Setenv("NOTIFY_INTERVAL", "30s")
	t.Setenv("ACTIVE_WINDOW", "10s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for window narrower than the sweep interval")
	}
}

func TestValidateProcessSettings(t *testing.T) {
	t.Setenv("SECRET_KEY", "x")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ValidateResponder(); err == nil {
		t.Error("responder without token should be invalid")
	}
	cfg.Responder.TelegramToken = "t"
	if err := cfg.ValidateResponder(); err != nil {
		t.Errorf("ValidateResponder: %v", err)
	}
	if err := cfg.ValidateConsole(); err == nil {
		t.Error("console without admin token should be invalid")
	}
	cfg.Console.AdminToken = "a"
	if err := cfg.ValidateConsole(); err != nil {
		t.Errorf("ValidateConsole: %v", err)
	}
}
