package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDevelopmentDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("Port = %q, want %q", cfg.Port, defaultPort)
	}
	if cfg.Address() != ":"+defaultPort {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.TokenTTL != 30*24*time.Hour {
		t.Errorf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.PendingOrderTTL != defaultPendingOrderTTL {
		t.Errorf("PendingOrderTTL = %v", cfg.PendingOrderTTL)
	}
	if !cfg.IsDev() || cfg.IsProduction() {
		t.Errorf("expected development environment")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/coins")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MOCK_PAYMENTS", "true")
	t.Setenv("PENDING_ORDER_TTL", "15m")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.MockPayments {
		t.Errorf("MockPayments should be enabled")
	}
	if cfg.PendingOrderTTL != 15*time.Minute {
		t.Errorf("PendingOrderTTL = %v", cfg.PendingOrderTTL)
	}
	if cfg.ShutdownPeriod != 3*time.Second {
		t.Errorf("ShutdownPeriod = %v", cfg.ShutdownPeriod)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing jwt secret",
			env:     map[string]string{"APP_ENV": "development", "JWT_SECRET": ""},
			wantErr: "JWT_SECRET",
		},
		{
			name: "mock payments in production",
			env: map[string]string{
				"APP_ENV": "production", "JWT_SECRET": "s", "MOCK_PAYMENTS": "true",
				"DATABASE_URL": "postgres://db", "REDIS_URL": "redis://cache",
			},
			wantErr: "MOCK_PAYMENTS",
		},
		{
			name: "production without gateway keys",
			env: map[string]string{
				"APP_ENV": "production", "JWT_SECRET": "s", "MOCK_PAYMENTS": "false",
				"DATABASE_URL": "postgres://db", "REDIS_URL": "redis://cache", "RAZORPAY_KEY_ID": "",
			},
			wantErr: "RAZORPAY_KEY_ID",
		},
		{
			name:    "bad duration",
			env:     map[string]string{"APP_ENV": "development", "JWT_SECRET": "s", "SWEEP_INTERVAL": "soon"},
			wantErr: "SWEEP_INTERVAL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
