package config

import "testing"

func TestSchedulerEnabledOnlyInProduction(t *testing.T) {
	cfg := &Config{Env: "development", RedisURL: "redis://localhost:6379"}
	if cfg.IsSchedulerEnabled() {
		t.Fatal("scheduler must stay off outside production")
	}

	cfg.Env = "production"
	if !cfg.IsSchedulerEnabled() {
		t.Fatal("production with redis configured must enable the scheduler")
	}

	cfg.RedisURL = ""
	if cfg.IsSchedulerEnabled() {
		t.Fatal("production without redis has nothing to run the scheduler on")
	}
}
