package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestFromViperDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" || cfg.Store != StorePostgres {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.WeightsCacheTTL != 5*time.Minute {
		t.Fatalf("expected 5m cache ttl, got %s", cfg.WeightsCacheTTL)
	}
	if cfg.AITimeout != 8*time.Second {
		t.Fatalf("expected 8s ai timeout, got %s", cfg.AITimeout)
	}
	if cfg.WeightsHistoryLimit != 200 || cfg.WeightsMinRecords != 20 || cfg.AnomalyWindow != 200 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if cfg.NearestOverride {
		t.Fatalf("nearest override should default off")
	}
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("STORE", " Memory ")
	v.Set("NEAREST_OVERRIDE", true)
	v.Set("WEIGHTS_CACHE_TTL", "30s")

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("expected memory store, got %q", cfg.Store)
	}
	if !cfg.NearestOverride || cfg.WeightsCacheTTL != 30*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}
