package main

import (
	"testing"
	"time"

	"github.com/gogpu/timewarp"
)

func TestExampleConfig(t *testing.T) {
	cfg, err := timewarp.LoadConfig("atwdemo.toml")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RefreshRate != 90 {
		t.Errorf("RefreshRate = %g, want 90", cfg.RefreshRate)
	}
	if cfg.FenceTimeout != 50*time.Millisecond {
		t.Errorf("FenceTimeout = %v, want 50ms", cfg.FenceTimeout)
	}
	if cfg.RenderMode != timewarp.RenderModeAuto {
		t.Errorf("RenderMode = %v, want auto", cfg.RenderMode)
	}
	info := cfg.HMDInfo()
	if err := info.Validate(); err != nil {
		t.Errorf("HMDInfo invalid: %v", err)
	}
	if len(info.Knots) != 11 {
		t.Errorf("knots = %d, want 11", len(info.Knots))
	}
}
