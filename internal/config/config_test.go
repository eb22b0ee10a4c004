package config_test

import (
	"strings"
	"testing"

	"trustops/internal/config"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default("org-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.MaxLikelihood() != 5 || cfg.MaxImpact() != 5 {
		t.Fatalf("expected 5x5 matrix, got %dx%d", cfg.MaxLikelihood(), cfg.MaxImpact())
	}
}

func TestBandBoundaries(t *testing.T) {
	cfg := config.Default("org-1")
	cases := []struct {
		score int
		want  string
	}{
		{1, "low"}, {4, "low"},
		{5, "medium"}, {9, "medium"},
		{10, "high"}, {16, "high"},
		{17, "critical"}, {25, "critical"},
	}
	for _, c := range cases {
		if got := cfg.Band(c.score); got != c.want {
			t.Fatalf("band(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestFromYAMLRejectsBadScales(t *testing.T) {
	base := config.GenerateDefault("org-1")

	dupScore := strings.Replace(base, "{ score: 2, name: Unlikely", "{ score: 1, name: Unlikely", 1)
	if _, err := config.FromYAML([]byte(dupScore)); err == nil {
		t.Fatalf("expected duplicate score rejection")
	}

	badBands := strings.Replace(base, "critical: 17", "critical: 8", 1)
	if _, err := config.FromYAML([]byte(badBands)); err == nil {
		t.Fatalf("expected band ordering rejection")
	}

	if _, err := config.FromYAML([]byte("organization: {}")); err == nil {
		t.Fatalf("expected missing org id rejection")
	}

	if _, err := config.FromYAML([]byte("\tnot yaml")); err == nil {
		t.Fatalf("expected yaml parse error")
	}
}
