package logger

import "testing"

func TestParseLevel(t *testing.T) {
	cases := map[string]bool{
		"debug":    true,
		"info":     true,
		"":         true,
		"warn":     true,
		"warning":  true,
		"error":    true,
		"disabled": true,
		"verbose":  false,
	}
	for input, ok := range cases {
		_, err := parseLevel(input)
		if ok && err != nil {
			t.Errorf("parseLevel(%q) unexpected error: %v", input, err)
		}
		if !ok && err == nil {
			t.Errorf("parseLevel(%q) expected error", input)
		}
	}
}

func TestNewMinimal(t *testing.T) {
	log, err := New(Options{Level: "debug", Minimal: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// Minimal mode must not panic on the suppressed levels.
	log.Debug("hidden")
	log.Info("hidden")
	log.WithField("k", "v").Warn("shown")
}

func TestNopLoggerChaining(t *testing.T) {
	log := NewNop()
	log.WithFields(map[string]interface{}{"a": 1}).
		WithError(nil).
		InfoWithFields("msg", map[string]interface{}{"b": true})
}
