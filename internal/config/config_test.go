package config

import "testing"

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set.
	v, err := envInt("TEST_INT_MISSING", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for non-integer value, got nil")
	}
	if got := err.Error(); got != `TEST_INT_BAD="abc" is not a valid integer` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvBoolValid(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Fatal("expected true")
	}
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	if err == nil {
		t.Fatal("expected error for non-boolean value, got nil")
	}
	if got := err.Error(); got != `TEST_BOOL_BAD="maybe" is not a valid boolean` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestLoadFailsOnInvalidMaxDeepFields(t *testing.T) {
	t.Setenv("CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT", "abc")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with invalid CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT")
	}
	if got := err.Error(); !contains(got, "CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT") || !contains(got, "abc") {
		t.Fatalf("error should mention the var name and value 'abc', got: %s", got)
	}
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT", "abc")
	t.Setenv("CURATION_TRACE_RING_SIZE", "xyz")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with multiple invalid vars")
	}
	got := err.Error()
	if !contains(got, "CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT") {
		t.Fatalf("error should mention CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT, got: %s", got)
	}
	if !contains(got, "CURATION_TRACE_RING_SIZE") {
		t.Fatalf("error should mention CURATION_TRACE_RING_SIZE, got: %s", got)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.CortexEnabled {
		t.Fatal("expected cortex to be disabled by default")
	}
	if cfg.CortexMaxDeepFieldsPerProduct != 3 {
		t.Fatalf("expected default CortexMaxDeepFieldsPerProduct 3, got %d", cfg.CortexMaxDeepFieldsPerProduct)
	}
	if cfg.TraceRingSize != 20 {
		t.Fatalf("expected default TraceRingSize 20, got %d", cfg.TraceRingSize)
	}
	if cfg.SpecDBDir == "" || cfg.OutputRoot == "" || cfg.HelperRoot == "" {
		t.Fatal("expected non-empty default storage paths")
	}
}

func TestLoad_AllEnvVarsHonored(t *testing.T) {
	t.Setenv("CURATION_SPEC_DB_DIR", "/tmp/spec-db")
	t.Setenv("CURATION_OUTPUT_ROOT", "/tmp/output")
	t.Setenv("CURATION_HELPER_ROOT", "/tmp/helpers")
	t.Setenv("CORTEX_ENABLED", "true")
	t.Setenv("CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT", "5")
	t.Setenv("CURATION_TRACE_RING_SIZE", "50")
	t.Setenv("CURATION_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}
	if cfg.SpecDBDir != "/tmp/spec-db" {
		t.Fatalf("expected SpecDBDir %q, got %q", "/tmp/spec-db", cfg.SpecDBDir)
	}
	if cfg.OutputRoot != "/tmp/output" {
		t.Fatalf("expected OutputRoot %q, got %q", "/tmp/output", cfg.OutputRoot)
	}
	if cfg.HelperRoot != "/tmp/helpers" {
		t.Fatalf("expected HelperRoot %q, got %q", "/tmp/helpers", cfg.HelperRoot)
	}
	if !cfg.CortexEnabled {
		t.Fatal("expected CortexEnabled true")
	}
	if cfg.CortexMaxDeepFieldsPerProduct != 5 {
		t.Fatalf("expected CortexMaxDeepFieldsPerProduct 5, got %d", cfg.CortexMaxDeepFieldsPerProduct)
	}
	if cfg.TraceRingSize != 50 {
		t.Fatalf("expected TraceRingSize 50, got %d", cfg.TraceRingSize)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected LogLevel %q, got %q", "debug", cfg.LogLevel)
	}
}

func TestLoad_NegativeMaxDeepFieldsFailsValidation(t *testing.T) {
	t.Setenv("CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT", "-1")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with a negative CORTEX_MAX_DEEP_FIELDS_PER_PRODUCT")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchSubstring(s, substr)
}

func searchSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
