package instance

import "testing"

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv("SMES_INSTANCE_ID", "api-7")
	if got := GetID(); got != "api-7" {
		t.Fatalf("expected api-7, got %s", got)
	}
}

func TestGetIDFallsBack(t *testing.T) {
	t.Setenv("SMES_INSTANCE_ID", "")
	if got := GetID(); got == "" {
		t.Fatal("expected non-empty id")
	}
}
