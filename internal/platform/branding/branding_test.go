package branding

import "testing"

func TestAppName(t *testing.T) {
	if AppName == "" {
		t.Fatal("expected AppName to be non-empty")
	}
	if AppName != "SSI Verifier" {
		t.Fatalf("AppName = %q, want %q", AppName, "SSI Verifier")
	}
}

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Fatal("expected Version to be non-empty")
	}
}
