package source

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Cursor", "cursor"},
		{"  CLAUDE-CODE  ", "claude-code"},
		{"codex", "codex"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(""); err == nil {
		t.Error("expected error for empty source")
	}
	long := make([]byte, MaxLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if err := Validate(string(long)); err == nil {
		t.Error("expected error for over-length source")
	}
	if err := Validate("cursor"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateModel(t *testing.T) {
	if err := ValidateModel(""); err == nil {
		t.Error("expected error for empty model")
	}
	if err := ValidateModel("claude-3-5-sonnet-20241022"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
