package worker

import (
	"strings"
	"testing"
)

func TestValidateTicketID(t *testing.T) {
	if err := ValidateTicketID("ABC-BE-001"); err != nil {
		t.Errorf("expected valid ticket id, got %v", err)
	}
	if err := ValidateTicketID(""); err == nil {
		t.Error("expected error for empty ticket id")
	}
	if err := ValidateTicketID(strings.Repeat("a", 129)); err == nil {
		t.Error("expected error for over-length ticket id")
	}
	if err := ValidateTicketID("ABC/BE"); err == nil {
		t.Error("expected error for disallowed character")
	}
}

func TestValidateWorkerID(t *testing.T) {
	if err := ValidateWorkerID("proj1:backend-dev:ABC-BE-001"); err != nil {
		t.Errorf("expected valid worker id, got %v", err)
	}
	if err := ValidateWorkerID(strings.Repeat("a", 257)); err == nil {
		t.Error("expected error for over-length worker id")
	}
}

func TestValidatePromptContent(t *testing.T) {
	if _, err := ValidatePromptContent(""); err == nil {
		t.Error("expected error for empty prompt")
	}
	if _, err := ValidatePromptContent("hello\x00world"); err == nil {
		t.Error("expected error for NUL byte")
	}
	warnings, err := ValidatePromptContent("run $(rm -rf /) please")
	if err != nil {
		t.Fatalf("expected warn-not-reject, got error %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("expected one warning, got %d", len(warnings))
	}
}
