package ids

import (
	"context"
	"testing"
)

func TestDerivePrefix(t *testing.T) {
	cases := map[string]string{
		"todo-vue-rust":      "TVR",
		"vibe-ensemble-mcp":  "VEM",
		"my-awesome-project": "MAP",
		"single":             "S",
		"a-b-c-d":            "ABC",
	}
	for name, want := range cases {
		if got := DerivePrefix(name); got != want {
			t.Errorf("DerivePrefix(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestInferSubsystem(t *testing.T) {
	cases := []struct {
		stages []string
		want   string
	}{
		{[]string{"frontend-dev"}, "FE"},
		{[]string{"api-impl"}, "BE"},
		{[]string{"db-migration"}, "DB"},
		{[]string{"integration-test"}, "TEST"},
		{[]string{"deploy-staging"}, "OPS"},
		{[]string{"documentation"}, "DOC"},
		{[]string{"ux-design"}, "DESIGN"},
		{[]string{"planning"}, "CORE"},
		{[]string{"planning", "frontend-dev"}, "FE"},
	}
	for _, c := range cases {
		if got := InferSubsystem(c.stages); got != c.want {
			t.Errorf("InferSubsystem(%v) = %q, want %q", c.stages, got, c.want)
		}
	}
}

type fakeSuffixSource struct {
	max int
	err error
}

func (f fakeSuffixSource) MaxTicketSuffix(ctx context.Context, projectID, subsystem string) (int, error) {
	return f.max, f.err
}

func TestGenerate(t *testing.T) {
	got, err := Generate(context.Background(), fakeSuffixSource{max: 6}, "proj1", "ABC", []string{"backend-dev"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := "ABC-BE-007"; got != want {
		t.Errorf("Generate() = %q, want %q", got, want)
	}
}

func TestGenerateFirstTicket(t *testing.T) {
	got, err := Generate(context.Background(), fakeSuffixSource{max: 0}, "proj1", "XYZ", []string{"planning"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if want := "XYZ-CORE-001"; got != want {
		t.Errorf("Generate() = %q, want %q", got, want)
	}
}
