// Package ids mints project prefixes and ticket IDs, ported from the
// original's workers/ticket_id.rs.
package ids

import (
	"context"
	"fmt"
	"strings"
)

// DerivePrefix builds a project prefix from a hyphenated project name:
// the uppercased first letter of each word, truncated to 3 characters.
//
//	"todo-vue-rust"       -> "TVR"
//	"vibe-ensemble-mcp"   -> "VEM"
//	"my-awesome-project"  -> "MAP"
//	"single"              -> "S"
//	"a-b-c-d"             -> "ABC"
func DerivePrefix(projectName string) string {
	words := strings.Split(projectName, "-")
	var b strings.Builder
	for _, w := range words {
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		if b.Len() >= 3 {
			break
		}
	}
	s := b.String()
	if len(s) > 3 {
		s = s[:3]
	}
	return s
}

// stageSubsystems is checked in order; the first substring match wins.
var stageSubsystems = []struct {
	needles []string
	code    string
}{
	{[]string{"frontend", "ui", "client"}, "FE"},
	{[]string{"backend", "api", "server"}, "BE"},
	{[]string{"database", "db", "schema"}, "DB"},
	{[]string{"test"}, "TEST"},
	{[]string{"deploy", "ops", "infra"}, "OPS"},
	{[]string{"doc"}, "DOC"},
	{[]string{"design"}, "DESIGN"},
}

// InferSubsystem scans stage names for the first recognized keyword,
// falling back to CORE. Stage names are matched case-insensitively as
// substrings, in the fixed priority order above.
func InferSubsystem(stages []string) string {
	for _, stage := range stages {
		lower := strings.ToLower(stage)
		for _, group := range stageSubsystems {
			for _, needle := range group.needles {
				if strings.Contains(lower, needle) {
					return group.code
				}
			}
		}
	}
	return "CORE"
}

// SuffixSource supplies the current maximum numeric suffix already
// used by a project+subsystem pair; db.Store.MaxTicketSuffix
// implements it.
type SuffixSource interface {
	MaxTicketSuffix(ctx context.Context, projectID, subsystem string) (int, error)
}

// Generate mints the next ticket ID for a project given its execution
// plan's stages, formatted PREFIX-SUBSYSTEM-NNN with a minimum 3-digit
// zero-padded counter.
func Generate(ctx context.Context, src SuffixSource, projectID, prefix string, stages []string) (string, error) {
	subsystem := InferSubsystem(stages)
	max, err := src.MaxTicketSuffix(ctx, projectID, subsystem)
	if err != nil {
		return "", fmt.Errorf("resolve ticket counter: %w", err)
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, subsystem, max+1), nil
}
