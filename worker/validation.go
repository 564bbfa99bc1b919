// Package worker implements the worker runtime: input validation,
// permission-policy resolution, prompt rendering, and subprocess
// spawning, ported from the original's workers/validation.rs,
// permissions.rs, and the teacher's agents/spawner.go.
package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxTicketIDLen  = 128
	maxWorkerIDLen  = 256
	maxPromptBytes  = 1 << 20 // 1 MiB
)

// ValidateProjectPath checks that a project path exists, is absolute
// once canonicalized, and is a directory.
func ValidateProjectPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("project path %q does not exist: %w", path, err)
	}
	canon, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve project path %q: %w", path, err)
	}
	canon, err = filepath.EvalSymlinks(canon)
	if err != nil {
		return "", fmt.Errorf("canonicalize project path %q: %w", path, err)
	}
	if !filepath.IsAbs(canon) {
		return "", fmt.Errorf("project path %q did not canonicalize to an absolute path", path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("project path %q is not a directory", path)
	}
	return canon, nil
}

// ValidateTicketID enforces the ticket_id grammar: non-empty, at most
// 128 characters, alphanumeric plus '-' and '_'.
func ValidateTicketID(id string) error {
	if id == "" {
		return fmt.Errorf("ticket id must not be empty")
	}
	if len(id) > maxTicketIDLen {
		return fmt.Errorf("ticket id exceeds %d characters", maxTicketIDLen)
	}
	return validateCharset(id, "ticket id", "-_")
}

// ValidateWorkerID enforces the worker_id grammar: non-empty, at most
// 256 characters, alphanumeric plus '-', '_', and ':'.
func ValidateWorkerID(id string) error {
	if id == "" {
		return fmt.Errorf("worker id must not be empty")
	}
	if len(id) > maxWorkerIDLen {
		return fmt.Errorf("worker id exceeds %d characters", maxWorkerIDLen)
	}
	return validateCharset(id, "worker id", "-_:")
}

func validateCharset(s, label, extra string) error {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(extra, r):
		default:
			return fmt.Errorf("%s contains invalid character %q", label, r)
		}
	}
	return nil
}

// PromptWarning is returned (never as an error) when prompt content
// contains a shell-substitution-like substring worth flagging.
type PromptWarning struct {
	Pattern string
}

// ValidatePromptContent rejects empty, oversized, or NUL-containing
// prompts. Shell-substitution-like substrings ($( ` ${ ) are reported
// as warnings, not rejected — the original only warns here because
// prompts legitimately discuss shell syntax.
func ValidatePromptContent(content string) ([]PromptWarning, error) {
	if content == "" {
		return nil, fmt.Errorf("prompt content must not be empty")
	}
	if len(content) > maxPromptBytes {
		return nil, fmt.Errorf("prompt content exceeds %d bytes", maxPromptBytes)
	}
	if strings.ContainsRune(content, 0) {
		return nil, fmt.Errorf("prompt content contains a NUL byte")
	}

	var warnings []PromptWarning
	for _, pattern := range []string{"$(", "`", "${"} {
		if strings.Contains(content, pattern) {
			warnings = append(warnings, PromptWarning{Pattern: pattern})
		}
	}
	return warnings, nil
}
