package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SpawnRequest carries everything needed to render a prompt and run a
// worker subprocess for one ticket+stage claim.
type SpawnRequest struct {
	ProjectID     string
	ProjectPath   string
	Ticket        string
	Stage         string
	WorkerID      string
	Template      string // the worker type's raw prompt template
	TemplateData  PromptData
	Timeout       time.Duration
	Permissions   ClaudePermissions
	Verbose       bool
}

// PromptData is the template context passed to a worker type's
// prompt template, mirroring the teacher's agents.PromptData shape
// generalized beyond the kanban domain.
type PromptData struct {
	ProjectID   string
	ProjectPath string
	TicketID    string
	Stage       string
	WorkerID    string
	Title       string
	Description string
	Comments    []string
}

// Result is a worker subprocess's raw outcome: the captured stdout
// (expected to contain a trailing completion JSON object), its exit
// code, and how long it ran.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Spawner runs worker subprocesses. claudePath is resolved once at
// construction via exec.LookPath, matching the teacher's Spawner.
type Spawner struct {
	claudePath string
	verbose    bool
	out        io.Writer
}

// NewSpawner resolves the worker binary on PATH.
func NewSpawner(binary string, verbose bool) (*Spawner, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("resolve worker binary %q: %w", binary, err)
	}
	return &Spawner{claudePath: path, verbose: verbose}, nil
}

var templateFuncs = template.FuncMap{
	"title": func(s string) string { return cases.Title(language.English).String(s) },
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"join":  strings.Join,
}

// RenderPrompt executes req.Template as a text/template against
// req.TemplateData, the way the teacher renders prompts/*.md files.
func RenderPrompt(req SpawnRequest) (string, error) {
	tmpl, err := template.New("prompt").Funcs(templateFuncs).Parse(req.Template)
	if err != nil {
		return "", fmt.Errorf("parse prompt template for stage %q: %w", req.Stage, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req.TemplateData); err != nil {
		return "", fmt.Errorf("render prompt template for stage %q: %w", req.Stage, err)
	}
	return buf.String(), nil
}

// Spawn renders the prompt and runs the worker binary with it,
// capturing stdout for completion-record extraction.
func (sp *Spawner) Spawn(ctx context.Context, req SpawnRequest) (*Result, error) {
	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, err
	}
	if _, err := ValidatePromptContent(prompt); err != nil {
		return nil, fmt.Errorf("rendered prompt failed validation: %w", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"--print", "--dangerously-skip-permissions"}
	cmd := exec.CommandContext(runCtx, sp.claudePath, args...)
	cmd.Dir = req.ProjectPath
	cmd.Stdin = strings.NewReader(prompt)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	if req.Verbose || sp.verbose {
		cmd.Stdout = io.MultiWriter(&stdout, sp.verboseSink())
	} else {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("run worker for %s/%s: %w", req.Ticket, req.Stage, runErr)
		}
	}

	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}

// verboseSink is swapped for os.Stdout by callers that want a live
// tee of worker output; the zero value discards, keeping unit tests
// silent.
func (sp *Spawner) verboseSink() io.Writer {
	if sp.out != nil {
		return sp.out
	}
	return io.Discard
}

// SetVerboseSink directs verbose-mode stdout teeing to w (e.g. os.Stdout).
func (sp *Spawner) SetVerboseSink(w io.Writer) { sp.out = w }

// ExtractCompletionJSON returns the substring of stdout between the
// first '{' and the last '}', the same outermost-braces heuristic the
// original's parse_output uses. It does not validate JSON well-
// formedness — callers decode it and report a parse error themselves.
func ExtractCompletionJSON(stdout string) (string, error) {
	start := strings.IndexByte(stdout, '{')
	end := strings.LastIndexByte(stdout, '}')
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in worker output")
	}
	return stdout[start : end+1], nil
}
