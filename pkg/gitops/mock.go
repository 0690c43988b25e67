package gitops

import (
	"context"
	"strings"
	"sync"
)

// RecordedCommand captures one git invocation made through a
// RecordingGitRunner.
type RecordedCommand struct {
	Dir  string
	Env  []string
	Args []string
}

// RecordingGitRunner is a GitRunner for tests. Responses are matched by
// the first argument (the git subcommand); unmatched commands succeed
// with empty output.
type RecordingGitRunner struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	// Outputs maps a subcommand (e.g. "status") to its stdout.
	Outputs map[string]string
	// Errors maps a subcommand to a forced error.
	Errors map[string]error
}

// NewRecordingGitRunner returns an empty recording runner.
func NewRecordingGitRunner() *RecordingGitRunner {
	return &RecordingGitRunner{
		Outputs: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

func (r *RecordingGitRunner) Run(_ context.Context, dir string, env []string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Commands = append(r.Commands, RecordedCommand{Dir: dir, Env: env, Args: args})

	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	if err, ok := r.Errors[sub]; ok {
		return nil, err
	}
	return []byte(r.Outputs[sub]), nil
}

// CommandLines renders recorded commands as "git ..." strings for
// assertion convenience.
func (r *RecordingGitRunner) CommandLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	lines := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		lines[i] = "git " + strings.Join(c.Args, " ")
	}
	return lines
}
