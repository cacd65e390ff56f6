package holders

import (
	"context"
	"strings"

	"github.com/curtinfy/clearholders/pkg/runnerexec"
)

// fakeRunner is the injection point tests substitute for the real
// runnerexec.Exec: it records every invocation and returns a scripted
// result keyed by the joined command line, per spec.md §9.
type fakeRunner struct {
	calls   []string
	scripts map[string]runnerexec.Result
	errs    map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{scripts: make(map[string]runnerexec.Result), errs: make(map[string]error)}
}

func (f *fakeRunner) script(rc int, stdout, stderr string, name string, args ...string) {
	f.scripts[key(name, args...)] = runnerexec.Result{RC: rc, Stdout: stdout, Stderr: stderr}
}

func key(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (runnerexec.Result, error) {
	k := key(name, args...)
	f.calls = append(f.calls, k)
	if err, ok := f.errs[k]; ok {
		return runnerexec.Result{}, err
	}
	if res, ok := f.scripts[k]; ok {
		return res, nil
	}
	return runnerexec.Result{RC: 0}, nil
}
