package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/policy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands and fails the first one whose argv contains failOn
type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	failOn string
}

func (r *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.calls = append(r.calls, line)
	if r.failOn != "" && strings.Contains(line, r.failOn) {
		return "boom", errors.New(line + ": exit status 1")
	}
	return "", nil
}

func (r *fakeRunner) commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func setupSandbox(t *testing.T, failOn string) (*Sandbox, *fakeRunner, string) {
	t.Helper()
	dir := t.TempDir()
	log := zerolog.Nop()

	store := memory.NewStore(filepath.Join(dir, "agent_memory.json"), log)
	engine := policy.NewEngine(config.PolicyConfig{
		MaxLOCDelta:        5,
		AllowedGitPrefixes: []string{"tools/", "experiments/"},
		BrowserMode:        config.BrowserModeOpen,
	}, store, dir, log)

	runner := &fakeRunner{failOn: failOn}
	sb := New(config.GitConfig{
		Token:       "ghp_secret",
		Repo:        "owner/agent",
		Branch:      "main",
		TestCommand: "go test ./...",
		LintCommand: "golint {path}",
	}, engine, runner, log)
	return sb, runner, dir
}

func TestApply_Success(t *testing.T) {
	sb, runner, dir := setupSandbox(t, "")

	sig, err := sb.Apply(context.Background(), "tools/helper.go", "package tools\n", "agent: add helper")
	require.NoError(t, err)
	assert.Equal(t, "push succeeded", sig)

	data, err := os.ReadFile(filepath.Join(dir, "tools", "helper.go"))
	require.NoError(t, err)
	assert.Equal(t, "package tools\n", string(data))

	assert.Equal(t, []string{
		"go test ./...",
		"golint tools/helper.go",
		"git add -- tools/helper.go",
		"git commit -m agent: add helper",
		"git push https://ghp_secret@github.com/owner/agent.git main",
		"git remote set-url origin https://github.com/owner/agent.git",
	}, runner.commands())
}

func TestApply_PolicyRejectionsWriteNothing(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
	}{
		{name: "outside allowed prefixes", path: "internal/agent/agent.go", content: "x\n"},
		{name: "path traversal", path: "tools/../main.go", content: "x\n"},
		{name: "too many lines", path: "tools/big.go", content: strings.Repeat("line\n", 6)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sb, runner, dir := setupSandbox(t, "")

			_, err := sb.Apply(context.Background(), tt.path, tt.content, "msg")
			require.Error(t, err)
			assert.True(t, domain.IsPolicyViolation(err))
			assert.Empty(t, runner.commands())

			_, statErr := os.Stat(filepath.Join(dir, tt.path))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestApply_RollbackRemovesNewFile(t *testing.T) {
	sb, runner, dir := setupSandbox(t, "go test")

	_, err := sb.Apply(context.Background(), "experiments/new.go", "package experiments\n", "msg")
	require.Error(t, err)

	var se *domain.SandboxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageTests, se.Stage)

	_, statErr := os.Stat(filepath.Join(dir, "experiments", "new.go"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Len(t, runner.commands(), 1, "nothing runs after the failing stage")
}

func TestApply_RollbackRestoresExistingFile(t *testing.T) {
	sb, _, dir := setupSandbox(t, "golint")
	target := filepath.Join(dir, "tools", "existing.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("package tools\n\n// v1\n"), 0644))

	_, err := sb.Apply(context.Background(), "tools/existing.go", "package tools\n\n// v2\n", "msg")
	require.Error(t, err)

	var se *domain.SandboxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageLint, se.Stage)

	data, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, "package tools\n\n// v1\n", string(data))
}

func TestApply_PushFailureRedactsTokenAndResetsRemote(t *testing.T) {
	sb, runner, dir := setupSandbox(t, "git push")

	_, err := sb.Apply(context.Background(), "tools/helper.go", "package tools\n", "msg")
	require.Error(t, err)

	var se *domain.SandboxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StagePush, se.Stage)
	assert.NotContains(t, err.Error(), "ghp_secret")

	assert.Equal(t, []string{
		"go test ./...",
		"golint tools/helper.go",
		"git add -- tools/helper.go",
		"git commit -m msg",
		"git push https://ghp_secret@github.com/owner/agent.git main",
		"git remote set-url origin https://github.com/owner/agent.git",
		"git reset -q --soft HEAD~1",
		"git reset -q -- tools/helper.go",
	}, runner.commands())

	_, statErr := os.Stat(filepath.Join(dir, "tools", "helper.go"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApply_CommitFailureUnstagesFile(t *testing.T) {
	sb, runner, dir := setupSandbox(t, "git commit")
	target := filepath.Join(dir, "tools", "existing.go")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("v1\n"), 0644))

	_, err := sb.Apply(context.Background(), "tools/existing.go", "v2\n", "msg")
	require.Error(t, err)

	var se *domain.SandboxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageCommit, se.Stage)

	cmds := runner.commands()
	assert.Equal(t, "git reset -q -- tools/existing.go", cmds[len(cmds)-1])
	assert.NotContains(t, cmds, "git reset -q --soft HEAD~1")

	data, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, "v1\n", string(data))
}

// gitRepo creates a working copy with tools/a.go committed at "v1\n"
func gitRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	run := func(args ...string) string {
		out, err := ExecRunner{}.Run(context.Background(), dir, "git", args...)
		require.NoError(t, err)
		return out
	}
	run("init", "-q")
	run("config", "user.email", "agent@example.com")
	run("config", "user.name", "agent")
	run("config", "commit.gpgsign", "false")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tools"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools", "a.go"), []byte("v1\n"), 0644))
	run("add", "--", "tools/a.go")
	run("commit", "-q", "-m", "init")
	return dir
}

func TestApply_RejectedCommitLeavesIndexClean(t *testing.T) {
	dir := gitRepo(t)
	hook := filepath.Join(dir, ".git", "hooks", "pre-commit")
	require.NoError(t, os.MkdirAll(filepath.Dir(hook), 0755))
	require.NoError(t, os.WriteFile(hook, []byte("#!/bin/sh\nexit 1\n"), 0755))

	log := zerolog.Nop()
	store := memory.NewStore(filepath.Join(t.TempDir(), "agent_memory.json"), log)
	engine := policy.NewEngine(config.PolicyConfig{
		MaxLOCDelta:        5,
		AllowedGitPrefixes: []string{"tools/"},
		BrowserMode:        config.BrowserModeOpen,
	}, store, dir, log)
	sb := New(config.GitConfig{Repo: "owner/agent", Branch: "main"}, engine, nil, log)

	_, err := sb.Apply(context.Background(), "tools/a.go", "v2-rejected\n", "msg")
	require.Error(t, err)

	data, readErr := os.ReadFile(filepath.Join(dir, "tools", "a.go"))
	require.NoError(t, readErr)
	assert.Equal(t, "v1\n", string(data))

	staged, diffErr := ExecRunner{}.Run(context.Background(), dir, "git", "diff", "--cached", "--name-only")
	require.NoError(t, diffErr)
	assert.Empty(t, strings.TrimSpace(staged))

	head, showErr := ExecRunner{}.Run(context.Background(), dir, "git", "show", "HEAD:tools/a.go")
	require.NoError(t, showErr)
	assert.Equal(t, "v1\n", head)
}

func TestSplitCommand(t *testing.T) {
	assert.Equal(t, []string{"ruff", "check", "tools/a.py"}, splitCommand("ruff check {path}", "tools/a.py"))
	assert.Empty(t, splitCommand("   ", "tools/a.py"))
}
