// Package sandbox applies self-modifications: a changed file must pass the
// test and lint commands before it is committed and pushed, and is rolled
// back otherwise.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/rs/zerolog"
)

// Pipeline stages reported in SandboxError
const (
	StageWrite  = "write"
	StageTests  = "tests"
	StageLint   = "lint"
	StageCommit = "commit"
	StagePush   = "push"
)

// PathPolicy is the subset of the policy engine the sandbox consults
type PathPolicy interface {
	CheckGitPaths(paths []string) error
	CheckLOCDelta(delta int) error
	RepoRoot() string
}

// Sandbox implements domain.Sandbox on a git working copy
type Sandbox struct {
	cfg    config.GitConfig
	policy PathPolicy
	runner Runner
	log    zerolog.Logger
}

// New creates a sandbox. The policy's repository root is the working copy.
func New(cfg config.GitConfig, policy PathPolicy, runner Runner, log zerolog.Logger) *Sandbox {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Sandbox{
		cfg:    cfg,
		policy: policy,
		runner: runner,
		log:    log.With().Str("service", "sandbox").Logger(),
	}
}

var _ domain.Sandbox = (*Sandbox)(nil)

// Apply validates, writes, checks and commits one file. Policy violations are
// returned before anything is written; later failures undo any staging or
// local commit, restore the previous file content (or remove a new file) and
// return a *domain.SandboxError.
func (s *Sandbox) Apply(ctx context.Context, path, content, commitMessage string) (string, error) {
	s.log.Info().Str("path", path).Int("chars", len(content)).Msg("Applying change")

	if err := s.policy.CheckGitPaths([]string{path}); err != nil {
		return "", err
	}

	root := s.policy.RepoRoot()
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, path)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	original, existed, err := readOriginal(abs)
	if err != nil {
		return "", &domain.SandboxError{Stage: StageWrite, Err: err}
	}

	delta := strings.Count(content, "\n") - strings.Count(original, "\n")
	if err := s.policy.CheckLOCDelta(delta); err != nil {
		return "", err
	}
	s.log.Debug().Int("loc_delta", delta).Msg("LOC delta accepted")

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", &domain.SandboxError{Stage: StageWrite, Err: err}
	}
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		return "", &domain.SandboxError{Stage: StageWrite, Err: err}
	}

	sig, stageErr := s.checkAndCommit(ctx, root, rel, commitMessage)
	if stageErr == nil {
		s.log.Info().Str("path", rel).Msg("Change committed")
		return sig, nil
	}

	s.log.Warn().Err(stageErr).Str("path", rel).Msg("Rolling back change")
	if err := restore(abs, original, existed); err != nil {
		s.log.Error().Err(err).Str("path", rel).Msg("Rollback failed")
		stageErr.Err = errors.Join(stageErr.Err, fmt.Errorf("rollback failed: %w", err))
	}
	return "", stageErr
}

func (s *Sandbox) checkAndCommit(ctx context.Context, root, rel, message string) (string, *domain.SandboxError) {
	if argv := splitCommand(s.cfg.TestCommand, rel); len(argv) > 0 {
		s.log.Info().Strs("cmd", argv).Msg("Running tests")
		if _, err := s.runner.Run(ctx, root, argv[0], argv[1:]...); err != nil {
			return "", &domain.SandboxError{Stage: StageTests, Err: err}
		}
	}

	if argv := splitCommand(s.cfg.LintCommand, rel); len(argv) > 0 {
		s.log.Info().Strs("cmd", argv).Msg("Running lint")
		if _, err := s.runner.Run(ctx, root, argv[0], argv[1:]...); err != nil {
			return "", &domain.SandboxError{Stage: StageLint, Err: err}
		}
	}

	// Stage only the declared file
	if _, err := s.runner.Run(ctx, root, "git", "add", "--", rel); err != nil {
		return "", &domain.SandboxError{Stage: StageCommit, Err: errors.Join(err, s.unwindGit(ctx, root, rel, false))}
	}
	if _, err := s.runner.Run(ctx, root, "git", "commit", "-m", message); err != nil {
		return "", &domain.SandboxError{Stage: StageCommit, Err: errors.Join(err, s.unwindGit(ctx, root, rel, false))}
	}

	if err := s.push(ctx, root); err != nil {
		return "", &domain.SandboxError{Stage: StagePush, Err: errors.Join(err, s.unwindGit(ctx, root, rel, true))}
	}
	return "push succeeded", nil
}

// unwindGit drops the local commit (when one was made) and unstages rel, so
// the index and HEAD match their state before Apply
func (s *Sandbox) unwindGit(ctx context.Context, root, rel string, committed bool) error {
	if committed {
		if _, err := s.runner.Run(ctx, root, "git", "reset", "-q", "--soft", "HEAD~1"); err != nil {
			return fmt.Errorf("failed to drop local commit: %w", err)
		}
	}
	if _, err := s.runner.Run(ctx, root, "git", "reset", "-q", "--", rel); err != nil {
		return fmt.Errorf("failed to unstage %s: %w", rel, err)
	}
	return nil
}

// push injects the token into the remote URL for this one command and resets
// origin to the token-free URL afterwards
func (s *Sandbox) push(ctx context.Context, root string) error {
	tokenURL := fmt.Sprintf("https://%s@github.com/%s.git", s.cfg.Token, s.cfg.Repo)
	_, pushErr := s.runner.Run(ctx, root, "git", "push", tokenURL, s.cfg.Branch)

	cleanURL := fmt.Sprintf("https://github.com/%s.git", s.cfg.Repo)
	_, resetErr := s.runner.Run(ctx, root, "git", "remote", "set-url", "origin", cleanURL)

	if pushErr != nil {
		return redact(pushErr, s.cfg.Token)
	}
	if resetErr != nil {
		return redact(resetErr, s.cfg.Token)
	}
	return nil
}

func readOriginal(path string) (string, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), true, nil
}

func restore(path, original string, existed bool) error {
	if existed {
		return os.WriteFile(path, []byte(original), 0644)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// redact strips the token from command errors, which echo their arguments
func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "***"))
}
