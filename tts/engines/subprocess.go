// Package engines provides the speech engine adapters: the platform
// system voice, gtts-cli, Microsoft Edge neural voices, and OpenAI.
// The Piper adapter lives in the piper subpackage.
package engines

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// SubprocessManager runs external synthesis tools. Stdin is attached
// before the process starts so short inputs are never lost to a race,
// and every run is bounded by a context deadline.
type SubprocessManager struct {
	mu             sync.Mutex
	defaultTimeout time.Duration
}

// NewSubprocessManager creates a manager with the given default timeout.
func NewSubprocessManager(timeout time.Duration) *SubprocessManager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SubprocessManager{defaultTimeout: timeout}
}

// Run executes a command, feeding input on stdin when non-empty, and
// returns captured stdout. Stderr is folded into the error.
func (sm *SubprocessManager) Run(ctx context.Context, input string, name string, args ...string) ([]byte, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sm.defaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if input != "" {
		// Stdin must be wired before Start.
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s timed out: %w", name, ctx.Err())
		}
		return nil, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Stream starts a command and copies its stdout until EOF, feeding
// input on stdin. Used for tools that emit raw audio progressively.
func (sm *SubprocessManager) Stream(ctx context.Context, input string, name string, args ...string) ([]byte, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sm.defaultTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%s stdout pipe: %w", name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s start: %w", name, err)
	}

	var out bytes.Buffer
	_, copyErr := io.Copy(&out, stdout)
	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%s timed out: %w", name, ctx.Err())
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
	}
	if copyErr != nil {
		return nil, fmt.Errorf("%s read: %w", name, copyErr)
	}
	if waitErr != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", name, waitErr, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", name, waitErr)
	}
	return out.Bytes(), nil
}

// FindBinary returns the first candidate that resolves to an existing
// executable, checking absolute paths directly and the rest via PATH.
func FindBinary(candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if strings.ContainsRune(c, os.PathSeparator) {
			if info, err := os.Stat(c); err == nil && !info.IsDir() {
				return c
			}
			continue
		}
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return ""
}
