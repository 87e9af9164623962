package builder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/convsearch/convdex/internal/errors"
)

// killDelay is how long after cancellation the subprocess gets to exit
// before it is killed.
const killDelay = 5 * time.Second

// stderrTailBytes is how much trailing stderr is preserved for error
// reporting. Builder logs are opaque beyond success/failure, but the
// tail makes failures diagnosable.
const stderrTailBytes = 4 * 1024

// ExecBuilder invokes an external Lucene-style index builder CLI.
// The argv mirrors the flags the builder expects: -input, -index,
// -threads and the stored-field toggles.
type ExecBuilder struct {
	// Binary is the builder executable (e.g. a wrapper script around
	// the JVM indexer).
	Binary string

	// ExtraArgs are prepended before the generated flags, for fixed
	// arguments like a collection type.
	ExtraArgs []string

	// execCommand is injectable for tests.
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecBuilder creates an exec-backed builder for the given binary.
func NewExecBuilder(binary string, extraArgs ...string) *ExecBuilder {
	return &ExecBuilder{
		Binary:      binary,
		ExtraArgs:   extraArgs,
		execCommand: exec.CommandContext,
	}
}

// Build implements Builder.
func (b *ExecBuilder) Build(ctx context.Context, req Request) (*Result, error) {
	args := append([]string{}, b.ExtraArgs...)
	args = append(args,
		"-input", req.CorpusDir,
		"-index", req.OutputDir,
		"-threads", strconv.Itoa(req.Params.Threads),
	)
	if req.Params.StorePositions {
		args = append(args, "-storePositions")
	}
	if req.Params.StoreDocVectors {
		args = append(args, "-storeDocvectors")
	}
	if req.Params.StoreRaw {
		args = append(args, "-storeRaw")
	}

	cmd := b.execCommand(ctx, b.Binary, args...)
	var stderr tailBuffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr

	// Run the builder in its own process group so cancellation reaches
	// JVM children, not just the wrapper script.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = killDelay

	slog.Info("invoking index builder",
		slog.String("dataset", req.Dataset),
		slog.String("binary", b.Binary),
		slog.Int("threads", req.Params.Threads))

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		// Cancellation and deadline expiry surface as context errors so
		// the lifecycle manager can classify them.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.BuilderInvocation(req.Dataset,
			fmt.Errorf("%s: %w (stderr: %s)", b.Binary, err, stderr.String()))
	}

	slog.Info("index builder finished",
		slog.String("dataset", req.Dataset),
		slog.Duration("elapsed", time.Since(start)))
	return &Result{}, nil
}

// tailBuffer keeps only the last stderrTailBytes of what is written.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n, _ := t.buf.Write(p)
	if t.buf.Len() > stderrTailBytes {
		excess := t.buf.Len() - stderrTailBytes
		t.buf.Next(excess)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
