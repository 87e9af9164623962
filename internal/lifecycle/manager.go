package lifecycle

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"

	"github.com/convsearch/convdex/internal/adapter"
	"github.com/convsearch/convdex/internal/builder"
	"github.com/convsearch/convdex/internal/errors"
	"github.com/convsearch/convdex/internal/history"
	"github.com/convsearch/convdex/internal/registry"
	"github.com/convsearch/convdex/internal/storage"
)

// DefaultMaxConcurrentBuilds bounds parallel builds across datasets to
// protect shared disk and CPU.
const DefaultMaxConcurrentBuilds = 2

// lockRetryInterval is how often a blocked cross-process lock attempt
// retries.
const lockRetryInterval = 250 * time.Millisecond

// Config wires the manager's collaborators. Registry, Storage, and
// Builder are required; History is optional.
type Config struct {
	Registry *registry.Registry
	Storage  storage.Manager
	Builder  builder.Builder
	// Params are the default build settings for all datasets.
	Params builder.Params
	// History, when set, records every build attempt.
	History *history.Store
	// MaxConcurrentBuilds bounds cross-dataset build parallelism.
	// Zero means DefaultMaxConcurrentBuilds.
	MaxConcurrentBuilds int64
}

// Options tune one EnsureIndex call.
type Options struct {
	// Timeout is an optional deadline for the build. On expiry the
	// build is cancelled and a build-timeout error is surfaced.
	Timeout time.Duration
	// Force rebuilds even when the existing index is current.
	Force bool
	// Params overrides the manager's default build settings.
	Params *builder.Params
}

// Manager owns all IndexHandle state transitions. It is safe for
// concurrent use: builds for the same dataset are serialized with join
// semantics, builds for different datasets run in parallel up to
// MaxConcurrentBuilds.
type Manager struct {
	cfg Config
	sem *semaphore.Weighted

	mu     sync.Mutex
	states map[string]*datasetState
}

type datasetState struct {
	handle Handle
	op     *buildOp // non-nil while Building
}

// buildOp is one in-flight build. Joiners wait on done; the initiator
// fills handle/err before closing it.
type buildOp struct {
	done   chan struct{}
	cancel context.CancelFunc
	handle Handle
	err    error
}

// NewManager creates a lifecycle manager.
func NewManager(cfg Config) *Manager {
	maxBuilds := cfg.MaxConcurrentBuilds
	if maxBuilds <= 0 {
		maxBuilds = DefaultMaxConcurrentBuilds
	}
	return &Manager{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(maxBuilds),
		states: make(map[string]*datasetState),
	}
}

// EnsureIndex makes the dataset's index Ready, building it if needed.
//
// If the index is Ready and the build params are unchanged, the call is
// a no-op returning the existing handle. If a build for the dataset is
// already in flight, the call joins it instead of starting a second
// one. Otherwise a build runs in the calling goroutine: validate,
// stage the normalized corpus, invoke the builder, publish atomically,
// record the sidecar manifest.
func (m *Manager) EnsureIndex(ctx context.Context, name string, opts Options) (Handle, error) {
	desc, err := m.cfg.Registry.Get(name)
	if err != nil {
		return Handle{}, err
	}

	params := m.cfg.Params
	if opts.Params != nil {
		params = *opts.Params
	}
	paramsHash := params.Hash()

	m.mu.Lock()
	st := m.stateLocked(desc)

	if st.op != nil {
		op := st.op
		m.mu.Unlock()
		slog.Debug("joining in-flight build", slog.String("dataset", name))
		// The joiner's deadline bounds its wait only; the shared build
		// keeps running for the initiator.
		joinCtx := ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			joinCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		return m.join(joinCtx, name, op)
	}

	if st.handle.Status == StatusReady && st.handle.ParamsHash == paramsHash && !opts.Force {
		h := st.handle
		m.mu.Unlock()
		return h, nil
	}

	if !canTransitionToBuilding(st.handle.Status) {
		h := st.handle
		m.mu.Unlock()
		return h, errors.InvalidState(name, "cannot start build from state "+string(h.Status))
	}

	buildCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		buildCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		buildCtx, cancel = context.WithCancel(ctx)
	}

	op := &buildOp{done: make(chan struct{}), cancel: cancel}
	st.op = op
	st.handle.Status = StatusBuilding
	m.mu.Unlock()

	handle, buildErr := m.runBuild(buildCtx, desc, params)
	cancel()

	m.mu.Lock()
	st.handle = handle
	st.op = nil
	m.mu.Unlock()

	op.handle = handle
	op.err = buildErr
	close(op.done)

	return handle, buildErr
}

// join waits for an in-flight build. The waiter's own context expiring
// abandons the wait without affecting the build; the expiry is surfaced
// as a build-timeout or build-cancelled error like any other.
func (m *Manager) join(ctx context.Context, dataset string, op *buildOp) (Handle, error) {
	select {
	case <-op.done:
		return op.handle, op.err
	case <-ctx.Done():
		return Handle{}, m.classify(dataset, ctx.Err())
	}
}

// Invalidate marks the dataset's index stale and removes its on-disk
// artifacts. It fails with an invalid-state error while a build is in
// flight: callers must Cancel first.
func (m *Manager) Invalidate(name string) error {
	desc, err := m.cfg.Registry.Get(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateLocked(desc)

	if st.op != nil {
		return errors.InvalidState(name, "cannot invalidate while a build is in flight")
	}
	switch st.handle.Status {
	case StatusReady, StatusFailed, StatusStale:
		// fall through
	default:
		return errors.InvalidState(name, "nothing to invalidate in state "+string(st.handle.Status))
	}

	if err := m.cfg.Storage.RemoveIndex(desc); err != nil {
		return err
	}
	if indexPath, err := m.cfg.Storage.ResolveIndexPath(desc); err == nil {
		removeManifest(indexPath)
	}

	st.handle.Status = StatusStale
	st.handle.DocCount = 0
	st.handle.BuiltAt = time.Time{}
	st.handle.ParamsHash = ""
	st.handle.Err = nil

	slog.Info("index invalidated", slog.String("dataset", name))
	return nil
}

// Cancel aborts the dataset's in-flight build and waits for its
// cleanup to finish. It fails with an invalid-state error when no
// build is running.
func (m *Manager) Cancel(name string) error {
	m.mu.Lock()
	st, ok := m.states[name]
	if !ok || st.op == nil {
		m.mu.Unlock()
		return errors.InvalidState(name, "no build in flight")
	}
	op := st.op
	m.mu.Unlock()

	op.cancel()
	<-op.done
	return nil
}

// Status returns the dataset's current handle, recovering persisted
// state from the sidecar manifest on first request after a restart.
func (m *Manager) Status(name string) (Handle, error) {
	desc, err := m.cfg.Registry.Get(name)
	if err != nil {
		return Handle{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked(desc).handle, nil
}

// Handles returns handles for all registered datasets in registration
// order.
func (m *Manager) Handles() []Handle {
	descs := m.cfg.Registry.List()

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Handle, 0, len(descs))
	for _, d := range descs {
		out = append(out, m.stateLocked(d).handle)
	}
	return out
}

// stateLocked returns the dataset's state, creating and recovering it
// on first access. Caller holds m.mu.
func (m *Manager) stateLocked(desc registry.Descriptor) *datasetState {
	if st, ok := m.states[desc.Name]; ok {
		return st
	}

	st := &datasetState{handle: Handle{Dataset: desc.Name, Status: StatusMissing}}
	m.states[desc.Name] = st

	indexPath, err := m.cfg.Storage.ResolveIndexPath(desc)
	if err != nil {
		return st
	}
	st.handle.Path = indexPath

	man, err := readManifest(indexPath)
	if err != nil {
		return st
	}
	switch man.Status {
	case StatusReady:
		// A Ready manifest without the index directory means someone
		// removed files behind our back; treat as missing.
		if _, err := os.Stat(indexPath); err != nil {
			return st
		}
		st.handle.Status = StatusReady
		st.handle.DocCount = man.DocCount
		st.handle.BuiltAt = man.BuiltAt
		st.handle.ParamsHash = man.ParamsHash
	case StatusFailed:
		st.handle.Status = StatusFailed
		if man.Error != "" {
			st.handle.Err = stderrors.New(man.Error)
		}
	}
	return st
}

// runBuild performs one build attempt and returns the resulting handle.
// The returned handle is Ready on success and Failed otherwise, with
// the error classified and captured.
func (m *Manager) runBuild(ctx context.Context, desc registry.Descriptor, params builder.Params) (Handle, error) {
	started := time.Now()
	handle := Handle{Dataset: desc.Name, Status: StatusFailed, ParamsHash: params.Hash()}

	fail := func(err error) (Handle, error) {
		err = m.classify(desc.Name, err)
		handle.Status = StatusFailed
		handle.Err = err
		m.record(history.Record{
			Dataset:    desc.Name,
			ParamsHash: params.Hash(),
			Status:     failureStatus(err),
			Duration:   time.Since(started),
			Error:      err.Error(),
			StartedAt:  started,
		})
		if handle.Path != "" {
			_ = writeManifest(handle.Path, manifest{
				Dataset:    desc.Name,
				ParamsHash: params.Hash(),
				Status:     StatusFailed,
				Error:      err.Error(),
			})
		}
		slog.Warn("build failed",
			slog.String("dataset", desc.Name),
			slog.String("error", err.Error()))
		return handle, err
	}

	rawPath, err := m.cfg.Storage.ResolveDatasetPath(desc)
	if err != nil {
		return fail(err)
	}
	indexPath, err := m.cfg.Storage.ResolveIndexPath(desc)
	if err != nil {
		return fail(err)
	}
	handle.Path = indexPath
	stagingRoot, err := m.cfg.Storage.StagingDir(desc)
	if err != nil {
		return fail(err)
	}

	if err := storage.CheckDiskSpace(filepath.Dir(indexPath)); err != nil {
		return fail(err)
	}

	// Bound cross-dataset parallelism.
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return fail(err)
	}
	defer m.sem.Release(1)

	// Cross-process exclusion on the index area: another convdex
	// process may be building the same dataset.
	fl := flock.New(indexPath + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return fail(err)
	}
	if !locked {
		return fail(errors.InvalidState(desc.Name, "index is locked by another process"))
	}
	defer func() { _ = fl.Unlock() }()

	// The descriptor handed to the adapter carries resolved paths.
	resolved := desc
	resolved.RawPath = rawPath

	a, err := adapter.For(resolved)
	if err != nil {
		return fail(err)
	}
	if err := a.ValidateSchema(resolved); err != nil {
		return fail(err)
	}

	// Stage under a fresh directory; discard it on every exit path so
	// a failed or cancelled build never leaves partial output behind.
	_ = os.RemoveAll(stagingRoot)
	corpusDir := filepath.Join(stagingRoot, "corpus")
	outDir := filepath.Join(stagingRoot, "index")
	if err := os.MkdirAll(corpusDir, 0o755); err != nil {
		return fail(errors.Wrap(errors.ErrCodeMissingPath, err).WithDataset(desc.Name))
	}
	defer func() { _ = os.RemoveAll(stagingRoot) }()

	docCount, err := m.stageCorpus(ctx, a, resolved, corpusDir)
	if err != nil {
		return fail(err)
	}

	slog.Info("corpus staged",
		slog.String("dataset", desc.Name),
		slog.Int("docs", docCount))

	if _, err := m.cfg.Builder.Build(ctx, builder.Request{
		Dataset:   desc.Name,
		CorpusDir: corpusDir,
		OutputDir: outDir,
		Params:    params,
	}); err != nil {
		return fail(err)
	}

	if err := m.cfg.Storage.Publish(outDir, indexPath); err != nil {
		return fail(err)
	}

	builtAt := time.Now()
	handle.Status = StatusReady
	handle.BuiltAt = builtAt
	handle.DocCount = docCount
	handle.Err = nil

	if err := writeManifest(indexPath, manifest{
		Dataset:    desc.Name,
		ParamsHash: params.Hash(),
		DocCount:   docCount,
		BuiltAt:    builtAt,
		Status:     StatusReady,
	}); err != nil {
		slog.Warn("failed to write manifest",
			slog.String("dataset", desc.Name),
			slog.String("error", err.Error()))
	}

	m.record(history.Record{
		Dataset:    desc.Name,
		ParamsHash: params.Hash(),
		Status:     string(StatusReady),
		DocCount:   docCount,
		Duration:   time.Since(started),
		StartedAt:  started,
	})

	slog.Info("index published",
		slog.String("dataset", desc.Name),
		slog.Int("docs", docCount),
		slog.Duration("elapsed", time.Since(started)))
	return handle, nil
}

// stageCorpus streams the adapter's documents into a JSONL file under
// corpusDir. Documents are never buffered in bulk.
func (m *Manager) stageCorpus(ctx context.Context, a adapter.Adapter, desc registry.Descriptor, corpusDir string) (int, error) {
	it, err := a.Documents(ctx, desc)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	f, err := os.Create(filepath.Join(corpusDir, "corpus.jsonl"))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeMissingPath, err).WithDataset(desc.Name)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(w)

	count := 0
	for {
		doc, err := it.Next()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if err := enc.Encode(doc); err != nil {
			return 0, errors.Wrap(errors.ErrCodeMissingPath, err).WithDataset(desc.Name)
		}
		count++
	}

	if err := w.Flush(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeMissingPath, err).WithDataset(desc.Name)
	}
	return count, nil
}

// classify maps context errors to their lifecycle error kinds; adapter,
// storage, and builder errors already carry theirs.
func (m *Manager) classify(dataset string, err error) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.BuildTimeout(dataset, err)
	case stderrors.Is(err, context.Canceled):
		return errors.BuildCancelled(dataset)
	default:
		return err
	}
}

// failureStatus derives the history status for a failed build.
func failureStatus(err error) string {
	if errors.IsBuildCancelled(err) {
		return "cancelled"
	}
	return string(StatusFailed)
}

// record appends to the build history when one is configured.
func (m *Manager) record(rec history.Record) {
	if m.cfg.History == nil {
		return
	}
	if err := m.cfg.History.Append(context.Background(), rec); err != nil {
		slog.Warn("failed to record build history", slog.String("error", err.Error()))
	}
}
