// Package cryptoworker implements the background task runner named in spec
// §4.5: a small closed set of CPU-heavy task types (encrypt, decrypt,
// archive, prune-habit, build-ai-prompt) executed off the caller's
// goroutine and addressed through request/response envelopes, the same
// shape as the teacher's internal/rpc.Request/Response pair.
package cryptoworker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Task type constants — the closed set from spec §4.5.
const (
	TaskEncrypt      = "encrypt"
	TaskDecrypt      = "decrypt"
	TaskArchive      = "archive"
	TaskPruneHabit   = "prune-habit"
	TaskBuildAIPrompt = "build-ai-prompt"
)

// ErrCryptoFailed is returned by RunTask for TaskEncrypt/TaskDecrypt
// failures (bad key, truncated ciphertext, authentication failure). Per
// spec §7 a crypto failure during pull must abort the merge and leave local
// state untouched, so callers match it with errors.Is rather than string
// inspection.
var ErrCryptoFailed = errors.New("cryptoworker: crypto operation failed")

// Envelope mirrors the {status, result|error} response shape spec §4.5
// describes; Worker.RunTask unwraps it into a plain (any, error) for Go
// callers, but it is kept as a named type so task implementations and tests
// can assert on it directly.
type Envelope struct {
	Status string `json:"status"` // "success" | "error"
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type job struct {
	ctx     context.Context
	taskType string
	payload any
	reply   chan Envelope
}

// Worker is a singleton-style task queue drained by a small goroutine pool.
// It owns no cryptographic secrets itself — callers pass a derived key with
// each encrypt/decrypt payload.
type Worker struct {
	log    *slog.Logger
	jobs   chan job
	group  singleflight.Group
	once   sync.Once
	nextID atomic.Int64
}

// New constructs a Worker. Call Preload to start its goroutine pool at a
// convenient idle moment; RunTask also starts it lazily on first use.
func New(log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{log: log, jobs: make(chan job, 64)}
}

// Preload starts the worker pool if it has not already started, so the
// first real encrypt/decrypt call pays no goroutine cold-start cost (spec
// §4.5: "preloaded on first idle moment").
func (w *Worker) Preload() {
	w.once.Do(func() {
		n := runtime.GOMAXPROCS(0)
		if n < 2 {
			n = 2
		}
		for i := 0; i < n; i++ {
			go w.drain()
		}
	})
}

func (w *Worker) drain() {
	for j := range w.jobs {
		j.reply <- w.execute(j.ctx, j.taskType, j.payload)
	}
}

// NewRequestID returns a monotonically increasing id a caller can use to
// implement the cooperative cancellation pattern from spec §5: stash the id,
// and when a response arrives, drop it if a newer id has since been issued.
func (w *Worker) NewRequestID() int64 { return w.nextID.Add(1) }

// RunTask submits one task and blocks for its result, or returns ctx.Err()
// if ctx is cancelled first.
func (w *Worker) RunTask(ctx context.Context, taskType string, payload any) (any, error) {
	w.Preload()
	j := job{ctx: ctx, taskType: taskType, payload: payload, reply: make(chan Envelope, 1)}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case env := <-j.reply:
		if env.Status != "success" {
			if taskType == TaskEncrypt || taskType == TaskDecrypt {
				return nil, fmt.Errorf("%w: %s", ErrCryptoFailed, env.Error)
			}
			return nil, fmt.Errorf("cryptoworker: task %s failed: %s", taskType, env.Error)
		}
		return env.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RunTaskDedup collapses concurrent identical requests sharing dedupKey
// (e.g. "encrypt:core" while a prior encrypt of the same shard is still in
// flight) into a single execution, generalizing the teacher's RPC
// request-id multiplexer (internal/rpc) to arbitrary task keys.
func (w *Worker) RunTaskDedup(ctx context.Context, dedupKey, taskType string, payload any) (any, error) {
	v, err, _ := w.group.Do(dedupKey, func() (interface{}, error) {
		return w.RunTask(ctx, taskType, payload)
	})
	return v, err
}

func (w *Worker) execute(ctx context.Context, taskType string, payload any) Envelope {
	result, err := w.dispatch(ctx, taskType, payload)
	if err != nil {
		return Envelope{Status: "error", Error: err.Error()}
	}
	return Envelope{Status: "success", Result: result}
}

func (w *Worker) dispatch(ctx context.Context, taskType string, payload any) (any, error) {
	switch taskType {
	case TaskEncrypt:
		p, ok := payload.(EncryptPayload)
		if !ok {
			return nil, fmt.Errorf("cryptoworker: bad payload for %s", taskType)
		}
		return encrypt(p)
	case TaskDecrypt:
		p, ok := payload.(DecryptPayload)
		if !ok {
			return nil, fmt.Errorf("cryptoworker: bad payload for %s", taskType)
		}
		return decrypt(p)
	case TaskArchive:
		p, ok := payload.(ArchivePayload)
		if !ok {
			return nil, fmt.Errorf("cryptoworker: bad payload for %s", taskType)
		}
		return archive(p)
	case TaskPruneHabit:
		p, ok := payload.(PruneHabitPayload)
		if !ok {
			return nil, fmt.Errorf("cryptoworker: bad payload for %s", taskType)
		}
		return pruneHabit(p)
	case TaskBuildAIPrompt:
		p, ok := payload.(BuildAIPromptPayload)
		if !ok {
			return nil, fmt.Errorf("cryptoworker: bad payload for %s", taskType)
		}
		return buildAIPrompt(p)
	default:
		return nil, fmt.Errorf("cryptoworker: unknown task type %q", taskType)
	}
}
