// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/shipdex/core"
	"github.com/poiesic/shipdex/ingestion"
	"github.com/poiesic/shipdex/storage"
)

const (
	defaultPoolSize = 8

	// Per-attempt stage deadlines. Fetch talks to the outside world and
	// gets a tighter bound; the remaining stages share the wider one.
	defaultFetchTimeout = 10 * time.Minute
	defaultStageTimeout = 30 * time.Minute
)

// Engine drives accepted submissions through the ingestion stages on a
// worker pool. Each task is a persisted state machine: the checkpoint is
// saved before every stage, so a crashed or restarted engine resumes
// in-flight tasks from their last completed stage instead of starting
// over. Stage outputs travel inside the checkpoint.
type Engine struct {
	ledger      storage.TaskLedger
	checkpoints storage.CheckpointStore
	resolver    *ingestion.ContentResolver
	normalizer  *ingestion.Normalizer
	chunker     *ingestion.ChunkEmbedStage
	writer      *ingestion.MultiStoreWriter

	pool         *ants.Pool
	retry        RetryPolicy
	fetchTimeout time.Duration
	stageTimeout time.Duration

	mu        sync.Mutex
	cancelled map[string]bool
	closed    bool

	wg     sync.WaitGroup
	logger *slog.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine) error

// WithPoolSize sets the number of concurrent workflow workers.
func WithPoolSize(size int) EngineOption {
	return func(e *Engine) error {
		if size <= 0 {
			return fmt.Errorf("pool size must be positive, got %d", size)
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		e.pool.Release()
		e.pool = pool
		return nil
	}
}

// WithRetryPolicy overrides the stage retry policy.
func WithRetryPolicy(policy RetryPolicy) EngineOption {
	return func(e *Engine) error {
		if policy.MaxAttempts <= 0 {
			return ErrInvalidRetryPolicy
		}
		e.retry = policy
		return nil
	}
}

// WithStageTimeouts overrides the per-attempt stage deadlines.
func WithStageTimeouts(fetch, other time.Duration) EngineOption {
	return func(e *Engine) error {
		if fetch <= 0 || other <= 0 {
			return fmt.Errorf("stage timeouts must be positive")
		}
		e.fetchTimeout = fetch
		e.stageTimeout = other
		return nil
	}
}

// NewEngine creates a workflow engine over the ledger, checkpoint store
// and the four pipeline stages.
func NewEngine(
	ledger storage.TaskLedger,
	checkpoints storage.CheckpointStore,
	resolver *ingestion.ContentResolver,
	normalizer *ingestion.Normalizer,
	chunker *ingestion.ChunkEmbedStage,
	writer *ingestion.MultiStoreWriter,
	opts ...EngineOption,
) (*Engine, error) {
	if ledger == nil {
		return nil, ErrLedgerRequired
	}
	if checkpoints == nil {
		return nil, ErrCheckpointStoreRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	if normalizer == nil {
		return nil, ErrNormalizerRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}

	pool, err := ants.NewPool(defaultPoolSize)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		ledger:       ledger,
		checkpoints:  checkpoints,
		resolver:     resolver,
		normalizer:   normalizer,
		chunker:      chunker,
		writer:       writer,
		pool:         pool,
		retry:        DefaultRetryPolicy(),
		fetchTimeout: defaultFetchTimeout,
		stageTimeout: defaultStageTimeout,
		cancelled:    make(map[string]bool),
		logger:       slog.Default().With("component", "workflow_engine"),
	}

	for _, opt := range opts {
		if err := opt(engine); err != nil {
			pool.Release()
			return nil, err
		}
	}
	return engine, nil
}

// Submit validates a submission, records it in the ledger and enqueues
// the workflow. Validation failures are rejected synchronously before
// any task record exists; once a task id is returned the outcome is
// always recorded in the ledger.
func (e *Engine) Submit(ctx context.Context, sub *core.Submission) (*core.TaskAccepted, error) {
	if err := core.ValidateSubmission(sub); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}
	e.mu.Unlock()

	task := &core.Task{
		SourceKind: sub.Source,
		Metadata:   sub.Metadata,
	}
	taskId, err := e.ledger.Create(ctx, task)
	if err != nil {
		return nil, err
	}

	checkpoint := &core.WorkflowCheckpoint{
		TaskId:     taskId,
		Stage:      core.StageFetch,
		Submission: *sub,
	}
	if err := e.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		return nil, err
	}

	if err := e.enqueue(checkpoint); err != nil {
		return nil, err
	}

	return &core.TaskAccepted{
		TaskId:      taskId,
		WorkflowId:  task.WorkflowId,
		Status:      task.Status,
		SubmittedAt: task.CreatedAt,
	}, nil
}

// Cancel requests cancellation of a task. The running stage finishes;
// the task fails at the next stage boundary. Cancelling a terminal task
// returns ErrTaskFinished.
func (e *Engine) Cancel(ctx context.Context, taskId string) error {
	task, err := e.ledger.Get(ctx, taskId)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTaskFinished, taskId, task.Status)
	}

	e.mu.Lock()
	e.cancelled[taskId] = true
	e.mu.Unlock()

	e.logger.Info("cancellation requested", "task_id", taskId)
	return nil
}

// Resume re-enqueues every non-terminal task that has a checkpoint.
// Called once on startup; tasks resume from their last completed stage.
// Returns the number of tasks resumed.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	tasks, err := e.ledger.List(ctx, storage.TaskFilter{})
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, task := range tasks {
		if task.Status.Terminal() {
			continue
		}
		checkpoint, err := e.checkpoints.LoadCheckpoint(ctx, task.TaskId)
		if err != nil {
			return resumed, err
		}
		if checkpoint == nil {
			// Accepted but never checkpointed. Nothing to resume from;
			// mark it failed rather than leaving it stuck in queued.
			e.fail(ctx, task.TaskId, task.Status, "no checkpoint to resume from")
			continue
		}
		if err := e.enqueue(checkpoint); err != nil {
			return resumed, err
		}
		resumed++
	}

	if resumed > 0 {
		e.logger.Info("resumed in-flight tasks", "count", resumed)
	}
	return resumed, nil
}

// Wait blocks until all enqueued workflows have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close waits for in-flight workflows and releases the worker pool.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
	e.pool.Release()
}

func (e *Engine) enqueue(checkpoint *core.WorkflowCheckpoint) error {
	e.wg.Add(1)
	err := e.pool.Submit(func() {
		defer e.wg.Done()
		e.run(checkpoint)
	})
	if err != nil {
		e.wg.Done()
		return err
	}
	return nil
}

// run executes the workflow state machine for one task, starting from
// the checkpointed stage.
func (e *Engine) run(checkpoint *core.WorkflowCheckpoint) {
	ctx := context.Background()
	taskId := checkpoint.TaskId
	log := e.logger.With("task_id", taskId)

	task, err := e.ledger.Get(ctx, taskId)
	if err != nil {
		log.Error("task lookup failed, abandoning workflow", "err", err)
		return
	}
	if task.Status.Terminal() {
		// Stale checkpoint for a finished task.
		e.checkpoints.DeleteCheckpoint(ctx, taskId)
		return
	}
	if task.Status == core.TaskQueued {
		if err := e.ledger.UpdateStatus(ctx, taskId, core.TaskProcessing, "", ""); err != nil {
			log.Error("failed to mark task processing", "err", err)
			return
		}
	}

	var documentId string
	for {
		if e.isCancelled(taskId) {
			e.fail(ctx, taskId, core.TaskProcessing, core.ErrCancelled.Error())
			return
		}

		log.Debug("running stage", "stage", checkpoint.Stage.String())
		if err := e.runStage(ctx, checkpoint, &documentId); err != nil {
			log.Warn("stage failed, task failed",
				"stage", checkpoint.Stage.String(), "err", err)
			e.fail(ctx, taskId, core.TaskProcessing, checkpoint.Stage.String()+": "+err.Error())
			return
		}

		if checkpoint.Stage == core.StageWrite {
			break
		}
		checkpoint.Stage++
		checkpoint.Attempt = 0
		if err := e.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
			// The workflow can finish without it; only resume fidelity
			// suffers.
			log.Warn("checkpoint save failed", "stage", checkpoint.Stage.String(), "err", err)
		}
	}

	if err := e.ledger.UpdateStatus(ctx, taskId, core.TaskCompleted, documentId, ""); err != nil {
		log.Error("failed to mark task completed", "err", err)
		return
	}
	e.checkpoints.DeleteCheckpoint(ctx, taskId)
	e.clearCancelled(taskId)
	log.Info("workflow completed", "document_id", documentId)
}

// runStage executes the current stage under the retry policy with a
// per-attempt deadline, storing its output on the checkpoint.
func (e *Engine) runStage(ctx context.Context, checkpoint *core.WorkflowCheckpoint, documentId *string) error {
	timeout := e.stageTimeout
	if checkpoint.Stage == core.StageFetch {
		timeout = e.fetchTimeout
	}

	return e.retry.Execute(ctx, func() error {
		checkpoint.Attempt++
		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		switch checkpoint.Stage {
		case core.StageFetch:
			content, err := e.resolver.Resolve(stageCtx, &checkpoint.Submission)
			if err != nil {
				return err
			}
			checkpoint.Content = content
			return nil

		case core.StageNormalize:
			norm, err := e.normalizer.Normalize(stageCtx, &checkpoint.Submission, checkpoint.Content)
			if err != nil {
				return err
			}
			checkpoint.Normalized = norm
			return nil

		case core.StageEmbed:
			if checkpoint.Normalized == nil {
				return fmt.Errorf("%w: no normalized document at embed stage", core.ErrInvalidPayload)
			}
			chunks, err := e.chunker.ChunkAndEmbed(stageCtx, checkpoint.Normalized.Text)
			if err != nil {
				return err
			}
			checkpoint.Chunks = chunks
			return nil

		case core.StageWrite:
			if checkpoint.Normalized == nil {
				return fmt.Errorf("%w: no normalized document at write stage", core.ErrInvalidPayload)
			}
			docId, err := e.writer.Write(stageCtx, checkpoint.Normalized, checkpoint.Chunks)
			if err != nil {
				return err
			}
			*documentId = docId
			return nil
		}
		return fmt.Errorf("unknown stage %d", checkpoint.Stage)
	})
}

// fail moves a task to the failed terminal state, stepping through
// processing first when the task never left queued.
func (e *Engine) fail(ctx context.Context, taskId string, current core.TaskStatus, reason string) {
	if current == core.TaskQueued {
		if err := e.ledger.UpdateStatus(ctx, taskId, core.TaskProcessing, "", ""); err != nil {
			e.logger.Error("failed to advance task before failing", "task_id", taskId, "err", err)
			return
		}
	}
	if err := e.ledger.UpdateStatus(ctx, taskId, core.TaskFailed, "", reason); err != nil &&
		!errors.Is(err, storage.ErrInvalidTransition) {
		e.logger.Error("failed to mark task failed", "task_id", taskId, "err", err)
	}
	e.clearCancelled(taskId)
}

func (e *Engine) isCancelled(taskId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled[taskId]
}

func (e *Engine) clearCancelled(taskId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cancelled, taskId)
}
