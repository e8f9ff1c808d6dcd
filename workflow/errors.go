package workflow

import "errors"

var (
	// ErrLedgerRequired is returned when a task ledger is not provided.
	ErrLedgerRequired = errors.New("task ledger required")

	// ErrCheckpointStoreRequired is returned when a checkpoint store is not provided.
	ErrCheckpointStoreRequired = errors.New("checkpoint store required")

	// ErrResolverRequired is returned when a content resolver is not provided.
	ErrResolverRequired = errors.New("content resolver required")

	// ErrNormalizerRequired is returned when a normalizer is not provided.
	ErrNormalizerRequired = errors.New("normalizer required")

	// ErrChunkerRequired is returned when a chunk/embed stage is not provided.
	ErrChunkerRequired = errors.New("chunk/embed stage required")

	// ErrWriterRequired is returned when a multi-store writer is not provided.
	ErrWriterRequired = errors.New("multi-store writer required")

	// ErrInvalidRetryPolicy is returned for a policy without attempts.
	ErrInvalidRetryPolicy = errors.New("retry policy must allow at least one attempt")

	// ErrTaskFinished is returned when cancelling a task that already
	// reached a terminal state.
	ErrTaskFinished = errors.New("task already finished")

	// ErrEngineClosed is returned when submitting to a closed engine.
	ErrEngineClosed = errors.New("engine closed")
)
