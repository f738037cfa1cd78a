package domain

import "context"

// Result reports the outcome of one delivery. Accepted is false only for a
// duplicate external event id, in which case Record is the existing row.
type Result struct {
	Accepted bool
	Record   *ProcessorEvent
}

type Service interface {
	// Ingest persists and dispatches one raw processor event. Duplicate,
	// stale and unrecognized deliveries are absorbed (never an error);
	// reference-integrity and invariant violations propagate so the
	// delivery layer can signal the processor to redeliver.
	Ingest(ctx context.Context, payload []byte) (Result, error)
}
