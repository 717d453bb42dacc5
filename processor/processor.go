package processor

import (
	"context"
	"fmt"

	"github.com/jbelanger/exitbook/internal/xerrors"
	"github.com/jbelanger/exitbook/internal/xlog"
	"github.com/jbelanger/exitbook/txn"
)

// RawRecord is one persisted raw payload awaiting transformation, mirroring
// the shape rawstore.Record exposes to the processing stage.
type RawRecord struct {
	AccountID    string
	EventID      string
	ProviderName string
	RawPayload   []byte
}

// Processor turns one RawRecord into zero or more Universal Transactions.
// Source-specific implementations (EVM, NEAR, exchange) satisfy this by
// decoding their own Envelope.Kind and running it through fund-flow
// classification, fee attribution, and operation classification.
type Processor interface {
	// Kind reports which PayloadKind this processor decodes, used to route
	// a batch's mixed records to the right processor.
	Kind() PayloadKind
	Process(ctx context.Context, rec RawRecord) ([]txn.Transaction, error)
}

// Registry dispatches a raw record to the processor registered for its
// envelope kind.
type Registry struct {
	byKind map[PayloadKind]Processor
}

func NewRegistry(procs ...Processor) *Registry {
	r := &Registry{byKind: make(map[PayloadKind]Processor, len(procs))}
	for _, p := range procs {
		r.byKind[p.Kind()] = p
	}
	return r
}

// BatchResult is the outcome of processing one batch in strict mode.
type BatchResult struct {
	Transactions []txn.Transaction
	// FailedCount is non-zero only on a failed strict-mode run, for
	// logging; the caller gets the full error via Pipeline.Run's return.
	FailedCount int
}

// Pipeline runs a batch of raw records through the registry in strict
// mode: "Strict mode", any single record failure aborts the
// ENTIRE batch (no partial commit) and surfaces every failing record's ID
// in the resulting error, not just the first.
type Pipeline struct {
	log *xlog.Logger
	reg *Registry
}

func NewPipeline(reg *Registry) *Pipeline {
	return &Pipeline{log: xlog.Default().With("component", "processor.pipeline"), reg: reg}
}

// Run processes every record in recs. On the first encountered error it
// continues scanning the remainder (so it can report every bad record in
// one pass) but still returns a non-nil error and an empty result —
// nothing from a strict-mode-failed batch is considered committed.
func (p *Pipeline) Run(ctx context.Context, recs []RawRecord) (BatchResult, error) {
	var (
		out        []txn.Transaction
		failedIDs  []string
		firstErr   error
	)

	for _, rec := range recs {
		env, err := ParseEnvelope(rec.RawPayload)
		if err != nil {
			failedIDs = append(failedIDs, rec.EventID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		proc, ok := p.reg.byKind[env.Kind]
		if !ok {
			failedIDs = append(failedIDs, rec.EventID)
			if firstErr == nil {
				firstErr = fmt.Errorf("no processor registered for kind %q", env.Kind)
			}
			continue
		}

		txns, err := proc.Process(ctx, rec)
		if err != nil {
			failedIDs = append(failedIDs, rec.EventID)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, txns...)
	}

	if len(failedIDs) > 0 {
		p.log.Error("batch rejected in strict mode", "failed_count", len(failedIDs), "total", len(recs))
		batchErr := xerrors.New(xerrors.KindDataIntegrity, "processor.pipeline.Run", firstErr)
		batchErr.Examples = failedIDs // every failing ID, not capped like WithExamples
		return BatchResult{FailedCount: len(failedIDs)}, batchErr
	}

	return BatchResult{Transactions: out}, nil
}
