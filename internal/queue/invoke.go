package queue

import (
	"context"
	"time"

	apperrors "github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
	"github.com/adverant/nexus/pdfextract-worker/internal/stage"
)

// LineageRecorder persists the outcome of a committed invocation.
type LineageRecorder interface {
	RecordInvocation(ctx context.Context, outcome stage.Outcome, transfers []flow.Transfer) error
}

// invocation is the result of running one record through the stage.
type invocation struct {
	outcome   stage.Outcome
	transfers []flow.Transfer
}

// invoke runs rec through st, or routes it straight to failure when its
// content exceeds maxSize (0 disables the limit). Nothing is delivered here.
func invoke(st *stage.Stage, rec *flow.Record, maxSize int64) invocation {
	session := flow.NewSession(rec)

	if size := int64(len(rec.Content)); maxSize > 0 && size > maxSize {
		outcome := st.Reject(session, apperrors.NewRecordTooLargeError(rec.ID, size, maxSize))
		return invocation{outcome: outcome, transfers: session.Transfers()}
	}

	outcome := st.Process(session)
	return invocation{outcome: outcome, transfers: session.Transfers()}
}

// deliver commits inv through sink and then records lineage. Lineage errors
// are logged and never change routing.
func deliver(ctx context.Context, sink flow.Sink, lineage LineageRecorder, input *flow.Record, inv invocation) error {
	if err := sink.Deliver(ctx, input, inv.transfers); err != nil {
		return err
	}

	if lineage != nil {
		lctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := lineage.RecordInvocation(lctx, inv.outcome, inv.transfers); err != nil {
			logf(input.ID, "Warning: failed to record lineage: %v", err)
		}
	}

	return nil
}
