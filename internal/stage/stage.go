/**
 * PDF text extraction stage
 *
 * One invocation per inbound record:
 * validate content type -> resolve properties -> decode -> resolve page range
 * -> extract -> emit one derived record per extracted tuple.
 *
 * Emission is all-or-nothing. Any failure rolls the session back and routes
 * the untouched input to the failure relationship.
 */

package stage

import (
	"fmt"
	"time"
	"unicode/utf8"

	apperrors "github.com/adverant/nexus/pdfextract-worker/internal/errors"
	"github.com/adverant/nexus/pdfextract-worker/internal/extract"
	"github.com/adverant/nexus/pdfextract-worker/internal/flow"
	"github.com/adverant/nexus/pdfextract-worker/internal/logging"
)

// PDFContentType is the only content type the stage accepts.
const PDFContentType = "application/pdf"

// decode opens record content; replaced in tests.
var decode = extract.Decode

// Status is the terminal state of one invocation.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Outcome summarizes one invocation for the host.
type Outcome struct {
	RecordID  string
	Status    Status
	Operation extract.Operation
	Outputs   []*flow.Record
	Err       error
	Duration  time.Duration
}

// Stage extracts text from PDF records. It holds only immutable
// configuration, so one Stage serves concurrent invocations.
type Stage struct {
	properties []flow.Property
	logger     *logging.Logger
}

// New creates a stage for the given properties, in declaration order.
func New(properties []flow.Property, logger *logging.Logger) *Stage {
	if logger == nil {
		logger = logging.NewLogger("stage")
	}
	props := make([]flow.Property, len(properties))
	copy(props, properties)
	return &Stage{properties: props, logger: logger}
}

// Validate resolves the properties once so a host can reject a bad
// configuration at startup. Process resolves them again per invocation.
func (s *Stage) Validate() error {
	_, err := extract.ResolveOptions(s.properties)
	return err
}

// Process runs one invocation against the session's input record. The
// session ends up holding either every derived record on success, or only the
// input on failure; committing it is the host's job.
func (s *Stage) Process(session *flow.Session) Outcome {
	start := time.Now()
	input := session.Input()

	op, outputs, err := s.run(session, input)
	outcome := Outcome{
		RecordID:  input.ID,
		Operation: op,
		Duration:  time.Since(start),
	}

	if err != nil {
		s.fail(session, &outcome, err)
		return outcome
	}

	outcome.Status = StatusSucceeded
	outcome.Outputs = outputs
	s.logger.Info("Record extracted",
		"record", input.ID,
		"operation", op,
		"outputs", len(outputs),
		"duration", outcome.Duration,
	)
	return outcome
}

// Reject routes the session's input to failure without running the stage,
// for records the host refuses before extraction.
func (s *Stage) Reject(session *flow.Session, err error) Outcome {
	outcome := Outcome{RecordID: session.Input().ID}
	s.fail(session, &outcome, err)
	return outcome
}

// fail discards everything staged, routes the input to failure and logs the
// cause once.
func (s *Stage) fail(session *flow.Session, outcome *Outcome, err error) {
	input := session.Input()
	session.Rollback()
	session.Transfer(input, flow.RelFailure)

	outcome.Status = StatusFailed
	outcome.Err = err
	s.logger.Error("Routing record to failure",
		"record", input.ID,
		"operation", outcome.Operation,
		"code", apperrors.CodeOf(err),
		"error", err,
	)
}

func (s *Stage) run(session *flow.Session, input *flow.Record) (extract.Operation, []*flow.Record, error) {
	if ct := input.Attribute(flow.AttrContentType); ct != PDFContentType {
		return "", nil, apperrors.NewInvalidInputError(ct, PDFContentType).WithRecord(input.ID)
	}

	opts, err := extract.ResolveOptions(s.properties)
	if err != nil {
		return "", nil, err
	}
	op := opts.Operation

	doc, err := decode(input.Content, op)
	if err != nil {
		return op, nil, apperrors.NewDecodeError(err).WithRecord(input.ID)
	}
	defer func() {
		if cerr := doc.Close(); cerr != nil {
			s.logger.Warn("Failed to release document", "record", input.ID, "error", cerr)
		}
	}()

	pr := extract.ResolvePageRange(opts.StartPage, opts.EndOffset, doc.NumPage())
	s.logger.Debug("Resolved page range",
		"record", input.ID,
		"range", pr.String(),
		"pages", doc.NumPage(),
		"regions", len(opts.Regions),
	)

	results, err := extract.Extract(doc, op, pr, opts.Regions)
	if err != nil {
		return op, nil, apperrors.NewExtractionError(op.String(), err).WithRecord(input.ID)
	}

	outputs := make([]*flow.Record, 0, len(results))
	for _, res := range results {
		rec, err := emit(session, input, res)
		if err != nil {
			return op, nil, apperrors.NewEmissionError(err).WithRecord(input.ID)
		}
		outputs = append(outputs, rec)
	}

	return op, outputs, nil
}

// emit creates one derived record for res and stages it for success.
func emit(session *flow.Session, parent *flow.Record, res extract.Output) (*flow.Record, error) {
	if !utf8.ValidString(res.Text) {
		return nil, fmt.Errorf("extracted text is not valid UTF-8")
	}

	rec := session.Create(parent)
	if err := session.PutAttribute(rec, flow.AttrContentType, res.MimeType); err != nil {
		return nil, err
	}
	if res.RegionName != "" {
		if err := session.PutAttribute(rec, flow.AttrRegion, res.RegionName); err != nil {
			return nil, err
		}
	}
	if err := session.Write(rec, []byte(res.Text)); err != nil {
		return nil, err
	}

	session.Transfer(rec, flow.RelSuccess)
	return rec, nil
}
