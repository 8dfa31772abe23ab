package flow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Transfer routes one record to one relationship.
type Transfer struct {
	Relationship Relationship
	Record       *Record
}

// Sink delivers the transfers of one invocation. Implementations must deliver
// all of them or none.
type Sink interface {
	Deliver(ctx context.Context, input *Record, transfers []Transfer) error
}

// Session stages the records created during one invocation. Nothing leaves
// the session until Commit; Rollback discards everything staged so far.
type Session struct {
	input     *Record
	created   map[string]*Record
	transfers []Transfer
	newID     func() string
}

// NewSession opens a session for one inbound record.
func NewSession(input *Record) *Session {
	return &Session{
		input:   input,
		created: make(map[string]*Record),
		newID:   func() string { return uuid.New().String() },
	}
}

// Input returns the record the session was opened for.
func (s *Session) Input() *Record {
	return s.input
}

// Create returns a fresh record whose lineage points at parent.
// It carries no attributes of the parent.
func (s *Session) Create(parent *Record) *Record {
	rec := &Record{
		ID:         s.newID(),
		ParentID:   parent.ID,
		Attributes: make(map[string]string),
	}
	s.created[rec.ID] = rec
	return rec
}

// PutAttribute sets an attribute on a record created by this session.
func (s *Session) PutAttribute(rec *Record, name, value string) error {
	if _, ok := s.created[rec.ID]; !ok {
		return fmt.Errorf("record %s was not created by this session", rec.ID)
	}
	rec.Attributes[name] = value
	return nil
}

// Write replaces the content of a record created by this session.
func (s *Session) Write(rec *Record, content []byte) error {
	if _, ok := s.created[rec.ID]; !ok {
		return fmt.Errorf("record %s was not created by this session", rec.ID)
	}
	rec.Content = content
	return nil
}

// Transfer stages rec for delivery to rel.
func (s *Session) Transfer(rec *Record, rel Relationship) {
	s.transfers = append(s.transfers, Transfer{Relationship: rel, Record: rec})
}

// Rollback drops every created record and staged transfer.
func (s *Session) Rollback() {
	s.created = make(map[string]*Record)
	s.transfers = nil
}

// Transfers returns the staged transfers in staging order.
func (s *Session) Transfers() []Transfer {
	out := make([]Transfer, len(s.transfers))
	copy(out, s.transfers)
	return out
}

// Commit hands the staged transfers to sink in one delivery.
func (s *Session) Commit(ctx context.Context, sink Sink) error {
	return sink.Deliver(ctx, s.input, s.Transfers())
}

// MemorySink keeps delivered records in memory, grouped by relationship.
type MemorySink struct {
	mu        sync.Mutex
	delivered map[Relationship][]*Record
	consumed  []string
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{delivered: make(map[Relationship][]*Record)}
}

// Deliver implements Sink.
func (m *MemorySink) Deliver(_ context.Context, input *Record, transfers []Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range transfers {
		m.delivered[t.Relationship] = append(m.delivered[t.Relationship], t.Record)
	}
	if input != nil {
		m.consumed = append(m.consumed, input.ID)
	}
	return nil
}

// Records returns the records delivered to rel.
func (m *MemorySink) Records(rel Relationship) []*Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Record, len(m.delivered[rel]))
	copy(out, m.delivered[rel])
	return out
}

// Consumed returns the IDs of inputs whose invocation was committed.
func (m *MemorySink) Consumed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.consumed...)
}
