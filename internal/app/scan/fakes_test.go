package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/capscanio/capscan/pkg/domain/capability"
	"github.com/capscanio/capscan/pkg/domain/scansession"
	"github.com/capscanio/capscan/pkg/domain/shared"
)

// memRepository is an in-memory session store with wholesale-overwrite
// semantics: records are cloned on both save and load so callers never
// share memory with the store, matching the persistence contract.
type memRepository struct {
	mu       sync.Mutex
	sessions map[string][]byte
	saveErrs int // fail this many Save calls, then succeed
	saves    int
	touches  int
}

func newMemRepository() *memRepository {
	return &memRepository{sessions: make(map[string][]byte)}
}

func (r *memRepository) Create(_ context.Context, session *scansession.ScanSession) error {
	return r.put(session)
}

func (r *memRepository) Save(_ context.Context, session *scansession.ScanSession) error {
	r.mu.Lock()
	r.saves++
	if r.saveErrs > 0 {
		r.saveErrs--
		r.mu.Unlock()
		return fmt.Errorf("store unavailable")
	}
	r.mu.Unlock()
	return r.put(session)
}

func (r *memRepository) put(session *scansession.ScanSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID.String()] = raw
	return nil
}

// Touch rewrites only the stored record's activity timestamp, from the
// stored state rather than any caller-held copy.
func (r *memRepository) Touch(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touches++
	raw, ok := r.sessions[id]
	if !ok {
		return shared.NewDomainError("SESSION_NOT_FOUND", "session not found", shared.ErrNotFound)
	}
	var session scansession.ScanSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return err
	}
	session.LastActivity = time.Now().UTC()
	updated, err := json.Marshal(&session)
	if err != nil {
		return err
	}
	r.sessions[id] = updated
	return nil
}

func (r *memRepository) Get(_ context.Context, id string) (*scansession.ScanSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.sessions[id]
	if !ok {
		return nil, shared.NewDomainError("SESSION_NOT_FOUND", "session not found", shared.ErrNotFound)
	}
	var session scansession.ScanSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *memRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return shared.NewDomainError("SESSION_NOT_FOUND", "session not found", shared.ErrNotFound)
	}
	delete(r.sessions, id)
	return nil
}

func (r *memRepository) List(ctx context.Context) ([]*scansession.ScanSession, error) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	out := make([]*scansession.ScanSession, 0, len(ids))
	for _, id := range ids {
		session, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}

func (r *memRepository) ListExpired(ctx context.Context, now time.Time, grace, idleTTL time.Duration) ([]*scansession.ScanSession, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*scansession.ScanSession
	for _, session := range all {
		if session.ExpiresAt(grace, idleTTL).Before(now) {
			out = append(out, session)
		}
	}
	return out, nil
}

// fakeGuard tracks guard and stop state in memory. stopAfter requests a
// stop once that many stop checks have happened, and refreshFailAfter
// fails lease refreshes once that many have happened (0 means never).
type fakeGuard struct {
	mu               sync.Mutex
	held             map[string]bool
	stop             map[string]bool
	busy             bool
	stopAfter        int
	checks           int
	refreshFailAfter int
	refreshes        int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: make(map[string]bool), stop: make(map[string]bool)}
}

func (g *fakeGuard) Acquire(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy || g.held[id] {
		return false, nil
	}
	g.held[id] = true
	return true, nil
}

func (g *fakeGuard) Refresh(_ context.Context, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refreshes++
	if g.refreshFailAfter > 0 && g.refreshes > g.refreshFailAfter {
		return fmt.Errorf("lease lost")
	}
	return nil
}

func (g *fakeGuard) Release(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, id)
	return nil
}

func (g *fakeGuard) RequestStop(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stop[id] = true
	return nil
}

func (g *fakeGuard) StopRequested(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	if g.stopAfter > 0 && g.checks > g.stopAfter {
		return true, nil
	}
	return g.stop[id], nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (e *fakeEnqueuer) EnqueueScanRun(_ context.Context, sessionID string) error {
	if e.err != nil {
		return e.err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueued = append(e.enqueued, sessionID)
	return nil
}

type fakeLister struct {
	items []string
	err   error
	calls int
}

func (l *fakeLister) List(_ context.Context) ([]string, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.items, nil
}

// fakeInferrer classifies every item identically unless the item is in
// failOn, and records the order items were seen in.
type fakeInferrer struct {
	mu     sync.Mutex
	failOn map[string]error
	seen   []string
}

func (f *fakeInferrer) Infer(_ context.Context, itemName string) (*capability.Record, error) {
	f.mu.Lock()
	f.seen = append(f.seen, itemName)
	f.mu.Unlock()
	if err, ok := f.failOn[itemName]; ok {
		return nil, err
	}
	record, err := capability.NewRecord(itemName, []string{"test"}, "a test capability", capability.ComplexityBasic, 0.9)
	if err != nil {
		return nil, err
	}
	record.SetProvenance("fake", "fake-1")
	return record, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	records map[string]*capability.Record
	failOn  map[string]error
	writes  int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]*capability.Record)}
}

func (i *fakeIndex) Upsert(_ context.Context, record *capability.Record) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.writes++
	if err, ok := i.failOn[record.Name]; ok {
		return err
	}
	i.records[record.ID.String()] = record
	return nil
}
