package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/geo-attendance-api/internal/models"
	"github.com/noah-isme/geo-attendance-api/internal/repository"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	err      error
}

func newMemSessionStore(sessions ...models.Session) *memSessionStore {
	store := &memSessionStore{sessions: make(map[string]models.Session)}
	for _, s := range sessions {
		store.sessions[s.ID] = s
	}
	return store
}

func (m *memSessionStore) Create(_ context.Context, session *models.Session) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.ID == "" {
		session.ID = "session-new"
	}
	m.sessions[session.ID] = *session
	return nil
}

func (m *memSessionStore) FindByID(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func (m *memSessionStore) ListByCourse(_ context.Context, courseID string) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Session{}
	for _, s := range m.sessions {
		if s.CourseID != nil && *s.CourseID == courseID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessionStore) RotateToken(_ context.Context, id, token string, expiresAt, updatedAt time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.Token = &token
	s.TokenExpiresAt = &expiresAt
	s.Status = models.SessionStatusOngoing
	s.UpdatedAt = updatedAt
	m.sessions[id] = s
	return &s, nil
}

func (m *memSessionStore) Update(_ context.Context, session *models.Session, status *models.SessionStatus) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.sessions[session.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	next := *session
	next.Status = current.Status
	next.Token = current.Token
	next.TokenExpiresAt = current.TokenExpiresAt
	if status != nil {
		next.Status = *status
	}
	m.sessions[session.ID] = next
	return &next, nil
}

func (m *memSessionStore) Close(_ context.Context, id string, updatedAt time.Time) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	s.Status = models.SessionStatusClosed
	s.Token = nil
	s.TokenExpiresAt = nil
	s.UpdatedAt = updatedAt
	m.sessions[id] = s
	return &s, nil
}

func (m *memSessionStore) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.sessions, id)
	return nil
}

// memLedger enforces the (session, student) uniqueness under a mutex, the way
// the unique constraint does in Postgres.
type memLedger struct {
	mu        sync.Mutex
	records   map[string]models.AttendanceRecord
	insertErr error
	purgeErr  error
	inserts   int
}

func newMemLedger(records ...models.AttendanceRecord) *memLedger {
	l := &memLedger{records: make(map[string]models.AttendanceRecord)}
	for _, r := range records {
		l.records[r.SessionID+"/"+r.StudentID] = r
	}
	return l
}

func (l *memLedger) Insert(_ context.Context, record *models.AttendanceRecord) error {
	if l.insertErr != nil {
		return l.insertErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key := record.SessionID + "/" + record.StudentID
	if _, ok := l.records[key]; ok {
		return repository.ErrConflict
	}
	l.inserts++
	if record.ID == "" {
		record.ID = "record-" + record.StudentID
	}
	l.records[key] = *record
	return nil
}

func (l *memLedger) FindBySessionAndStudent(_ context.Context, sessionID, studentID string) (*models.AttendanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[sessionID+"/"+studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (l *memLedger) UpsertManual(_ context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := record.SessionID + "/" + record.StudentID
	if existing, ok := l.records[key]; ok {
		existing.Status = record.Status
		existing.Location = record.Location
		l.records[key] = existing
		return &existing, nil
	}
	if record.ID == "" {
		record.ID = "record-" + record.StudentID
	}
	l.records[key] = *record
	stored := *record
	return &stored, nil
}

func (l *memLedger) DeleteForStudent(_ context.Context, sessionID, studentID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := sessionID + "/" + studentID
	_, ok := l.records[key]
	delete(l.records, key)
	return ok, nil
}

func (l *memLedger) DeleteAllForSession(_ context.Context, _ sqlx.ExtContext, sessionID string) (int64, error) {
	if l.purgeErr != nil {
		return 0, l.purgeErr
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for key, r := range l.records {
		if r.SessionID == sessionID {
			delete(l.records, key)
			n++
		}
	}
	return n, nil
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// txStub runs fn directly and reports whether it completed.
type txStub struct {
	committed bool
}

func (t *txStub) WithinTx(ctx context.Context, fn func(exec sqlx.ExtContext) error) error {
	if err := fn(nil); err != nil {
		return err
	}
	t.committed = true
	return nil
}

func ptr[T any](v T) *T { return &v }
