package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one pending event row.
type Entry struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Type       string
	Payload    json.RawMessage
	CreatedAt  time.Time
}

// Store persists events for reliable post-commit delivery.
type Store interface {
	Insert(ctx context.Context, providerID uuid.UUID, eventType string, payload any) (uuid.UUID, error)
	FetchPending(ctx context.Context, limit int32) ([]Entry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgStore is the Postgres outbox.
type PgStore struct {
	q pgQuerier
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newPgStore(pool)
}

func newPgStore(q pgQuerier) *PgStore {
	return &PgStore{q: q}
}

func (s *PgStore) Insert(ctx context.Context, providerID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	return insertOutbox(ctx, s.q, providerID, eventType, payload)
}

// InsertTx writes an outbox row inside a caller-owned transaction, so the
// event commits or rolls back together with the business write.
func InsertTx(ctx context.Context, tx pgx.Tx, providerID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	return insertOutbox(ctx, tx, providerID, eventType, payload)
}

func insertOutbox(ctx context.Context, q pgQuerier, providerID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	id := uuid.New()
	_, err = q.Exec(ctx, `
		INSERT INTO outbox (id, provider_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`, id, providerID, eventType, data)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox: %w", err)
	}
	return id, nil
}

func (s *PgStore) FetchPending(ctx context.Context, limit int32) ([]Entry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, provider_id, type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.ProviderID, &e.Type, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		e.Payload = append([]byte(nil), payload...)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PgStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := s.q.Exec(ctx, `
		UPDATE outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark outbox delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MemoryStore backs the in-memory storage driver and tests.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]Entry
	delivered map[uuid.UUID]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:   make(map[uuid.UUID]Entry),
		delivered: make(map[uuid.UUID]bool),
	}
}

func (s *MemoryStore) Insert(_ context.Context, providerID uuid.UUID, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal outbox payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.entries[id] = Entry{
		ID:         id,
		ProviderID: providerID,
		Type:       eventType,
		Payload:    data,
		CreatedAt:  time.Now(),
	}
	return id, nil
}

func (s *MemoryStore) FetchPending(_ context.Context, limit int32) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []Entry
	for id, e := range s.entries {
		if !s.delivered[id] {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && int32(len(pending)) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *MemoryStore) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok || s.delivered[id] {
		return false, nil
	}
	s.delivered[id] = true
	return true, nil
}
