// Package store holds the in-memory record snapshot that analytics and the
// HTTP API read from. A snapshot is replaced wholesale on each refresh and is
// never mutated after it is installed.
package store

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/marine-data-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrStaleRefresh is returned by Commit when a newer refresh has already
// installed its snapshot.
var ErrStaleRefresh = errors.New("refresh superseded by a newer generation")

// Snapshot is an immutable set of normalized records.
type Snapshot struct {
	ID          uuid.UUID       `json:"id"`
	Generation  uint64          `json:"generation"`
	Records     []domain.Record `json:"records"`
	RefreshedAt time.Time       `json:"refreshed_at"`
}

// Empty reports whether no refresh has been committed yet.
func (s *Snapshot) Empty() bool { return s.Generation == 0 }

// Ticket identifies one refresh attempt. Tickets are ordered by the time
// Begin handed them out.
type Ticket struct {
	generation uint64
}

// Generation returns the generation the ticket would commit as.
func (t Ticket) Generation() uint64 { return t.generation }

// Store publishes snapshots to concurrent readers.
type Store struct {
	clock   clockwork.Clock
	current atomic.Pointer[Snapshot]
	next    atomic.Uint64
}

// New creates a Store holding an empty generation-zero snapshot.
func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Store{clock: clock}
	s.current.Store(&Snapshot{Records: []domain.Record{}})
	return s
}

// Current returns the installed snapshot. It is never nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Begin reserves the next generation for a refresh.
func (s *Store) Begin() Ticket {
	return Ticket{generation: s.next.Add(1)}
}

// Commit installs records as the snapshot for ticket. If a refresh that began
// later has already committed, the records are discarded and ErrStaleRefresh
// is returned.
func (s *Store) Commit(t Ticket, records []domain.Record) (*Snapshot, error) {
	if records == nil {
		records = []domain.Record{}
	}
	snap := &Snapshot{
		ID:          uuid.New(),
		Generation:  t.generation,
		Records:     records,
		RefreshedAt: s.clock.Now().UTC(),
	}

	for {
		cur := s.current.Load()
		if cur.Generation >= t.generation {
			return nil, ErrStaleRefresh
		}
		if s.current.CompareAndSwap(cur, snap) {
			return snap, nil
		}
	}
}
