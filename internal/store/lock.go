package store

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLockHeld reports that another full-sync run already holds the lock.
// Callers should back off and retry later, not treat it as a failure.
var ErrLockHeld = errors.New("sync lock already held")

// RunLock is a session-scoped Postgres advisory lock guarding overlapping
// full-table sync runs. The session is held until Unlock.
type RunLock struct {
	conn *pgxpool.Conn
	k1   int32
	k2   int32
}

// lockKeys derives the two-int32 advisory lock key deterministically from the
// logical job name and target partition, so unrelated jobs never collide in
// the numeric keyspace.
func lockKeys(jobName, partition string) (int32, int32) {
	h := fnv.New64a()
	h.Write([]byte(jobName))
	h.Write([]byte{0})
	h.Write([]byte(partition))
	sum := h.Sum64()
	return int32(sum >> 32), int32(sum & 0xffffffff)
}

// AcquireRunLock takes the advisory lock for a job/partition pair without
// blocking. Returns ErrLockHeld when another session holds it.
func (s *Store) AcquireRunLock(ctx context.Context, jobName, partition string) (*RunLock, error) {
	k1, k2 := lockKeys(jobName, partition)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock session: %w", err)
	}

	var locked bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1, $2)", k1, k2).Scan(&locked); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, ErrLockHeld
	}

	return &RunLock{conn: conn, k1: k1, k2: k2}, nil
}

// Unlock releases the advisory lock and its session.
func (l *RunLock) Unlock(ctx context.Context) {
	if l == nil || l.conn == nil {
		return
	}
	// Best effort: releasing the session drops the lock even if the
	// statement fails.
	_, _ = l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1, $2)", l.k1, l.k2)
	l.conn.Release()
	l.conn = nil
}
