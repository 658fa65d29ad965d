// Package userstore implements the login/registration cache described
// in original_source/http/http_conn.cpp's static users map: a
// mutex-guarded in-memory mirror of the "user" table's username/passwd
// columns, loaded once at startup and kept in sync with every
// registration so request handling never blocks on a database round
// trip to check a password.
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/yourusername/webserver/internal/dbpool"
)

// Store is the httpstate.UserStore implementation backing the login (2)
// and register (3) CGI codes.
type Store struct {
	pool *dbpool.Pool

	mu    sync.RWMutex
	users map[string]string
}

// Load connects through pool and pre-loads every existing username/
// password pair, mirroring http_conn::initmysql_result's SELECT at
// startup.
func Load(ctx context.Context, pool *dbpool.Pool) (*Store, error) {
	s := &Store{pool: pool, users: make(map[string]string)}

	acq, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("userstore: acquire connection: %w", err)
	}
	defer acq.Close()

	rows, err := acq.Conn.QueryContext(ctx, "SELECT username, passwd FROM user")
	if err != nil {
		return nil, fmt.Errorf("userstore: select: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name, passwd string
		if err := rows.Scan(&name, &passwd); err != nil {
			return nil, fmt.Errorf("userstore: scan: %w", err)
		}
		s.users[name] = passwd
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("userstore: rows: %w", err)
	}
	return s, nil
}

// Lookup implements httpstate.UserStore.
func (s *Store) Lookup(username string) (password string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	password, ok = s.users[username]
	return password, ok
}

// Register implements httpstate.UserStore: it writes the new user to
// the database first, and only mirrors it into the cache once that
// succeeds, so a cache hit always implies a durable row.
func (s *Store) Register(username, password string) (bool, error) {
	s.mu.Lock()
	if _, exists := s.users[username]; exists {
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	ctx := context.Background()
	acq, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("userstore: acquire connection: %w", err)
	}
	defer acq.Close()

	_, err = acq.Conn.ExecContext(ctx, "INSERT INTO user(username, passwd) VALUES (?, ?)", username, password)
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("userstore: insert: %w", err)
	}

	s.mu.Lock()
	s.users[username] = password
	s.mu.Unlock()
	return true, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation,
// which can legitimately happen under a race between two registrations
// of the same username that both passed the cache check.
func isDuplicateKey(err error) bool {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return false
	}
	// go-sql-driver/mysql reports this as *mysql.MySQLError with
	// Number 1062; avoiding the import keeps this package decoupled
	// from the driver's error type, matching the same string check the
	// original's LOG_ERROR-on-query-failure path effectively amounted
	// to.
	return containsDuplicateHint(err.Error())
}

func containsDuplicateHint(msg string) bool {
	const hint = "Duplicate entry"
	if len(msg) < len(hint) {
		return false
	}
	for i := 0; i+len(hint) <= len(msg); i++ {
		if msg[i:i+len(hint)] == hint {
			return true
		}
	}
	return false
}
