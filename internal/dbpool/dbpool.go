// Package dbpool implements the semaphore-gated connection pool
// described in original_source/sql_conn_pool/sql_connection_pool.h: a
// fixed number of live connections handed out FIFO and returned on
// release, with acquisition blocking once the pool is exhausted.
//
// Unlike the original, which hand-rolls the pool around raw MYSQL*
// pointers and a custom semaphore, this package drives a single
// *sql.DB (opened against github.com/go-sql-driver/mysql) and borrows
// its own *sql.Conn handles out of DB.Conn, capping concurrent
// checkouts with a syncutil.Semaphore rather than leaning on
// database/sql's own pool limits, so Capacity here means the same
// thing m_MaxConn did in the original: exactly that many requests may
// hold a connection at once.
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/yourusername/webserver/internal/metrics"
	"github.com/yourusername/webserver/internal/syncutil"
)

// Config names the fields the server actually needs, shaped after
// nabbar-golib's gorm database config (Driver/DSN/pool sizing) but
// trimmed to this server's scope: one MySQL DSN and a capacity.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	Capacity int

	ConnMaxLifetime time.Duration
}

func (c Config) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Pool is a fixed-capacity FIFO of *sql.Conn, gated by a counting
// semaphore sized to Capacity.
type Pool struct {
	db  *sql.DB
	sem *syncutil.Semaphore

	mu    syncutil.Mutex
	conns []*sql.Conn
}

// Open connects to MySQL and pre-warms the pool with Capacity
// connections, mirroring connection_pool::init's eager-fill behavior.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.Capacity <= 0 {
		return nil, syncutil.ErrResourceInit
	}
	db, err := sql.Open("mysql", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("dbpool: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.Capacity)
	db.SetMaxIdleConns(cfg.Capacity)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return OpenWithDB(ctx, db, cfg.Capacity)
}

// OpenWithDB builds a Pool around an already-opened *sql.DB, pre-warming
// it with capacity connections. Production code reaches this through
// Open; tests use it directly to drive the pool against a sqlmock
// database without a real DSN.
func OpenWithDB(ctx context.Context, db *sql.DB, capacity int) (*Pool, error) {
	if capacity <= 0 {
		return nil, syncutil.ErrResourceInit
	}
	sem, err := syncutil.NewSemaphore(capacity)
	if err != nil {
		return nil, err
	}
	p := &Pool{db: db, sem: sem}

	for i := 0; i < capacity; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("dbpool: pre-warm connection %d: %w", i, err)
		}
		p.conns = append(p.conns, conn)
	}
	return p, nil
}

// Acquired is a scoped checkout from the pool; Close returns the
// connection to the pool exactly once, the Go rendering of the
// original's connectionRAII destructor.
type Acquired struct {
	Conn *sql.Conn
	pool *Pool
	done bool
}

// Close releases the connection back to the pool. Safe to call more
// than once; only the first call has effect.
func (a *Acquired) Close() error {
	if a == nil || a.done {
		return nil
	}
	a.done = true
	a.pool.release(a.Conn)
	return nil
}

// Acquire blocks until a connection is available or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (*Acquired, error) {
	waited := make(chan struct{})
	go func() {
		p.sem.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		go func() {
			<-waited
			p.sem.Post()
		}()
		return nil, ctx.Err()
	}

	p.mu.Lock()
	n := len(p.conns)
	var conn *sql.Conn
	if n > 0 {
		conn = p.conns[0]
		p.conns = p.conns[1:]
	}
	p.mu.Unlock()

	if conn == nil {
		// Pre-warmed list exhausted by a prior close; open fresh rather
		// than block indefinitely, same net effect as the original
		// relying on MaxOpenConns to cap real connections.
		var err error
		conn, err = p.db.Conn(ctx)
		if err != nil {
			p.sem.Post()
			return nil, fmt.Errorf("dbpool: acquire: %w", err)
		}
	}
	metrics.DBPoolInUse.Inc()
	return &Acquired{Conn: conn, pool: p}, nil
}

func (p *Pool) release(conn *sql.Conn) {
	p.mu.With(func() {
		p.conns = append(p.conns, conn)
	})
	p.sem.Post()
	metrics.DBPoolInUse.Dec()
}

// Free reports the number of connections currently sitting idle in the
// pool, the Go analogue of GetFreeConn.
func (p *Pool) Free() int {
	var n int
	p.mu.With(func() { n = len(p.conns) })
	return n
}

// Close destroys every pooled connection and the underlying *sql.DB,
// mirroring DestroyPool.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = nil
	p.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return p.db.Close()
}
