package userstore

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/yourusername/webserver/internal/dbpool"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(false))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}

	rows := sqlmock.NewRows([]string{"username", "passwd"}).
		AddRow("alice", "s3cret")
	mock.ExpectQuery("SELECT username, passwd FROM user").WillReturnRows(rows)

	pool, err := dbpool.OpenWithDB(context.Background(), db, 1)
	if err != nil {
		t.Fatalf("dbpool.OpenWithDB: %v", err)
	}

	store, err := Load(context.Background(), pool)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations after Load: %v", err)
	}
	return store, mock, func() { pool.Close() }
}

func TestLoadPopulatesCacheFromDatabase(t *testing.T) {
	store, _, cleanup := newTestStore(t)
	defer cleanup()

	pass, ok := store.Lookup("alice")
	if !ok || pass != "s3cret" {
		t.Fatalf("Lookup(alice) = %q, %v, want s3cret, true", pass, ok)
	}
	if _, ok := store.Lookup("bob"); ok {
		t.Fatalf("Lookup(bob) should miss, cache was only seeded with alice")
	}
}

func TestRegisterNewUserInsertsAndCaches(t *testing.T) {
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO user").
		WithArgs("carol", "hunter2").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ok, err := store.Register("carol", "hunter2")
	if err != nil || !ok {
		t.Fatalf("Register(carol) = %v, %v, want true, nil", ok, err)
	}
	pass, found := store.Lookup("carol")
	if !found || pass != "hunter2" {
		t.Fatalf("Lookup(carol) after register = %q, %v", pass, found)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRegisterExistingUsernameIsRejectedWithoutTouchingDB(t *testing.T) {
	store, mock, cleanup := newTestStore(t)
	defer cleanup()

	ok, err := store.Register("alice", "whatever")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if ok {
		t.Fatalf("Register(alice) should fail, alice already registered")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestContainsDuplicateHint(t *testing.T) {
	if !containsDuplicateHint("Error 1062: Duplicate entry 'alice' for key 'username'") {
		t.Fatalf("expected duplicate hint to be detected")
	}
	if containsDuplicateHint("connection refused") {
		t.Fatalf("unrelated error should not match")
	}
}
