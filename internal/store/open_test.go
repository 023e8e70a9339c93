package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MarkoPoloResearchLab/srquick/pkg/session"
)

func TestResolveDriver(test *testing.T) {
	test.Parallel()
	dir := test.TempDir()
	testCases := []struct {
		name           string
		dsn            string
		expectedDriver string
		expectedPath   string
	}{
		{name: "postgres", dsn: "postgres://user@localhost/db", expectedDriver: DriverPostgres},
		{name: "postgresql", dsn: "postgresql://user@localhost/db", expectedDriver: DriverPostgres},
		{name: "sqlite absolute", dsn: "sqlite://" + filepath.Join(dir, "a", "state.db"), expectedDriver: DriverSQLite, expectedPath: filepath.Join(dir, "a", "state.db")},
		{name: "bare absolute path", dsn: filepath.Join(dir, "b.db"), expectedDriver: DriverSQLite, expectedPath: filepath.Join(dir, "b.db")},
		{name: "memory", dsn: ":memory:", expectedDriver: DriverSQLite, expectedPath: ":memory:"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			driver, path, err := resolveDriver(testCase.dsn)
			if err != nil {
				test.Fatalf("resolve failed: %v", err)
			}
			if driver != testCase.expectedDriver || path != testCase.expectedPath {
				test.Fatalf("expected %s %q, got %s %q", testCase.expectedDriver, testCase.expectedPath, driver, path)
			}
		})
	}
}

func TestSQLiteStorageRoundTrip(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	handle, err := Open(ctx, "sqlite://"+filepath.Join(test.TempDir(), "state.db"))
	if err != nil {
		test.Fatalf("open failed: %v", err)
	}
	defer func() { _ = handle.Close() }()

	if _, ok, err := handle.Get(ctx, session.StorageKey); err != nil || ok {
		test.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
	first := []byte(`{"state":{"user":null,"isLoggedIn":false},"version":0}`)
	second := []byte(`{"state":{"user":{"id":"u1"},"isLoggedIn":true},"version":0}`)
	if err := handle.Set(ctx, session.StorageKey, first); err != nil {
		test.Fatalf("set failed: %v", err)
	}
	if err := handle.Set(ctx, session.StorageKey, second); err != nil {
		test.Fatalf("overwrite failed: %v", err)
	}
	value, ok, err := handle.Get(ctx, session.StorageKey)
	if err != nil || !ok || string(value) != string(second) {
		test.Fatalf("unexpected value %q ok=%v err=%v", value, ok, err)
	}
	if err := handle.Remove(ctx, session.StorageKey); err != nil {
		test.Fatalf("remove failed: %v", err)
	}
	if _, ok, _ := handle.Get(ctx, session.StorageKey); ok {
		test.Fatalf("expected key removed")
	}
	if err := handle.Remove(ctx, "userInfo"); err != nil {
		test.Fatalf("removing a missing key should succeed: %v", err)
	}
}

func TestSQLiteStorageBacksSessionStore(test *testing.T) {
	test.Parallel()
	ctx := context.Background()
	path := "sqlite://" + filepath.Join(test.TempDir(), "state.db")
	handle, err := Open(ctx, path)
	if err != nil {
		test.Fatalf("open failed: %v", err)
	}
	payload := []byte(`{"state":{"user":{"id":"u1","openid":"o1"},"isLoggedIn":true},"version":0}`)
	if err := handle.Set(ctx, session.StorageKey, payload); err != nil {
		test.Fatalf("set failed: %v", err)
	}
	_ = handle.Close()

	reopened, err := Open(ctx, path)
	if err != nil {
		test.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	value, ok, err := reopened.Get(ctx, session.StorageKey)
	if err != nil || !ok || string(value) != string(payload) {
		test.Fatalf("expected persisted value, got %q ok=%v err=%v", value, ok, err)
	}
}
