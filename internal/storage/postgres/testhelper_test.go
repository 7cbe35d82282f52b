package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bobmcallan/keymetrics/internal/common"
	tcommon "github.com/bobmcallan/keymetrics/tests/common"
)

// testURL creates a migrated database unique to the test and returns its URL.
func testURL(t *testing.T) string {
	t.Helper()

	pc := tcommon.StartPostgres(t)
	ctx := context.Background()

	admin, err := pgx.Connect(ctx, pc.Address())
	if err != nil {
		t.Fatalf("connect to Postgres: %v", err)
	}
	defer admin.Close(ctx)

	sanitized := strings.ToLower(strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(t.Name()))
	dbName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
	if len(dbName) > 60 {
		dbName = dbName[len(dbName)-60:]
	}
	if _, err := admin.Exec(ctx, fmt.Sprintf(`CREATE DATABASE "%s"`, dbName)); err != nil {
		t.Fatalf("create database: %v", err)
	}

	url := strings.Replace(pc.Address(), "/keymetrics?", "/"+dbName+"?", 1)
	if err := Migrate(url); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return url
}

// testStore returns a Store over a fresh database.
func testStore(t *testing.T) *Store {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), testURL(t))
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return NewStoreFromPool(pool, testLogger())
}

// testLogger returns a silent logger for tests.
func testLogger() *common.Logger {
	return common.NewSilentLogger()
}
