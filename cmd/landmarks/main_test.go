package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"haversine-sensor/internal/landmark"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestRun_AddListDelete(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)

	var out bytes.Buffer
	if err := run(ctx, conn, []string{"add", "eiffel", "48.8584", "2.2945"}, &out); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out.String(), "eiffel saved") {
		t.Errorf("add output = %q", out.String())
	}

	out.Reset()
	if err := run(ctx, conn, []string{"list"}, &out); err != nil {
		t.Fatalf("list: %v", err)
	}
	var items []landmark.Landmark
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out.String())
	}
	if len(items) != 1 || items[0].Latitude != 48.8584 {
		t.Errorf("list = %+v", items)
	}

	out.Reset()
	if err := run(ctx, conn, []string{"delete", "eiffel"}, &out); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := run(ctx, conn, []string{"delete", "eiffel"}, &out); err == nil {
		t.Error("second delete succeeded")
	}
}

func TestRun_InvalidArgs(t *testing.T) {
	conn := openTestDB(t)
	for _, args := range [][]string{
		{"add", "x", "north", "0"},
		{"add", "x", "0", "east"},
		{"add", "x"},
		{"delete"},
		{"teleport"},
	} {
		if err := run(context.Background(), conn, args, &bytes.Buffer{}); err == nil {
			t.Errorf("run(%v) succeeded, want error", args)
		}
	}
}

func TestRun_Migrate(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), openTestDB(t), []string{"migrate"}, &out); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if strings.TrimSpace(out.String()) != "migrations applied" {
		t.Errorf("output = %q", out.String())
	}
}
