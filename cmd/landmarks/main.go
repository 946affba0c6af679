// Command landmarks manages the fixed positions that can be bound as sensors.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"haversine-sensor/internal/config"
	"haversine-sensor/internal/db"
	"haversine-sensor/internal/landmark"
	"haversine-sensor/internal/logging"
	"haversine-sensor/internal/migrate"
)

const usage = `usage: landmarks <command> [args]
  migrate                   apply pending schema migrations
  add <name> <lat> <lon>    create or move a landmark
  list                      print all landmarks as JSON
  delete <name>             remove a landmark
`

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewWithWriter(os.Stderr, cfg, "dev", "landmarks"))

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	if err := run(ctx, conn, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conn *sql.DB, args []string, out io.Writer) error {
	if _, err := migrate.Up(ctx, conn, slog.Default()); err != nil {
		return err
	}
	repo := landmark.NewRepository(conn)

	switch args[0] {
	case "migrate":
		_, err := fmt.Fprintln(out, "migrations applied")
		return err

	case "add":
		if len(args) != 4 {
			return fmt.Errorf("expected <name> <lat> <lon>")
		}
		lat, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude %q", args[2])
		}
		lon, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude %q", args[3])
		}
		if err := repo.Upsert(ctx, args[1], lat, lon, time.Now()); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "landmark %s saved\n", args[1])
		return err

	case "list":
		items, err := repo.List(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)

	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("expected <name>")
		}
		if err := repo.Delete(ctx, args[1]); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "landmark %s deleted\n", args[1])
		return err

	default:
		return fmt.Errorf("unknown command\n%s", usage)
	}
}
