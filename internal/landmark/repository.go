// Package landmark stores named fixed positions that can be bound as sensors.
package landmark

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

//go:embed sql/get-landmark.sql
var getLandmarkSQL string

//go:embed sql/list-landmarks.sql
var listLandmarksSQL string

//go:embed sql/upsert-landmark.sql
var upsertLandmarkSQL string

//go:embed sql/delete-landmark.sql
var deleteLandmarkSQL string

// ErrNotFound is returned for unknown landmark names.
var ErrNotFound = errors.New("landmark not found")

type Landmark struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Repository interface {
	Get(ctx context.Context, name string) (Landmark, error)
	List(ctx context.Context) ([]Landmark, error)
	Upsert(ctx context.Context, name string, latitude, longitude float64, ts time.Time) error
	Delete(ctx context.Context, name string) error
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Get(ctx context.Context, name string) (Landmark, error) {
	lm, err := scanLandmark(r.db.QueryRowContext(ctx, getLandmarkSQL, name))
	if errors.Is(err, sql.ErrNoRows) {
		return Landmark{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Landmark{}, fmt.Errorf("get landmark %q: %w", name, err)
	}
	return lm, nil
}

func (r *repositoryImpl) List(ctx context.Context) ([]Landmark, error) {
	rows, err := r.db.QueryContext(ctx, listLandmarksSQL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close landmark rows", "error", err)
		}
	}()
	out := []Landmark{}
	for rows.Next() {
		lm, err := scanLandmark(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lm)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) Upsert(ctx context.Context, name string, latitude, longitude float64, ts time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("landmark name is required")
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, upsertLandmarkSQL, name, latitude, longitude, ts.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert landmark %q: %w", name, err)
	}
	return nil
}

func (r *repositoryImpl) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, deleteLandmarkSQL, name)
	if err != nil {
		return fmt.Errorf("delete landmark %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLandmark(row rowScanner) (Landmark, error) {
	var lm Landmark
	var ts string
	if err := row.Scan(&lm.ID, &lm.Name, &lm.Latitude, &lm.Longitude, &ts); err != nil {
		return Landmark{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Landmark{}, fmt.Errorf("parse timestamp %q: %w", ts, err)
	}
	lm.UpdatedAt = t
	return lm, nil
}
