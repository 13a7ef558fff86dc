package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ttsudarshan/portfolio/logger"
	photo "github.com/ttsudarshan/portfolio/photo/v1"
)

// DB represents a PostgreSQL database connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Config holds the database configuration
type Config struct {
	URL string
}

// New creates a new database connection pool
func New(ctx context.Context, config Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool, log: logger.Component("db")}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks that the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// InitSchema creates the guestbook tables
func (db *DB) InitSchema(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS guestbook_photos (
			id UUID PRIMARY KEY,
			visitor_name TEXT NOT NULL,
			image_url TEXT NOT NULL,
			filename TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS guestbook_photos_created_at_idx
			ON guestbook_photos (created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create guestbook_photos table: %w", err)
	}

	// visitor_id arrived after the first deployment
	var columnExists bool
	err = db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.columns
			WHERE table_name = 'guestbook_photos' AND column_name = 'visitor_id'
		);
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for visitor_id column: %w", err)
	}

	if !columnExists {
		_, err = db.Pool.Exec(ctx, `
			ALTER TABLE guestbook_photos
			ADD COLUMN visitor_id TEXT NOT NULL DEFAULT '';
		`)
		if err != nil {
			return fmt.Errorf("failed to add visitor_id column: %w", err)
		}
		db.log.Info().Msg("added visitor_id column to guestbook_photos table")
	}

	return nil
}

// CreatePhoto stores a photo record
func (db *DB) CreatePhoto(ctx context.Context, rec photo.Record) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO guestbook_photos (id, visitor_name, visitor_id, image_url, filename, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, rec.VisitorName, rec.VisitorID, rec.ImageURL, rec.Filename, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert photo: %w", err)
	}
	return nil
}

// GetPhoto retrieves a photo record
func (db *DB) GetPhoto(ctx context.Context, id string) (photo.Record, error) {
	var rec photo.Record
	err := db.Pool.QueryRow(ctx, `
		SELECT id::text, visitor_name, visitor_id, image_url, filename, created_at
		FROM guestbook_photos WHERE id::text = $1
	`, id).Scan(&rec.ID, &rec.VisitorName, &rec.VisitorID, &rec.ImageURL, &rec.Filename, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return photo.Record{}, ErrPhotoNotFound{ID: id}
	}
	if err != nil {
		return photo.Record{}, fmt.Errorf("failed to get photo: %w", err)
	}
	return rec, nil
}

// DeletePhoto deletes a photo record
func (db *DB) DeletePhoto(ctx context.Context, id string) error {
	result, err := db.Pool.Exec(ctx, `
		DELETE FROM guestbook_photos WHERE id::text = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPhotoNotFound{ID: id}
	}
	return nil
}

// ListPhotos retrieves all photo records, newest first
func (db *DB) ListPhotos(ctx context.Context) ([]photo.Record, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id::text, visitor_name, visitor_id, image_url, filename, created_at
		FROM guestbook_photos
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	photos := []photo.Record{}
	for rows.Next() {
		var rec photo.Record
		if err := rows.Scan(&rec.ID, &rec.VisitorName, &rec.VisitorID, &rec.ImageURL, &rec.Filename, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

// ErrPhotoNotFound is returned when a photo is not found
type ErrPhotoNotFound struct {
	ID string
}

// Error implements the error interface
func (e ErrPhotoNotFound) Error() string {
	return "photo not found: " + e.ID
}

// IsNotFound reports whether err is or wraps ErrPhotoNotFound
func IsNotFound(err error) bool {
	var nf ErrPhotoNotFound
	return errors.As(err, &nf)
}
