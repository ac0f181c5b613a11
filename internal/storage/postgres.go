package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/garotm/RunOn/internal/models"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(host, port, user, password, dbName, sslMode string) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbName, sslMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	storage := &PostgresStorage{db: db}
	if err := storage.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize db schema: %w", err)
	}

	return storage, nil
}

// Init creates necessary tables
func (s *PostgresStorage) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		provider VARCHAR(20) NOT NULL,
		preferences JSONB NOT NULL DEFAULT '{}'::jsonb,
		profile_picture TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS calendar_syncs (
		user_id TEXT NOT NULL,
		calendar_event_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		event_date TIMESTAMPTZ,
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		distance DOUBLE PRECISION NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, calendar_event_id)
	);

	CREATE INDEX IF NOT EXISTS idx_calendar_syncs_user_id ON calendar_syncs(user_id);`

	_, err := s.db.Exec(query)
	return err
}

// GetUser retrieves a user by ID
func (s *PostgresStorage) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
	SELECT id, email, name, provider, preferences, profile_picture, created_at, updated_at
	FROM users WHERE id = $1`

	user := &models.User{}
	var prefs []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.Provider,
		&prefs, &user.ProfilePicture, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("Failed to get user from postgres")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if user.Preferences, err = decodePreferences(prefs); err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a new user; an existing id is left untouched
func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	prefs, err := encodePreferences(user.Preferences)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO users (id, email, name, provider, preferences, profile_picture, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING`

	_, err = s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Provider,
		prefs, user.ProfilePicture, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		log.Error().Err(err).Str("id", user.ID).Msg("Failed to save user to postgres")
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UpdateUser overwrites the mutable profile fields
func (s *PostgresStorage) UpdateUser(ctx context.Context, user *models.User) error {
	prefs, err := encodePreferences(user.Preferences)
	if err != nil {
		return err
	}

	query := `
	UPDATE users SET
		email = $2,
		name = $3,
		preferences = $4,
		profile_picture = $5,
		updated_at = $6
	WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, prefs, user.ProfilePicture, user.UpdatedAt,
	)
	if err != nil {
		log.Error().Err(err).Str("id", user.ID).Msg("Failed to update user in postgres")
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectRow(res)
}

// DeleteUser removes a user together with their sync ledger
func (s *PostgresStorage) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_syncs WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete sync records: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := expectRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertSync records a calendar addition or removal
func (s *PostgresStorage) UpsertSync(ctx context.Context, record models.SyncRecord) error {
	query := `
	INSERT INTO calendar_syncs (
		user_id, calendar_event_id, name, event_date, location, description,
		url, distance, status, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
	) ON CONFLICT (user_id, calendar_event_id) DO UPDATE SET
		name = CASE WHEN EXCLUDED.name = '' THEN calendar_syncs.name ELSE EXCLUDED.name END,
		event_date = COALESCE(EXCLUDED.event_date, calendar_syncs.event_date),
		location = CASE WHEN EXCLUDED.name = '' THEN calendar_syncs.location ELSE EXCLUDED.location END,
		description = CASE WHEN EXCLUDED.name = '' THEN calendar_syncs.description ELSE EXCLUDED.description END,
		url = CASE WHEN EXCLUDED.name = '' THEN calendar_syncs.url ELSE EXCLUDED.url END,
		distance = CASE WHEN EXCLUDED.name = '' THEN calendar_syncs.distance ELSE EXCLUDED.distance END,
		status = EXCLUDED.status,
		updated_at = EXCLUDED.updated_at
	;`

	var eventDate sql.NullTime
	if !record.EventDate.IsZero() {
		eventDate = sql.NullTime{Time: record.EventDate, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		record.UserID, record.CalendarEventID, record.Name, eventDate,
		record.Location, record.Description, record.URL, record.Distance,
		record.Status, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		log.Error().Err(err).
			Str("user_id", record.UserID).
			Str("calendar_event_id", record.CalendarEventID).
			Msg("Failed to save sync record to postgres")
		return fmt.Errorf("failed to upsert sync record: %w", err)
	}
	return nil
}

// ListSyncs returns a user's ledger, newest first
func (s *PostgresStorage) ListSyncs(ctx context.Context, userID string) ([]models.SyncRecord, error) {
	query := `
	SELECT user_id, calendar_event_id, name, event_date, location, description,
		   url, distance, status, created_at, updated_at
	FROM calendar_syncs
	WHERE user_id = $1
	ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	defer rows.Close()

	records := []models.SyncRecord{}
	for rows.Next() {
		var rec models.SyncRecord
		var eventDate sql.NullTime
		err := rows.Scan(
			&rec.UserID, &rec.CalendarEventID, &rec.Name, &eventDate,
			&rec.Location, &rec.Description, &rec.URL, &rec.Distance,
			&rec.Status, &rec.CreatedAt, &rec.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.EventDate = eventDate.Time
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HealthCheck verifies the database connection
func (s *PostgresStorage) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodePreferences(prefs map[string]interface{}) ([]byte, error) {
	if prefs == nil {
		prefs = map[string]interface{}{}
	}
	b, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return b, nil
}

func decodePreferences(b []byte) (map[string]interface{}, error) {
	prefs := map[string]interface{}{}
	if len(b) == 0 {
		return prefs, nil
	}
	if err := json.Unmarshal(b, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}
