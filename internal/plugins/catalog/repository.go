package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// IngestionRepository defines the data access contract for the ingestion
// audit log.
type IngestionRepository interface {
	Record(ctx context.Context, rec *IngestionRecord) error
	Recent(ctx context.Context, limit int) ([]IngestionRecord, error)
}

// ingestionRepository implements IngestionRepository with MariaDB queries.
type ingestionRepository struct {
	db *sql.DB
}

// NewIngestionRepository creates a new ingestion repository.
func NewIngestionRepository(db *sql.DB) IngestionRepository {
	return &ingestionRepository{db: db}
}

// Record inserts one ingestion attempt and sets its ID.
func (r *ingestionRepository) Record(ctx context.Context, rec *IngestionRecord) error {
	query := `INSERT INTO ingestions (source_url, category, public_id, succeeded, bytes, error, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	var publicID, errText sql.NullString
	if rec.PublicID != "" {
		publicID = sql.NullString{String: rec.PublicID, Valid: true}
	}
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		rec.SourceURL, rec.Category, publicID,
		rec.Succeeded, rec.Bytes, errText, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting ingestion: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// Recent returns the latest attempts, newest first.
func (r *ingestionRepository) Recent(ctx context.Context, limit int) ([]IngestionRecord, error) {
	query := `SELECT id, source_url, category, public_id, succeeded, bytes, error, created_at
	          FROM ingestions ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying ingestions: %w", err)
	}
	defer rows.Close()

	records := []IngestionRecord{}
	for rows.Next() {
		var rec IngestionRecord
		var publicID, errText sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.SourceURL, &rec.Category, &publicID,
			&rec.Succeeded, &rec.Bytes, &errText, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning ingestion: %w", err)
		}
		rec.PublicID = publicID.String
		rec.Error = errText.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// nopIngestionRepository discards records. Used when no database is
// configured.
type nopIngestionRepository struct{}

// NewNopIngestionRepository returns a repository that records nothing.
func NewNopIngestionRepository() IngestionRepository {
	return nopIngestionRepository{}
}

func (nopIngestionRepository) Record(context.Context, *IngestionRecord) error { return nil }

func (nopIngestionRepository) Recent(context.Context, int) ([]IngestionRecord, error) {
	return []IngestionRecord{}, nil
}
