package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
)

// credentialFieldRow is the JSON shape for one credentials template entry.
type credentialFieldRow struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// SaveEntities replaces the stored directory snapshot while keeping fetch
// records for entities that survive the refresh.
func (s *SQLiteStore) SaveEntities(ctx context.Context, entities []model.Entity) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, "DELETE FROM entities"); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}

	for i := range entities {
		e := &entities[i]

		creds := make([]credentialFieldRow, 0, len(e.Credentials))
		for _, f := range e.Credentials {
			creds = append(creds, credentialFieldRow{Name: f.Name, Type: string(f.Type)})
		}
		credsJSON, err := json.Marshal(creds)
		if err != nil {
			return fmt.Errorf("failed to encode credentials template: %w", err)
		}

		featuresJSON, err := json.Marshal(e.Features)
		if err != nil {
			return fmt.Errorf("failed to encode features: %w", err)
		}

		var pin any
		if e.Pin != nil {
			pin = e.Pin.Positions
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO entities
				(id, name, type, origin, status, setup_login_type,
				 external_entity_id, pin_positions, credentials_json, features_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Name, string(e.Type), string(e.Origin), string(e.Status),
			string(e.SetupLoginType), e.ExternalEntityID, pin,
			string(credsJSON), string(featuresJSON))
		if err != nil {
			return fmt.Errorf("failed to save entity %s: %w", e.ID, err)
		}
	}

	// Drop fetch records for entities no longer in the directory.
	if _, err = tx.ExecContext(ctx, `
		DELETE FROM fetch_records
		WHERE entity_id NOT IN (SELECT id FROM entities)`); err != nil {
		return fmt.Errorf("failed to prune fetch records: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entities: %w", err)
	}
	return nil
}

// GetEntities returns the stored directory snapshot with last-fetch
// timestamps attached.
func (s *SQLiteStore) GetEntities(ctx context.Context) ([]model.Entity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, origin, status, setup_login_type,
		       external_entity_id, pin_positions, credentials_json, features_json
		FROM entities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}

	for i := range entities {
		if err := s.attachFetchRecords(ctx, &entities[i]); err != nil {
			return nil, err
		}
	}

	return entities, nil
}

// GetEntityByID returns one stored entity with its fetch timestamps.
func (s *SQLiteStore) GetEntityByID(ctx context.Context, id string) (*model.Entity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, origin, status, setup_login_type,
		       external_entity_id, pin_positions, credentials_json, features_json
		FROM entities WHERE id = ?`, id)

	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
		}
		return nil, err
	}

	if err := s.attachFetchRecords(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEntityStatus applies the orchestrator's optimistic status update.
func (s *SQLiteStore) UpdateEntityStatus(ctx context.Context, id string, status model.EntityStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE entities SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update entity status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// RecordFetch upserts last-fetch timestamps for the given features.
func (s *SQLiteStore) RecordFetch(ctx context.Context, entityID string, features []model.Feature, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(entityID, "entityID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range features {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO fetch_records (entity_id, feature, fetched_at)
			VALUES (?, ?, ?)
			ON CONFLICT(entity_id, feature) DO UPDATE SET fetched_at = excluded.fetched_at`,
			entityID, string(f), at.UTC())
		if err != nil {
			return fmt.Errorf("failed to record fetch for %s/%s: %w", entityID, f, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fetch records: %w", err)
	}
	return nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*model.Entity, error) {
	var (
		e            model.Entity
		entityType   string
		origin       string
		status       string
		loginType    string
		pinPositions sql.NullInt64
		credsJSON    string
		featuresJSON string
	)

	err := row.Scan(&e.ID, &e.Name, &entityType, &origin, &status, &loginType,
		&e.ExternalEntityID, &pinPositions, &credsJSON, &featuresJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan entity: %w", err)
	}

	e.Type = model.EntityType(entityType)
	e.Origin = model.EntityOrigin(origin)
	e.Status = model.EntityStatus(status)
	e.SetupLoginType = model.SetupLoginType(loginType)
	if pinPositions.Valid {
		e.Pin = &model.PinSpec{Positions: int(pinPositions.Int64)}
	}

	var creds []credentialFieldRow
	if err := json.Unmarshal([]byte(credsJSON), &creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials template: %w", err)
	}
	for _, c := range creds {
		e.Credentials = append(e.Credentials, model.CredentialField{
			Name: c.Name,
			Type: model.CredentialType(c.Type),
		})
	}

	if err := json.Unmarshal([]byte(featuresJSON), &e.Features); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}

	return &e, nil
}

func (s *SQLiteStore) attachFetchRecords(ctx context.Context, e *model.Entity) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT feature, fetched_at FROM fetch_records WHERE entity_id = ?", e.ID)
	if err != nil {
		return fmt.Errorf("failed to query fetch records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			feature string
			at      time.Time
		)
		if err := rows.Scan(&feature, &at); err != nil {
			return fmt.Errorf("failed to scan fetch record: %w", err)
		}
		if e.LastFetch == nil {
			e.LastFetch = make(map[model.Feature]time.Time)
		}
		e.LastFetch[model.Feature(feature)] = at
	}
	return rows.Err()
}
