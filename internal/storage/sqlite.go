package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/donovan0902/project-hunt/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single writer. This also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction. With a single connection, every call made
// while the transaction is open must go through the returned Tx.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Entry operations

// The last column folds the entry's focus areas into one comma-separated
// value so every entry query stays a single statement.
const entryColumns = `id, owner_id, team_id, name, summary, headline, link, readiness,
	status, embedding_key, derived_text, upvotes, created_at, updated_at,
	(SELECT group_concat(focus_area_id, ',') FROM entry_focus_areas WHERE entry_id = entries.id)`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*types.Entry, error) {
	var e types.Entry
	var teamID, embeddingKey, focusAreas sql.NullString
	var readiness, status string
	err := row.Scan(
		&e.ID, &e.OwnerID, &teamID, &e.Name, &e.Summary, &e.Headline, &e.Link, &readiness,
		&status, &embeddingKey, &e.DerivedText, &e.Upvotes, &e.CreatedAt, &e.UpdatedAt,
		&focusAreas,
	)
	if err != nil {
		return nil, err
	}
	if focusAreas.String != "" {
		e.FocusAreaIDs = strings.Split(focusAreas.String, ",")
		sort.Strings(e.FocusAreaIDs)
	}
	e.TeamID = teamID.String
	e.EmbeddingKey = embeddingKey.String
	e.Readiness = types.Readiness(readiness)
	e.Status = types.Status(status)
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *SQLiteStorage) createEntryWithQuerier(ctx context.Context, q querier, entry *types.Entry) error {
	query := `
		INSERT INTO entries (id, owner_id, team_id, name, summary, headline, link, readiness,
		                     status, embedding_key, derived_text, upvotes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.Readiness == "" {
		entry.Readiness = types.ReadinessInProgress
	}

	_, err := q.ExecContext(ctx, query,
		entry.ID, entry.OwnerID, nullString(entry.TeamID), entry.Name, entry.Summary,
		entry.Headline, entry.Link, string(entry.Readiness), string(entry.Status),
		nullString(entry.EmbeddingKey), entry.DerivedText, entry.Upvotes,
		entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("entry %s: %w", entry.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return s.replaceEntryFocusAreas(ctx, q, entry.ID, entry.FocusAreaIDs)
}

// replaceEntryFocusAreas makes ids the complete focus area set of an entry.
func (s *SQLiteStorage) replaceEntryFocusAreas(ctx context.Context, q querier, entryID string, ids []string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM entry_focus_areas WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to clear focus areas: %w", err)
	}
	for _, id := range ids {
		_, err := q.ExecContext(ctx, `
			INSERT INTO entry_focus_areas (entry_id, focus_area_id) VALUES (?, ?)
			ON CONFLICT(entry_id, focus_area_id) DO NOTHING
		`, entryID, id)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return fmt.Errorf("focus area %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("failed to tag focus area: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) CreateEntry(ctx context.Context, entry *types.Entry) error {
	return s.createEntryWithQuerier(ctx, s.querier(), entry)
}

func (s *SQLiteStorage) getEntryWithQuerier(ctx context.Context, q querier, id string) (*types.Entry, error) {
	row := q.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*types.Entry, error) {
	return s.getEntryWithQuerier(ctx, s.querier(), id)
}

// getEntriesWithQuerier loads the entries with the given ids. Missing ids are
// absent from the returned map.
func (s *SQLiteStorage) getEntriesWithQuerier(ctx context.Context, q querier, ids []string) (map[string]*types.Entry, error) {
	result := make(map[string]*types.Entry, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := `SELECT ` + entryColumns + ` FROM entries WHERE id IN (` + strings.Join(placeholders, ",") + `)`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result[entry.ID] = entry
	}
	return result, rows.Err()
}

func (s *SQLiteStorage) GetEntries(ctx context.Context, ids []string) (map[string]*types.Entry, error) {
	return s.getEntriesWithQuerier(ctx, s.querier(), ids)
}

// updateEntryFieldsWithQuerier replaces the user-editable fields, focus areas
// included. Status, embedding key and derived text are left alone.
func (s *SQLiteStorage) updateEntryFieldsWithQuerier(ctx context.Context, q querier, entry *types.Entry) error {
	query := `
		UPDATE entries
		SET name = ?, summary = ?, headline = ?, link = ?, team_id = ?, readiness = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx, query,
		entry.Name, entry.Summary, entry.Headline, entry.Link, nullString(entry.TeamID),
		string(entry.Readiness), now, entry.ID)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}
	if err := s.replaceEntryFocusAreas(ctx, q, entry.ID, entry.FocusAreaIDs); err != nil {
		return err
	}
	entry.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateEntryFields(ctx context.Context, entry *types.Entry) error {
	return s.updateEntryFieldsWithQuerier(ctx, s.querier(), entry)
}

func (s *SQLiteStorage) setDerivedTextWithQuerier(ctx context.Context, q querier, id, text string) error {
	result, err := q.ExecContext(ctx, `UPDATE entries SET derived_text = ? WHERE id = ?`, text, id)
	if err != nil {
		return fmt.Errorf("failed to set derived text: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) SetDerivedText(ctx context.Context, id, text string) error {
	return s.setDerivedTextWithQuerier(ctx, s.querier(), id, text)
}

// setEmbeddingKeyWithQuerier attaches a key. A key that is already set is
// never replaced by a different one.
func (s *SQLiteStorage) setEmbeddingKeyWithQuerier(ctx context.Context, q querier, id, key string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE entries SET embedding_key = ?
		WHERE id = ? AND (embedding_key IS NULL OR embedding_key = ?)
	`, key, id, key)
	if err != nil {
		return fmt.Errorf("failed to set embedding key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.getEntryWithQuerier(ctx, q, id); err != nil {
			return err
		}
		return fmt.Errorf("entry %s already has a different embedding key", id)
	}
	return nil
}

func (s *SQLiteStorage) SetEmbeddingKey(ctx context.Context, id, key string) error {
	return s.setEmbeddingKeyWithQuerier(ctx, s.querier(), id, key)
}

// transitionStatusWithQuerier moves an entry from one status to another and
// reports whether this call performed the transition.
func (s *SQLiteStorage) transitionStatusWithQuerier(ctx context.Context, q querier, id string, from, to types.Status) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE entries SET status = ?, updated_at = ? WHERE id = ? AND status = ?
	`, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("failed to transition status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStorage) TransitionStatus(ctx context.Context, id string, from, to types.Status) (bool, error) {
	return s.transitionStatusWithQuerier(ctx, s.querier(), id, from, to)
}

func (s *SQLiteStorage) deletePendingEntryWithQuerier(ctx context.Context, q querier, id string) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM entries WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete entry: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStorage) DeletePendingEntry(ctx context.Context, id string) (bool, error) {
	return s.deletePendingEntryWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) listEntriesWithQuerier(ctx context.Context, q querier, filter ListFilter) ([]*types.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE 1=1`
	var args []interface{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.OwnerID != "" {
		query += " AND owner_id = ?"
		args = append(args, filter.OwnerID)
	}
	if filter.FocusAreaID != "" {
		query += " AND id IN (SELECT entry_id FROM entry_focus_areas WHERE focus_area_id = ?)"
		args = append(args, filter.FocusAreaID)
	}

	switch filter.Sort {
	case SortUpvotes:
		query += " ORDER BY upvotes DESC, created_at DESC, rowid DESC"
	default:
		query += " ORDER BY created_at DESC, rowid DESC"
	}

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryEntries(ctx, q, query, args...)
}

func (s *SQLiteStorage) ListEntries(ctx context.Context, filter ListFilter) ([]*types.Entry, error) {
	return s.listEntriesWithQuerier(ctx, s.querier(), filter)
}

func (s *SQLiteStorage) listEntriesMissingEmbeddingWithQuerier(ctx context.Context, q querier, limit int) ([]*types.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE embedding_key IS NULL ORDER BY created_at, rowid`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryEntries(ctx, q, query, args...)
}

func (s *SQLiteStorage) ListEntriesMissingEmbedding(ctx context.Context, limit int) ([]*types.Entry, error) {
	return s.listEntriesMissingEmbeddingWithQuerier(ctx, s.querier(), limit)
}

func (s *SQLiteStorage) listEntryIDsByTeamWithQuerier(ctx context.Context, q querier, teamID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM entries WHERE team_id = ? ORDER BY rowid`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list team entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStorage) ListEntryIDsByTeam(ctx context.Context, teamID string) ([]string, error) {
	return s.listEntryIDsByTeamWithQuerier(ctx, s.querier(), teamID)
}

func (s *SQLiteStorage) queryEntries(ctx context.Context, q querier, query string, args ...interface{}) ([]*types.Entry, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*types.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Team operations

func (s *SQLiteStorage) createTeamWithQuerier(ctx context.Context, q querier, team *types.Team) error {
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO teams (id, name, description, created_at) VALUES (?, ?, ?, ?)
	`, team.ID, team.Name, team.Description, team.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("team %s: %w", team.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateTeam(ctx context.Context, team *types.Team) error {
	return s.createTeamWithQuerier(ctx, s.querier(), team)
}

func (s *SQLiteStorage) getTeamWithQuerier(ctx context.Context, q querier, id string) (*types.Team, error) {
	var team types.Team
	err := q.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM teams WHERE id = ?
	`, id).Scan(&team.ID, &team.Name, &team.Description, &team.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &team, nil
}

func (s *SQLiteStorage) GetTeam(ctx context.Context, id string) (*types.Team, error) {
	return s.getTeamWithQuerier(ctx, s.querier(), id)
}

func (s *SQLiteStorage) updateTeamWithQuerier(ctx context.Context, q querier, team *types.Team) error {
	result, err := q.ExecContext(ctx, `
		UPDATE teams SET name = ?, description = ? WHERE id = ?
	`, team.Name, team.Description, team.ID)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) UpdateTeam(ctx context.Context, team *types.Team) error {
	return s.updateTeamWithQuerier(ctx, s.querier(), team)
}

// Focus area operations

const focusAreaColumns = `id, name, group_name, description, is_active, created_at`

func scanFocusArea(row rowScanner) (*types.FocusArea, error) {
	var area types.FocusArea
	err := row.Scan(&area.ID, &area.Name, &area.Group, &area.Description, &area.Active, &area.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &area, nil
}

func (s *SQLiteStorage) createFocusAreaWithQuerier(ctx context.Context, q querier, area *types.FocusArea) error {
	if area.CreatedAt.IsZero() {
		area.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO focus_areas (`+focusAreaColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, area.ID, area.Name, area.Group, area.Description, area.Active, area.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("focus area %s: %w", area.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create focus area: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) CreateFocusArea(ctx context.Context, area *types.FocusArea) error {
	return s.createFocusAreaWithQuerier(ctx, s.querier(), area)
}

func (s *SQLiteStorage) getFocusAreaWithQuerier(ctx context.Context, q querier, id string) (*types.FocusArea, error) {
	row := q.QueryRowContext(ctx, `SELECT `+focusAreaColumns+` FROM focus_areas WHERE id = ?`, id)
	area, err := scanFocusArea(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get focus area: %w", err)
	}
	return area, nil
}

func (s *SQLiteStorage) GetFocusArea(ctx context.Context, id string) (*types.FocusArea, error) {
	return s.getFocusAreaWithQuerier(ctx, s.querier(), id)
}

// listFocusAreasWithQuerier returns focus areas ordered by group, then name.
func (s *SQLiteStorage) listFocusAreasWithQuerier(ctx context.Context, q querier, includeArchived bool) ([]*types.FocusArea, error) {
	query := `SELECT ` + focusAreaColumns + ` FROM focus_areas`
	if !includeArchived {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY group_name, name, id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list focus areas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	areas := make([]*types.FocusArea, 0)
	for rows.Next() {
		area, err := scanFocusArea(rows)
		if err != nil {
			return nil, err
		}
		areas = append(areas, area)
	}
	return areas, rows.Err()
}

func (s *SQLiteStorage) ListFocusAreas(ctx context.Context, includeArchived bool) ([]*types.FocusArea, error) {
	return s.listFocusAreasWithQuerier(ctx, s.querier(), includeArchived)
}

func (s *SQLiteStorage) setFocusAreaActiveWithQuerier(ctx context.Context, q querier, id string, active bool) error {
	result, err := q.ExecContext(ctx, `UPDATE focus_areas SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update focus area: %w", err)
	}
	return requireAffected(result)
}

func (s *SQLiteStorage) SetFocusAreaActive(ctx context.Context, id string, active bool) error {
	return s.setFocusAreaActiveWithQuerier(ctx, s.querier(), id, active)
}

// Upvote operations

func (s *SQLiteStorage) hasUpvoteWithQuerier(ctx context.Context, q querier, entryID, userID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM upvotes WHERE entry_id = ? AND user_id = ?
	`, entryID, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check upvote: %w", err)
	}
	return true, nil
}

func (s *SQLiteStorage) HasUpvote(ctx context.Context, entryID, userID string) (bool, error) {
	return s.hasUpvoteWithQuerier(ctx, s.querier(), entryID, userID)
}

// addUpvoteWithQuerier records an upvote and returns the new counter value.
func (s *SQLiteStorage) addUpvoteWithQuerier(ctx context.Context, q querier, entryID, userID string) (int, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO upvotes (entry_id, user_id) VALUES (?, ?)
		ON CONFLICT(entry_id, user_id) DO NOTHING
	`, entryID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to add upvote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if _, err := q.ExecContext(ctx, `UPDATE entries SET upvotes = upvotes + 1 WHERE id = ?`, entryID); err != nil {
			return 0, fmt.Errorf("failed to increment upvotes: %w", err)
		}
	}
	return s.upvoteCount(ctx, q, entryID)
}

func (s *SQLiteStorage) AddUpvote(ctx context.Context, entryID, userID string) (int, error) {
	return s.addUpvoteWithQuerier(ctx, s.querier(), entryID, userID)
}

func (s *SQLiteStorage) removeUpvoteWithQuerier(ctx context.Context, q querier, entryID, userID string) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM upvotes WHERE entry_id = ? AND user_id = ?`, entryID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove upvote: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if _, err := q.ExecContext(ctx, `UPDATE entries SET upvotes = MAX(upvotes - 1, 0) WHERE id = ?`, entryID); err != nil {
			return 0, fmt.Errorf("failed to decrement upvotes: %w", err)
		}
	}
	return s.upvoteCount(ctx, q, entryID)
}

func (s *SQLiteStorage) RemoveUpvote(ctx context.Context, entryID, userID string) (int, error) {
	return s.removeUpvoteWithQuerier(ctx, s.querier(), entryID, userID)
}

func (s *SQLiteStorage) upvoteCount(ctx context.Context, q querier, entryID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT upvotes FROM entries WHERE id = ?`, entryID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return count, err
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*StoreStatus, error) {
	status := &StoreStatus{
		BuildMode:          BuildMode,
		VectorAcceleration: VectorExtensionAvailable,
	}

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN embedding_key IS NULL THEN 1 ELSE 0 END), 0)
		FROM entries
	`).Scan(&status.EntriesCount, &status.PendingCount, &status.ActiveCount, &status.MissingEmbeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&status.VectorsCount); err != nil {
		return nil, fmt.Errorf("failed to count vectors: %w", err)
	}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM teams`).Scan(&status.TeamsCount); err != nil {
		return nil, fmt.Errorf("failed to count teams: %w", err)
	}
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM focus_areas`).Scan(&status.FocusAreasCount); err != nil {
		return nil, fmt.Errorf("failed to count focus areas: %w", err)
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*StoreStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Transaction implementations. Every call goes through the transaction's
// querier; the storage connection is held by the transaction.

func (t *sqliteTx) CreateEntry(ctx context.Context, entry *types.Entry) error {
	return t.storage.createEntryWithQuerier(ctx, t.querier(), entry)
}

func (t *sqliteTx) GetEntry(ctx context.Context, id string) (*types.Entry, error) {
	return t.storage.getEntryWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) GetEntries(ctx context.Context, ids []string) (map[string]*types.Entry, error) {
	return t.storage.getEntriesWithQuerier(ctx, t.querier(), ids)
}

func (t *sqliteTx) UpdateEntryFields(ctx context.Context, entry *types.Entry) error {
	return t.storage.updateEntryFieldsWithQuerier(ctx, t.querier(), entry)
}

func (t *sqliteTx) SetDerivedText(ctx context.Context, id, text string) error {
	return t.storage.setDerivedTextWithQuerier(ctx, t.querier(), id, text)
}

func (t *sqliteTx) SetEmbeddingKey(ctx context.Context, id, key string) error {
	return t.storage.setEmbeddingKeyWithQuerier(ctx, t.querier(), id, key)
}

func (t *sqliteTx) TransitionStatus(ctx context.Context, id string, from, to types.Status) (bool, error) {
	return t.storage.transitionStatusWithQuerier(ctx, t.querier(), id, from, to)
}

func (t *sqliteTx) DeletePendingEntry(ctx context.Context, id string) (bool, error) {
	return t.storage.deletePendingEntryWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListEntries(ctx context.Context, filter ListFilter) ([]*types.Entry, error) {
	return t.storage.listEntriesWithQuerier(ctx, t.querier(), filter)
}

func (t *sqliteTx) ListEntriesMissingEmbedding(ctx context.Context, limit int) ([]*types.Entry, error) {
	return t.storage.listEntriesMissingEmbeddingWithQuerier(ctx, t.querier(), limit)
}

func (t *sqliteTx) ListEntryIDsByTeam(ctx context.Context, teamID string) ([]string, error) {
	return t.storage.listEntryIDsByTeamWithQuerier(ctx, t.querier(), teamID)
}

func (t *sqliteTx) CreateTeam(ctx context.Context, team *types.Team) error {
	return t.storage.createTeamWithQuerier(ctx, t.querier(), team)
}

func (t *sqliteTx) GetTeam(ctx context.Context, id string) (*types.Team, error) {
	return t.storage.getTeamWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) UpdateTeam(ctx context.Context, team *types.Team) error {
	return t.storage.updateTeamWithQuerier(ctx, t.querier(), team)
}

func (t *sqliteTx) CreateFocusArea(ctx context.Context, area *types.FocusArea) error {
	return t.storage.createFocusAreaWithQuerier(ctx, t.querier(), area)
}

func (t *sqliteTx) GetFocusArea(ctx context.Context, id string) (*types.FocusArea, error) {
	return t.storage.getFocusAreaWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListFocusAreas(ctx context.Context, includeArchived bool) ([]*types.FocusArea, error) {
	return t.storage.listFocusAreasWithQuerier(ctx, t.querier(), includeArchived)
}

func (t *sqliteTx) SetFocusAreaActive(ctx context.Context, id string, active bool) error {
	return t.storage.setFocusAreaActiveWithQuerier(ctx, t.querier(), id, active)
}

func (t *sqliteTx) HasUpvote(ctx context.Context, entryID, userID string) (bool, error) {
	return t.storage.hasUpvoteWithQuerier(ctx, t.querier(), entryID, userID)
}

func (t *sqliteTx) AddUpvote(ctx context.Context, entryID, userID string) (int, error) {
	return t.storage.addUpvoteWithQuerier(ctx, t.querier(), entryID, userID)
}

func (t *sqliteTx) RemoveUpvote(ctx context.Context, entryID, userID string) (int, error) {
	return t.storage.removeUpvoteWithQuerier(ctx, t.querier(), entryID, userID)
}

func (t *sqliteTx) UpsertVector(ctx context.Context, vector *Vector) error {
	return t.storage.upsertVectorWithQuerier(ctx, t.querier(), vector)
}

func (t *sqliteTx) DeleteVector(ctx context.Context, namespace, key string) error {
	return t.storage.deleteVectorWithQuerier(ctx, t.querier(), namespace, key)
}

func (t *sqliteTx) CountVectors(ctx context.Context, namespace string) (int, error) {
	return t.storage.countVectorsWithQuerier(ctx, t.querier(), namespace)
}

func (t *sqliteTx) SearchVector(ctx context.Context, namespace string, vector []float32, limit int, minScore float64) ([]VectorResult, error) {
	return searchVector(ctx, t.querier(), namespace, vector, limit, minScore)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, t.querier(), query, limit)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*StoreStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
