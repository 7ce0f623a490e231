package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/danieldreier/mcp-leitner/internal/leitner"
)

// SQLiteStorage implements the Storage interface on an embedded SQLite
// database. Every mutation commits as it happens; Save is a no-op kept
// for interface parity with the file backend.
type SQLiteStorage struct {
	dsn  string
	conn *sql.DB
}

// NewSQLiteStorage creates a SQLiteStorage for the given database path.
// The connection opens on Load.
func NewSQLiteStorage(dsn string) *SQLiteStorage {
	return &SQLiteStorage{dsn: dsn}
}

// Load opens the database connection and ensures the schema is up to
// date.
func (s *SQLiteStorage) Load() error {
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return &StorageError{Op: "load", Err: fmt.Errorf("open database: %w", err)}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return &StorageError{Op: "load", Err: fmt.Errorf("connect to database: %w", err)}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return &StorageError{Op: "load", Err: fmt.Errorf("apply schema: %w", err)}
	}
	s.conn = db
	return nil
}

// Save is a no-op: SQLite commits each statement as it executes.
func (s *SQLiteStorage) Save() error { return nil }

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// fromMillis restores a timestamp stored as epoch milliseconds.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// lastReviewedValue maps the nullable last-review time onto its
// column: NULL when the card has never been reviewed.
func lastReviewedValue(c leitner.Card) sql.NullInt64 {
	if c.LastReviewed == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: c.LastReviewed.UnixMilli(), Valid: true}
}

// scanner covers *sql.Row and *sql.Rows so the scan helpers serve both
// single-row lookups and list queries.
type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(row scanner) (Collection, error) {
	var col Collection
	var createdMs int64
	err := row.Scan(&col.ID, &col.Name, &createdMs,
		&col.Intervals[0], &col.Intervals[1], &col.Intervals[2], &col.Intervals[3], &col.Intervals[4])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Collection{}, ErrCollectionNotFound
		}
		return Collection{}, &StorageError{Op: "scan collection", Err: err}
	}
	col.CreatedAt = fromMillis(createdMs)
	return col, nil
}

func scanCard(row scanner) (Card, error) {
	var card Card
	var box int
	var lastReviewed sql.NullInt64
	var createdMs int64
	err := row.Scan(&card.ID, &card.CollectionID, &card.Front, &card.Back, &box, &lastReviewed, &createdMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Card{}, ErrCardNotFound
		}
		return Card{}, &StorageError{Op: "scan card", Err: err}
	}
	card.Leitner.Box = leitner.Box(box)
	if lastReviewed.Valid {
		t := fromMillis(lastReviewed.Int64)
		card.Leitner.LastReviewed = &t
	}
	card.CreatedAt = fromMillis(createdMs)
	return card, nil
}

func scanReview(row scanner) (ReviewRecord, error) {
	var rec ReviewRecord
	var outcome string
	var reviewedMs int64
	var fromBox, toBox int
	err := row.Scan(&rec.ID, &rec.CardID, &outcome, &reviewedMs, &fromBox, &toBox)
	if err != nil {
		return ReviewRecord{}, &StorageError{Op: "scan review", Err: err}
	}
	rec.Outcome = leitner.Outcome(outcome)
	rec.Timestamp = fromMillis(reviewedMs)
	rec.FromBox = leitner.Box(fromBox)
	rec.ToBox = leitner.Box(toBox)
	return rec, nil
}

// CreateCollection creates a new collection under the given interval
// policy. The policy is validated before anything is written.
func (s *SQLiteStorage) CreateCollection(name string, intervals leitner.IntervalPolicy) (Collection, error) {
	col := Collection{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().Truncate(time.Millisecond),
		Intervals: intervals,
	}
	if err := validateCollection(col); err != nil {
		return Collection{}, err
	}

	_, err := s.conn.Exec(`
		INSERT INTO collections (id, name, created_at, box1_days, box2_days, box3_days, box4_days, box5_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		col.ID,
		col.Name,
		col.CreatedAt.UnixMilli(),
		col.Intervals[0], col.Intervals[1], col.Intervals[2], col.Intervals[3], col.Intervals[4],
	)
	if err != nil {
		return Collection{}, &StorageError{Op: "create collection", Err: err}
	}
	return col, nil
}

// GetCollection retrieves a collection by ID.
func (s *SQLiteStorage) GetCollection(id string) (Collection, error) {
	row := s.conn.QueryRow(`
		SELECT id, name, created_at, box1_days, box2_days, box3_days, box4_days, box5_days
		FROM collections WHERE id = ?
	`, id)
	return scanCollection(row)
}

// SaveCollection updates an existing collection's name and intervals.
// An invalid interval policy blocks the save.
func (s *SQLiteStorage) SaveCollection(col Collection) error {
	if err := validateCollection(col); err != nil {
		return err
	}

	res, err := s.conn.Exec(`
		UPDATE collections
		SET name = ?, box1_days = ?, box2_days = ?, box3_days = ?, box4_days = ?, box5_days = ?
		WHERE id = ?
	`,
		col.Name,
		col.Intervals[0], col.Intervals[1], col.Intervals[2], col.Intervals[3], col.Intervals[4],
		col.ID,
	)
	if err != nil {
		return &StorageError{Op: "save collection", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "save collection", Err: err}
	}
	if n == 0 {
		return ErrCollectionNotFound
	}
	return nil
}

// DeleteCollection deletes a collection along with its cards and their
// review history, all in one transaction.
func (s *SQLiteStorage) DeleteCollection(id string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		DELETE FROM reviews
		WHERE card_id IN (SELECT id FROM cards WHERE collection_id = ?)
	`, id); err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	if _, err := tx.Exec(`DELETE FROM cards WHERE collection_id = ?`, id); err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	res, err := tx.Exec(`DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	if n == 0 {
		return ErrCollectionNotFound
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "delete collection", Err: err}
	}
	return nil
}

// ListCollections returns all collections in creation order.
func (s *SQLiteStorage) ListCollections() ([]Collection, error) {
	rows, err := s.conn.Query(`
		SELECT id, name, created_at, box1_days, box2_days, box3_days, box4_days, box5_days
		FROM collections ORDER BY created_at, id
	`)
	if err != nil {
		return nil, &StorageError{Op: "list collections", Err: err}
	}
	defer rows.Close()

	cols := []Collection{}
	for rows.Next() {
		col, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list collections", Err: err}
	}
	return cols, nil
}

// CreateCard creates a new flashcard in a collection. The card starts
// in the first box, never reviewed.
func (s *SQLiteStorage) CreateCard(collectionID, front, back string) (Card, error) {
	if _, err := s.GetCollection(collectionID); err != nil {
		return Card{}, err
	}

	card := Card{
		ID:           uuid.New().String(),
		CollectionID: collectionID,
		Front:        front,
		Back:         back,
		CreatedAt:    time.Now().Truncate(time.Millisecond),
		Leitner:      leitner.NewCard(),
	}
	if err := validateCard(card); err != nil {
		return Card{}, err
	}

	_, err := s.conn.Exec(`
		INSERT INTO cards (id, collection_id, front, back, box, last_reviewed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		card.ID,
		card.CollectionID,
		card.Front,
		card.Back,
		int(card.Leitner.Box),
		lastReviewedValue(card.Leitner),
		card.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Card{}, &StorageError{Op: "create card", Err: err}
	}
	return card, nil
}

// GetCard retrieves a flashcard by ID.
func (s *SQLiteStorage) GetCard(id string) (Card, error) {
	row := s.conn.QueryRow(`
		SELECT id, collection_id, front, back, box, last_reviewed, created_at
		FROM cards WHERE id = ?
	`, id)
	return scanCard(row)
}

// SaveCard updates an existing flashcard's text and Leitner state.
// Blank text or an out-of-range box level blocks the save.
func (s *SQLiteStorage) SaveCard(card Card) error {
	if err := validateCard(card); err != nil {
		return err
	}

	res, err := s.conn.Exec(`
		UPDATE cards
		SET front = ?, back = ?, box = ?, last_reviewed = ?
		WHERE id = ?
	`,
		card.Front,
		card.Back,
		int(card.Leitner.Box),
		lastReviewedValue(card.Leitner),
		card.ID,
	)
	if err != nil {
		return &StorageError{Op: "save card", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "save card", Err: err}
	}
	if n == 0 {
		return ErrCardNotFound
	}
	return nil
}

// DeleteCard deletes a flashcard and its review history in one
// transaction.
func (s *SQLiteStorage) DeleteCard(id string) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return &StorageError{Op: "delete card", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM reviews WHERE card_id = ?`, id); err != nil {
		return &StorageError{Op: "delete card", Err: err}
	}
	res, err := tx.Exec(`DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return &StorageError{Op: "delete card", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "delete card", Err: err}
	}
	if n == 0 {
		return ErrCardNotFound
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "delete card", Err: err}
	}
	return nil
}

// ListCards returns cards in creation order, filtered to a collection
// when collectionID is non-empty.
func (s *SQLiteStorage) ListCards(collectionID string) ([]Card, error) {
	query := `
		SELECT id, collection_id, front, back, box, last_reviewed, created_at
		FROM cards ORDER BY created_at, id
	`
	args := []any{}
	if collectionID != "" {
		query = `
			SELECT id, collection_id, front, back, box, last_reviewed, created_at
			FROM cards WHERE collection_id = ? ORDER BY created_at, id
		`
		args = append(args, collectionID)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list cards", Err: err}
	}
	defer rows.Close()

	cards := []Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list cards", Err: err}
	}
	return cards, nil
}

// AddReview appends a review record for a card.
func (s *SQLiteStorage) AddReview(rec ReviewRecord) error {
	if _, err := s.GetCard(rec.CardID); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	_, err := s.conn.Exec(`
		INSERT INTO reviews (id, card_id, outcome, reviewed_at, from_box, to_box)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.CardID,
		string(rec.Outcome),
		rec.Timestamp.UnixMilli(),
		int(rec.FromBox),
		int(rec.ToBox),
	)
	if err != nil {
		return &StorageError{Op: "add review", Err: err}
	}
	return nil
}

// GetCardReviews gets all reviews for a specific card, oldest first.
func (s *SQLiteStorage) GetCardReviews(cardID string) ([]ReviewRecord, error) {
	if _, err := s.GetCard(cardID); err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(`
		SELECT id, card_id, outcome, reviewed_at, from_box, to_box
		FROM reviews WHERE card_id = ? ORDER BY reviewed_at, rowid
	`, cardID)
	if err != nil {
		return nil, &StorageError{Op: "get card reviews", Err: err}
	}
	defer rows.Close()

	recs := []ReviewRecord{}
	for rows.Next() {
		rec, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "get card reviews", Err: err}
	}
	return recs, nil
}

// ListReviews returns review records oldest first, filtered to one
// collection's cards when collectionID is non-empty.
func (s *SQLiteStorage) ListReviews(collectionID string) ([]ReviewRecord, error) {
	query := `
		SELECT id, card_id, outcome, reviewed_at, from_box, to_box
		FROM reviews ORDER BY reviewed_at, rowid
	`
	args := []any{}
	if collectionID != "" {
		query = `
			SELECT r.id, r.card_id, r.outcome, r.reviewed_at, r.from_box, r.to_box
			FROM reviews r
			JOIN cards c ON r.card_id = c.id
			WHERE c.collection_id = ?
			ORDER BY r.reviewed_at, r.rowid
		`
		args = append(args, collectionID)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list reviews", Err: err}
	}
	defer rows.Close()

	recs := []ReviewRecord{}
	for rows.Next() {
		rec, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list reviews", Err: err}
	}
	return recs, nil
}
