package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool used by tables.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Table is the remote data service for one entity.
type Table[T any] interface {
	Name() string
	GetAll(ctx context.Context) ([]T, error)
	GetByID(ctx context.Context, id int64) (T, error)
	// Insert stores item and returns the remote-assigned id.
	Insert(ctx context.Context, item *T) (int64, error)
	// InsertIdempotent inserts unless a row with the same sync key exists.
	// inserted is false when the row was already present.
	InsertIdempotent(ctx context.Context, item *T) (id int64, inserted bool, err error)
	Update(ctx context.Context, item *T) error
	Delete(ctx context.Context, id int64) error
}

// StatusUpdater is implemented by tables of reviewable forms.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, status, notes string) (time.Time, error)
}

// Schema maps an entity onto a table. Columns excludes id and sync_key;
// Values and Dest must follow the Columns order.
type Schema[T any] struct {
	Table     string
	Columns   []string
	OrderBy   string
	ID        func(*T) *int64
	Key       func(*T) *string
	Values    func(*T) []any
	Dest      func(*T) []any
	AfterScan func(*T)
}

// PGTable is a Table backed by PostgreSQL.
type PGTable[T any] struct {
	db     DBTX
	schema Schema[T]
}

// NewPGTable creates a table client.
func NewPGTable[T any](db DBTX, schema Schema[T]) *PGTable[T] {
	if schema.OrderBy == "" {
		schema.OrderBy = "id"
	}
	return &PGTable[T]{db: db, schema: schema}
}

// Name implements Table.
func (t *PGTable[T]) Name() string { return t.schema.Table }

func (t *PGTable[T]) selectList() string {
	return "id, COALESCE(sync_key, ''), " + strings.Join(t.schema.Columns, ", ")
}

func (t *PGTable[T]) scan(row pgx.Row) (T, error) {
	var item T
	dest := append([]any{t.schema.ID(&item), t.schema.Key(&item)}, t.schema.Dest(&item)...)
	if err := row.Scan(dest...); err != nil {
		return item, err
	}
	if t.schema.AfterScan != nil {
		t.schema.AfterScan(&item)
	}
	return item, nil
}

// GetAll implements Table. On failure the returned slice is empty, not nil.
func (t *PGTable[T]) GetAll(ctx context.Context) ([]T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", t.selectList(), t.schema.Table, t.schema.OrderBy)
	rows, err := t.db.Query(ctx, q)
	if err != nil {
		return []T{}, Classify(err, t.schema.Table)
	}
	defer rows.Close()
	list := []T{}
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return []T{}, Classify(err, t.schema.Table)
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return []T{}, Classify(err, t.schema.Table)
	}
	return list, nil
}

// GetByID implements Table.
func (t *PGTable[T]) GetByID(ctx context.Context, id int64) (T, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", t.selectList(), t.schema.Table)
	item, err := t.scan(t.db.QueryRow(ctx, q, id))
	if err != nil {
		var zero T
		return zero, Classify(err, t.schema.Table)
	}
	return item, nil
}

func (t *PGTable[T]) insertSQL(onConflict bool) string {
	cols := append(append([]string{}, t.schema.Columns...), "sync_key")
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	ph[len(ph)-1] = fmt.Sprintf("NULLIF($%d, '')", len(cols))
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.schema.Table, strings.Join(cols, ", "), strings.Join(ph, ", "))
	if onConflict {
		q += " ON CONFLICT (sync_key) DO NOTHING"
	}
	return q + " RETURNING id"
}

func (t *PGTable[T]) insertArgs(item *T) []any {
	return append(t.schema.Values(item), *t.schema.Key(item))
}

// Insert implements Table.
func (t *PGTable[T]) Insert(ctx context.Context, item *T) (int64, error) {
	var id int64
	if err := t.db.QueryRow(ctx, t.insertSQL(false), t.insertArgs(item)...).Scan(&id); err != nil {
		return 0, Classify(err, t.schema.Table)
	}
	return id, nil
}

// InsertIdempotent implements Table.
func (t *PGTable[T]) InsertIdempotent(ctx context.Context, item *T) (int64, bool, error) {
	if *t.schema.Key(item) == "" {
		id, err := t.Insert(ctx, item)
		return id, err == nil, err
	}
	var id int64
	err := t.db.QueryRow(ctx, t.insertSQL(true), t.insertArgs(item)...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, Classify(err, t.schema.Table)
	}
	return id, true, nil
}

// Update implements Table.
func (t *PGTable[T]) Update(ctx context.Context, item *T) error {
	sets := make([]string, len(t.schema.Columns))
	for i, c := range t.schema.Columns {
		sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
	}
	args := append(t.schema.Values(item), *t.schema.ID(item))
	q := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d", t.schema.Table, strings.Join(sets, ", "), len(args))
	tag, err := t.db.Exec(ctx, q, args...)
	if err != nil {
		return Classify(err, t.schema.Table)
	}
	if tag.RowsAffected() == 0 {
		return Classify(ErrNotFound, t.schema.Table)
	}
	return nil
}

// Delete implements Table. Deleting a missing row is not an error.
func (t *PGTable[T]) Delete(ctx context.Context, id int64) error {
	if _, err := t.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", t.schema.Table), id); err != nil {
		return Classify(err, t.schema.Table)
	}
	return nil
}

// ReviewTable is a PGTable whose rows carry status, review_notes and reviewed_at.
type ReviewTable[T any] struct {
	*PGTable[T]
}

// NewReviewTable creates a table client for a reviewable form.
func NewReviewTable[T any](db DBTX, schema Schema[T]) *ReviewTable[T] {
	return &ReviewTable[T]{PGTable: NewPGTable(db, schema)}
}

// UpdateStatus sets the review outcome and returns the stored reviewed_at.
func (t *ReviewTable[T]) UpdateStatus(ctx context.Context, id int64, status, notes string) (time.Time, error) {
	q := fmt.Sprintf(`UPDATE %s SET status = $1, review_notes = $2, reviewed_at = NOW(), updated_at = NOW()
		WHERE id = $3 RETURNING reviewed_at`, t.schema.Table)
	var reviewedAt time.Time
	if err := t.db.QueryRow(ctx, q, status, notes, id).Scan(&reviewedAt); err != nil {
		return time.Time{}, Classify(err, t.schema.Table)
	}
	return reviewedAt, nil
}
