// Package entdriver implements storage.Driver on ent's SQL dialect layer.
// The sqlite and postgres packages open a database and hand it to New.
package entdriver

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"github.com/papercomputeco/relay/pkg/storage"
)

// EntDriver implements storage.Driver using an ent SQL driver.
type EntDriver struct {
	Driver *entsql.Driver
}

// New wraps db with ent's SQL driver for the given dialect and runs the
// auto-migration for the turns table.
func New(ctx context.Context, dialect string, db *sql.DB) (*EntDriver, error) {
	drv := entsql.OpenDB(dialect, db)

	migrate, err := schema.NewMigrate(drv)
	if err != nil {
		return nil, fmt.Errorf("preparing migration: %w", err)
	}

	// Append-only: new tables, columns and indexes.
	if err := migrate.Create(ctx, Tables...); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &EntDriver{Driver: drv}, nil
}

func (d *EntDriver) Put(ctx context.Context, turn *storage.Turn) error {
	if turn == nil {
		return storage.ErrNilTurn
	}

	query, args := entsql.Dialect(d.Driver.Dialect()).
		Insert(TurnsTable.Name).
		Columns(columnNames()...).
		Values(
			turn.ID, turn.User, turn.ConversationID, turn.MessageID, turn.TaskID,
			turn.Query, turn.Answer, string(turn.Status), turn.Streaming, turn.EventCount,
			turn.Error, turn.StartedAt.UTC(), turn.CompletedAt.UTC(),
		).
		OnConflict(
			entsql.ConflictColumns(ColumnID),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if err := d.Driver.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("storing turn %s: %w", turn.ID, err)
	}
	return nil
}

func (d *EntDriver) Get(ctx context.Context, id string) (*storage.Turn, error) {
	turns, err := d.query(ctx, d.selectTurns().Where(entsql.EQ(ColumnID, id)))
	if err != nil {
		return nil, fmt.Errorf("loading turn %s: %w", id, err)
	}
	if len(turns) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}
	return turns[0], nil
}

func (d *EntDriver) ListByConversation(ctx context.Context, user, conversationID string) ([]*storage.Turn, error) {
	sel := d.selectTurns().
		Where(entsql.And(
			entsql.EQ(ColumnUser, user),
			entsql.EQ(ColumnConversationID, conversationID),
		)).
		OrderBy(ColumnStartedAt, ColumnID)

	turns, err := d.query(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}
	return turns, nil
}

// Close closes the underlying database.
func (d *EntDriver) Close() error {
	return d.Driver.Close()
}

func (d *EntDriver) selectTurns() *entsql.Selector {
	return entsql.Dialect(d.Driver.Dialect()).
		Select(columnNames()...).
		From(entsql.Table(TurnsTable.Name))
}

func (d *EntDriver) query(ctx context.Context, sel *entsql.Selector) ([]*storage.Turn, error) {
	query, args := sel.Query()

	var rows entsql.Rows
	if err := d.Driver.Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []*storage.Turn{}
	for rows.Next() {
		var (
			turn   storage.Turn
			status string
		)
		err := rows.Scan(
			&turn.ID, &turn.User, &turn.ConversationID, &turn.MessageID, &turn.TaskID,
			&turn.Query, &turn.Answer, &status, &turn.Streaming, &turn.EventCount,
			&turn.Error, &turn.StartedAt, &turn.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}

		turn.Status = storage.TurnStatus(status)
		turn.StartedAt = turn.StartedAt.UTC()
		turn.CompletedAt = turn.CompletedAt.UTC()
		turns = append(turns, &turn)
	}
	return turns, rows.Err()
}
