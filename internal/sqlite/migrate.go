package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// migrateTo brings the live schema in line with schemaDefinition without hand-written migrations.
//
// The target schema is created in a scratch in-memory database attached as "target" and compared entry by entry
// with sqlite_schema. Removed tables are dropped, new tables are created and changed tables are rebuilt following
// https://www.sqlite.org/lang_altertable.html#otheralter, copying the columns both versions share. Indexes and
// triggers are then dropped and recreated wherever their SQL differs.
func (db *Database) migrateTo(ctx context.Context, schemaDefinition string) (err error) {
	start := time.Now()

	detach, err := db.attachTarget(ctx, schemaDefinition)
	if err != nil {
		return fmt.Errorf("attach target schema: %w", err)
	}
	defer detach()

	// Rebuilding a table temporarily breaks references to it.
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, fmt.Errorf("enable foreign keys: %w", fkErr))
		}
	}()

	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer db.Rollback(ctx, tx)()

	if err = db.migrateTables(ctx, tx); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	for _, typ := range []string{"trigger", "index"} {
		if err = db.migrateEntities(ctx, tx, typ); err != nil {
			return fmt.Errorf("migrate %ss: %w", typ, err)
		}
	}

	if _, err = tx.ExecContext(ctx, "PRAGMA foreign_key_check"); err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database", slog.Duration("duration", time.Since(start)))
	return nil
}

func (db *Database) attachTarget(ctx context.Context, schemaDefinition string) (func(), error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", rand.Text())
	target, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open target: %w", err)
	}
	// The shared in-memory database lives as long as one connection is open, so keep target open until detach.
	if _, err = target.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, errors.Join(fmt.Errorf("create target schema: %w", err), target.Close())
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS target", dsn); err != nil {
		return nil, errors.Join(fmt.Errorf("attach: %w", err), target.Close())
	}
	return func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE target"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to detach target schema", slog.Any("error", detachErr))
		}
		if closeErr := target.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "failed to close target schema", slog.Any("error", closeErr))
		}
	}, nil
}

const (
	// Tables present live but not in the target.
	removedQuery = `SELECT live.name
FROM main.sqlite_schema AS live
         LEFT JOIN target.sqlite_schema AS t ON t.name = live.name AND t.type = live.type
WHERE live.type = :type AND t.name IS NULL AND live.name NOT LIKE 'sqlite_%'`
	// Target entries missing from the live schema.
	addedQuery = `SELECT t.sql
FROM target.sqlite_schema AS t
         LEFT JOIN main.sqlite_schema AS live ON live.name = t.name AND live.type = t.type
WHERE t.type = :type AND live.name IS NULL AND t.name NOT LIKE 'sqlite_%' AND t.sql IS NOT NULL`
	// Entries whose SQL differs. Renaming a table quotes its name, so quotes are ignored.
	changedQuery = `SELECT live.name, t.sql
FROM main.sqlite_schema AS live
         JOIN target.sqlite_schema AS t ON t.name = live.name AND t.type = live.type
WHERE live.type = :type AND live.name NOT LIKE 'sqlite_%'
  AND REPLACE(live.sql, '"', '') <> REPLACE(t.sql, '"', '')`
)

func (db *Database) migrateTables(ctx context.Context, tx *sql.Tx) error {
	removed, err := queryStrings(ctx, tx, removedQuery, sql.Named("type", "table"))
	if err != nil {
		return fmt.Errorf("query removed tables: %w", err)
	}
	for _, name := range removed {
		if err = db.exec(ctx, tx, fmt.Sprintf("DROP TABLE %s", name)); err != nil {
			return err
		}
	}

	added, err := queryStrings(ctx, tx, addedQuery, sql.Named("type", "table"))
	if err != nil {
		return fmt.Errorf("query added tables: %w", err)
	}
	for _, createSQL := range added {
		if err = db.exec(ctx, tx, createSQL); err != nil {
			return err
		}
	}

	changed, err := queryPairs(ctx, tx, changedQuery, sql.Named("type", "table"))
	if err != nil {
		return fmt.Errorf("query changed tables: %w", err)
	}
	for _, table := range changed {
		if err = db.rebuildTable(ctx, tx, table.name, table.sql); err != nil {
			return fmt.Errorf("rebuild %s: %w", table.name, err)
		}
	}
	return nil
}

// rebuildTable creates the new version under a temporary name, copies shared columns and swaps it in.
func (db *Database) rebuildTable(ctx context.Context, tx *sql.Tx, name, createSQL string) error {
	tmp := name + "_migration_tmp"
	columns, err := queryStrings(ctx, tx, `SELECT '"' || live.name || '"'
FROM pragma_table_info(:table) AS live
         JOIN pragma_table_info(:table, 'target') AS t ON t.name = live.name`, sql.Named("table", name))
	if err != nil {
		return fmt.Errorf("query shared columns: %w", err)
	}
	shared := strings.Join(columns, ", ")
	for _, stmt := range []string{
		strings.Replace(createSQL, name, tmp, 1),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", tmp, shared, shared, name), //nolint:gosec // schema names.
		fmt.Sprintf("DROP TABLE %s", name),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", tmp, name),
	} {
		if err = db.exec(ctx, tx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrateEntities synchronises indexes or triggers. Rebuilt tables lose theirs, which the added query picks up.
func (db *Database) migrateEntities(ctx context.Context, tx *sql.Tx, typ string) error {
	removed, err := queryStrings(ctx, tx, removedQuery, sql.Named("type", typ))
	if err != nil {
		return fmt.Errorf("query removed: %w", err)
	}
	for _, name := range removed {
		if err = db.exec(ctx, tx, fmt.Sprintf("DROP %s %s", strings.ToUpper(typ), name)); err != nil {
			return err
		}
	}

	changed, err := queryPairs(ctx, tx, changedQuery, sql.Named("type", typ))
	if err != nil {
		return fmt.Errorf("query changed: %w", err)
	}
	for _, entity := range changed {
		if err = db.exec(ctx, tx, fmt.Sprintf("DROP %s %s", strings.ToUpper(typ), entity.name)); err != nil {
			return err
		}
		if err = db.exec(ctx, tx, entity.sql); err != nil {
			return err
		}
	}

	added, err := queryStrings(ctx, tx, addedQuery, sql.Named("type", typ))
	if err != nil {
		return fmt.Errorf("query added: %w", err)
	}
	for _, createSQL := range added {
		if err = db.exec(ctx, tx, createSQL); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) exec(ctx context.Context, tx *sql.Tx, stmt string) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "migration statement", slog.String("query", stmt))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("exec %q: %w", stmt, err)
	}
	return nil
}

func queryStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) (_ []string, err error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()
	var results []string
	for rows.Next() {
		var s string
		if err = rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		results = append(results, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return results, nil
}

type schemaEntry struct {
	name string
	sql  string
}

func queryPairs(ctx context.Context, tx *sql.Tx, query string, args ...any) (_ []schemaEntry, err error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()
	var results []schemaEntry
	for rows.Next() {
		var e schemaEntry
		if err = rows.Scan(&e.name, &e.sql); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		results = append(results, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return results, nil
}
