package reset

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Object is a droppable structure in the current schema.
type Object struct {
	Kind string // SQL object keyword: TABLE, VIEW, FUNCTION, ...
	Name string
	Args string // identity arguments for functions and procedures
}

// DropStatement returns the cascading, idempotent DROP for o.
func DropStatement(o Object) string {
	target := pgx.Identifier{o.Name}.Sanitize()

	switch o.Kind {
	case "FUNCTION", "PROCEDURE", "AGGREGATE":
		target += "(" + o.Args + ")"
	}

	return fmt.Sprintf("DROP %s IF EXISTS %s CASCADE", o.Kind, target)
}

// Catalog enumerates and drops structures in the connected schema.
type Catalog interface {
	Objects(ctx context.Context) ([]Object, error)
	Drop(ctx context.Context, stmts []string) error
}

// DB is the subset of pgxpool.Pool the catalog needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Extensions installed into the schema are dropped themselves; the objects
// they own go with them and are never listed directly.
const objectsSQL = `
SELECT kind, name, args FROM (
    SELECT CASE c.relkind
               WHEN 'v' THEN 'VIEW'
               WHEN 'm' THEN 'MATERIALIZED VIEW'
               WHEN 'S' THEN 'SEQUENCE'
               ELSE 'TABLE'
           END AS kind,
           c.relname::text AS name,
           '' AS args,
           CASE c.relkind WHEN 'v' THEN 1 WHEN 'm' THEN 2 WHEN 'S' THEN 4 ELSE 3 END AS rank
    FROM pg_class c
    JOIN pg_namespace n ON n.oid = c.relnamespace
    WHERE n.nspname = current_schema()
      AND c.relkind IN ('r', 'p', 'v', 'm', 'S')
      AND NOT EXISTS (
          SELECT 1 FROM pg_depend d
          WHERE d.classid = 'pg_class'::regclass AND d.objid = c.oid AND d.deptype = 'e')
    UNION ALL
    SELECT 'EXTENSION', e.extname::text, '', 5
    FROM pg_extension e
    JOIN pg_namespace n ON n.oid = e.extnamespace
    WHERE n.nspname = current_schema()
    UNION ALL
    SELECT CASE p.prokind WHEN 'p' THEN 'PROCEDURE' WHEN 'a' THEN 'AGGREGATE' ELSE 'FUNCTION' END,
           p.proname::text,
           pg_get_function_identity_arguments(p.oid),
           6
    FROM pg_proc p
    JOIN pg_namespace n ON n.oid = p.pronamespace
    WHERE n.nspname = current_schema()
      AND NOT EXISTS (
          SELECT 1 FROM pg_depend d
          WHERE d.classid = 'pg_proc'::regclass AND d.objid = p.oid AND d.deptype = 'e')
    UNION ALL
    SELECT CASE t.typtype WHEN 'd' THEN 'DOMAIN' ELSE 'TYPE' END,
           t.typname::text,
           '',
           7
    FROM pg_type t
    JOIN pg_namespace n ON n.oid = t.typnamespace
    LEFT JOIN pg_class c ON c.oid = t.typrelid
    WHERE n.nspname = current_schema()
      AND (t.typtype IN ('e', 'r', 'd') OR (t.typtype = 'c' AND c.relkind = 'c'))
      AND NOT EXISTS (
          SELECT 1 FROM pg_depend d
          WHERE d.classid = 'pg_type'::regclass AND d.objid = t.oid AND d.deptype = 'e')
) objects
ORDER BY rank, name, args`

type pgCatalog struct {
	db DB
}

// NewCatalog returns a Catalog over the current_schema() of db.
func NewCatalog(db DB) Catalog {
	return &pgCatalog{db: db}
}

func (c *pgCatalog) Objects(ctx context.Context) ([]Object, error) {
	rows, err := c.db.Query(ctx, objectsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing schema objects: %w", err)
	}

	objects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Object, error) {
		var o Object
		err := row.Scan(&o.Kind, &o.Name, &o.Args)

		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning schema objects: %w", err)
	}

	return objects, nil
}

func (c *pgCatalog) Drop(ctx context.Context, stmts []string) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
