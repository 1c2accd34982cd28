package ledger

// TableName is the ledger table. A full reset drops it along with the rest of the schema.
const TableName = "migration_ledger"

// createSchemaSQL is the DDL for the migration ledger.
const createSchemaSQL = `CREATE TABLE IF NOT EXISTS ` + TableName + ` (
    sequence_number   INTEGER PRIMARY KEY,
    display_name      TEXT NOT NULL,
    fingerprint       CHAR(64) NOT NULL,
    status            TEXT NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
    executed_at       TIMESTAMPTZ,
    execution_time_ms BIGINT,
    error_detail      TEXT
)`
