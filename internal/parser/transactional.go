package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// NonTransactional lists the statements in sql that cannot run inside a
// single transaction block: PostgreSQL refuses them there, or they would end
// the surrounding transaction. Each entry reads "statement N: KIND" with N
// counted from 1. A nil slice means the script can run as one atomic unit.
func NonTransactional(sql string) ([]string, error) {
	result, err := Parse(sql)
	if err != nil {
		return nil, err
	}

	var found []string

	for i, stmt := range result.Stmts {
		if kind := nonTransactionalKind(stmt.Stmt); kind != "" {
			found = append(found, fmt.Sprintf("statement %d: %s", i+1, kind))
		}
	}

	return found, nil
}

func nonTransactionalKind(node *pg_query.Node) string {
	if node == nil {
		return ""
	}

	switch n := node.Node.(type) {
	case *pg_query.Node_IndexStmt:
		if n.IndexStmt != nil && n.IndexStmt.Concurrent {
			return "CREATE INDEX CONCURRENTLY"
		}
	case *pg_query.Node_ReindexStmt:
		if n.ReindexStmt != nil && hasOption(n.ReindexStmt.Params, "concurrently") {
			return "REINDEX CONCURRENTLY"
		}
	case *pg_query.Node_VacuumStmt:
		if n.VacuumStmt != nil && n.VacuumStmt.IsVacuumcmd {
			return "VACUUM"
		}
	case *pg_query.Node_CreatedbStmt:
		return "CREATE DATABASE"
	case *pg_query.Node_DropdbStmt:
		return "DROP DATABASE"
	case *pg_query.Node_CreateTableSpaceStmt:
		return "CREATE TABLESPACE"
	case *pg_query.Node_DropTableSpaceStmt:
		return "DROP TABLESPACE"
	case *pg_query.Node_AlterSystemStmt:
		return "ALTER SYSTEM"
	case *pg_query.Node_TransactionStmt:
		return transactionControlKind(n.TransactionStmt)
	}

	return ""
}

// transactionControlKind flags statements that would open, close, or
// prepare a transaction. Savepoints nest safely and are allowed.
func transactionControlKind(stmt *pg_query.TransactionStmt) string {
	if stmt == nil {
		return ""
	}

	switch stmt.Kind {
	case pg_query.TransactionStmtKind_TRANS_STMT_BEGIN, pg_query.TransactionStmtKind_TRANS_STMT_START:
		return "BEGIN"
	case pg_query.TransactionStmtKind_TRANS_STMT_COMMIT:
		return "COMMIT"
	case pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK:
		return "ROLLBACK"
	case pg_query.TransactionStmtKind_TRANS_STMT_PREPARE:
		return "PREPARE TRANSACTION"
	case pg_query.TransactionStmtKind_TRANS_STMT_COMMIT_PREPARED:
		return "COMMIT PREPARED"
	case pg_query.TransactionStmtKind_TRANS_STMT_ROLLBACK_PREPARED:
		return "ROLLBACK PREPARED"
	default:
		return ""
	}
}

func hasOption(params []*pg_query.Node, name string) bool {
	for _, p := range params {
		if def, ok := p.Node.(*pg_query.Node_DefElem); ok && def.DefElem != nil && def.DefElem.Defname == name {
			return true
		}
	}

	return false
}
