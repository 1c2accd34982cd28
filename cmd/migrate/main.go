// Command migrate applies append-only, integrity-checked SQL migrations to a
// PostgreSQL database.
package main

import "github.com/aqasim81/migration-ledger/internal/cli"

func main() {
	cli.Execute()
}
