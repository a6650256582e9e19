// Package migrations embeds the account store schema into the binary.
//
// Importing it (usually blank) registers the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-accounts/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
