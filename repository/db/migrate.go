package db

import (
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migration applies all pending migrations from migratePath against dbStr.
// An already up-to-date schema is not an error.
func Migration(dbStr, migratePath string) error {
	if dbStr == "" {
		return fmt.Errorf("empty database connection string")
	}
	if migratePath == "" {
		return fmt.Errorf("empty migrations path")
	}

	m, err := migrate.New("file://"+migratePath, dbStr)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Println("[WARN] Failed to close migration source:", srcErr)
		}
		if dbErr != nil {
			log.Println("[WARN] Failed to close migration database handle:", dbErr)
		}
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
