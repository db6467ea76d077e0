/*
Copyright © 2025 eslsoft

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/eslsoft/studydeck/internal/infrastructure/config"
	"github.com/eslsoft/studydeck/internal/infrastructure/database"
)

// dbInitCmd creates the flashcard schema for the configured driver.
// Note: go-sqlite3 requires a CGO_ENABLED=1 build.
var dbInitCmd = &cobra.Command{
	Use:   "db-init",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch cfg.DatabaseDriver() {
		case config.DriverPostgres:
			pool, cleanup, err := database.NewPool(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := database.MigratePostgres(ctx, pool); err != nil {
				return err
			}
		case config.DriverSQLite:
			if dir := filepath.Dir(cfg.Database.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create database directory: %w", err)
				}
			}
			db, cleanup, err := database.OpenSQLite(cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			if err := database.MigrateSQLite(ctx, db); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
		}

		cmd.Printf("schema ready (%s)\n", cfg.DatabaseDriver())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbInitCmd)
}
