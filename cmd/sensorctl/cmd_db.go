package main

import (
	"github.com/bakerysensors/hub/internal/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Apply pending database migrations",
	Annotations: map[string]string{skipService: "true"},
	RunE:        runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cmd.Context(), db); err != nil {
		return err
	}
	migrations, err := database.LoadMigrations(db.Dialect())
	if err != nil {
		return err
	}
	return printJSON(cmd, map[string]interface{}{
		"success":    true,
		"dialect":    db.Dialect(),
		"migrations": len(migrations),
	})
}
