package commands

import (
	"github.com/spf13/cobra"

	"flank/internal/cli"
	"flank/internal/config"
	"flank/internal/migration"
)

// MigrateCommand handles the migrate command
type MigrateCommand struct {
	config    *config.Config
	flags     *cli.Flags
	dbManager *migration.DatabaseManager
}

// NewMigrateCommand creates a new MigrateCommand
func NewMigrateCommand(cfg *config.Config, flags *cli.Flags, dbManager *migration.DatabaseManager) *MigrateCommand {
	return &MigrateCommand{
		config:    cfg,
		flags:     flags,
		dbManager: dbManager,
	}
}

// Execute runs the command
func (mc *MigrateCommand) Execute(cmd *cobra.Command, args []string) error {
	src, err := timingSource(mc.config)
	if err != nil {
		return err
	}
	return migration.NewTimingMigrator(src, mc.dbManager).Run(cmd.Context(), migration.Options{
		Fresh: mc.flags.Fresh,
		Seed:  mc.config.ResolvePath(mc.flags.Seed),
	})
}
