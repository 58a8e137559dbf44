package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"flank/internal/cli"
	"flank/internal/config"
	"flank/internal/discovery"
	"flank/internal/timing"
	"flank/internal/ui"
)

// PlanCommand handles the plan command
type PlanCommand struct {
	config    *config.Config
	flags     *cli.Flags
	scanner   *discovery.Scanner
	formatter *ui.Formatter
}

// NewPlanCommand creates a new PlanCommand
func NewPlanCommand(cfg *config.Config, flags *cli.Flags, scanner *discovery.Scanner, formatter *ui.Formatter) *PlanCommand {
	return &PlanCommand{
		config:    cfg,
		flags:     flags,
		scanner:   scanner,
		formatter: formatter,
	}
}

// Execute runs the command
func (pc *PlanCommand) Execute(cmd *cobra.Command, args []string) error {
	cases, err := loadCases(pc.config, pc.scanner)
	if err != nil {
		return err
	}
	if len(cases) == 0 {
		color.Yellow("No tests to plan")
		return nil
	}

	src, err := timingSource(pc.config)
	if err != nil {
		return err
	}
	backend, store := openTimings(cmd.Context(), src)
	defer closeBackend(backend)

	shards, strategy, err := newPlanner(pc.config, store).PlanWithStrategy(cases)
	if err != nil {
		return err
	}

	pc.formatter.PrintPlan(shards, strategy, pc.flags.Verbose)
	if store.Len() > 0 {
		color.White("Timing coverage: %d of %d case(s)", timing.Coverage(store, cases), len(cases))
	}
	return nil
}
