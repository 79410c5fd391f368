package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sdejongh/foldermirror/pkg/logging"
	"github.com/sdejongh/foldermirror/pkg/output"
)

// NewCompareCommand creates the compare command
func NewCompareCommand() *cobra.Command {
	var (
		flags      MirrorFlags
		planFile   string
		planFormat string
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Show what a pass would change (dry-run)",
		Long: `Scan source and replica and print the operations a pass would apply,
phase by phase, without touching the replica.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, &flags, planFile, planFormat)
		},
	}

	flags.addRootFlags(cmd)
	flags.addPassFlags(cmd)
	cmd.Flags().StringVar(&planFile, "plan-file", "", "write the plan to a file instead of stdout")
	cmd.Flags().StringVarP(&planFormat, "format", "f", "human", "plan format: human, json")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("replica")

	return cmd
}

func runCompare(cmd *cobra.Command, flags *MirrorFlags, planFile, planFormat string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if planFormat != output.FormatHuman && planFormat != output.FormatJSON {
		return fmt.Errorf("invalid plan format: %s (valid: human, json)", planFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyFlagsToConfig(cfg, flags); err != nil {
		return err
	}

	source, replica, err := resolveRoots(flags)
	if err != nil {
		return err
	}

	var logger logging.Logger = logging.NewNullLogger()
	if globalFlags.Verbose {
		logger = logging.NewConsoleLogger(os.Stderr, logging.DebugLevel)
	}

	engine, cleanup, err := newEngine(cfg, source, replica, true, nil, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	plan, err := engine.Plan(ctx)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if planFile != "" {
		if err := output.WritePlanFile(plan, planFile, planFormat); err != nil {
			return fmt.Errorf("failed to write plan: %w", err)
		}
		if !globalFlags.Quiet {
			fmt.Printf("Plan written to: %s\n", planFile)
		}
		return nil
	}

	return output.WritePlan(plan, os.Stdout, planFormat)
}
