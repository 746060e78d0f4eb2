// Package cmd wires the crossrepo CLI.
package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bnema/crossrepo/internal/adapters/out/docker"
	"github.com/bnema/crossrepo/internal/adapters/out/ecr"
	"github.com/bnema/crossrepo/internal/config"
	"github.com/bnema/crossrepo/internal/domain"
	"github.com/bnema/crossrepo/internal/usecase/plan"
	"github.com/bnema/crossrepo/internal/usecase/sync"
	"github.com/bnema/crossrepo/pkg/logger"
	"github.com/bnema/crossrepo/pkg/parallel"
)

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	var (
		days        int
		ignoreTags  bool
		requireScan bool
		concurrency int64
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "crossrepo <src-profile> <src-region> <dst-profile> <dst-region>",
		Short: "Smart synchronization of container images between two AWS ECR accounts",
		Long: `crossrepo decides which images of a source ECR account must be
replicated into a destination account, creates missing repositories,
and copies the images through the local container runtime.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 4 {
				return fmt.Errorf("%w: expected <src-profile> <src-region> <dst-profile> <dst-region>", domain.ErrInvalidArgument)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("days") {
				cfg.Days = days
			}
			if cmd.Flags().Changed("ignore-tags") {
				cfg.IgnoreTags = ignoreTags
			}
			if cmd.Flags().Changed("require-scan") {
				cfg.RequireScan = requireScan
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Concurrency = concurrency
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			log := logger.GetLogger()
			log.SetLogLevel(cfg.LogLevel)
			log.ConfigureFromEnv()

			return runSync(cmd.Context(), args[0], args[1], args[2], args[3], cfg)
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 30, "how recent images to synchronize, in calendar days")
	cmd.Flags().BoolVarP(&ignoreTags, "ignore-tags", "t", false, "clone even not tagged images")
	cmd.Flags().BoolVarP(&requireScan, "require-scan", "s", false, "clone only scanned images")
	cmd.Flags().Int64Var(&concurrency, "concurrency", 0, "maximum concurrent operations per phase (0 = unbounded)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(NewVersionCommand())

	return cmd
}

func runSync(ctx context.Context, srcProfile, srcRegion, dstProfile, dstRegion string, cfg *config.Config) error {
	for _, profile := range []string{srcProfile, dstProfile} {
		if err := config.ValidateProfile(profile); err != nil {
			return err
		}
	}
	for _, region := range []string{srcRegion, dstRegion} {
		if err := config.ValidateRegion(region); err != nil {
			return err
		}
	}

	policy := domain.SyncPolicy{
		MaxAgeDays:     cfg.Days,
		IgnoreUntagged: cfg.IgnoreTags,
		RequireScan:    cfg.RequireScan,
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	source, err := ecr.NewRegistry(ctx, srcProfile, srcRegion)
	if err != nil {
		return err
	}
	destination, err := ecr.NewRegistry(ctx, dstProfile, dstRegion)
	if err != nil {
		return err
	}
	runtime, err := docker.NewRuntime()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRuntime, err)
	}

	planner := plan.NewService(source, destination)
	runPlan, err := planner.BuildPlan(ctx, policy)
	if err != nil {
		return err
	}

	color.Cyan("Number of images to sync: %d", len(runPlan.Candidates))
	for _, candidate := range runPlan.Candidates {
		fmt.Printf("  %s\n", candidate.Image.Reference())
	}

	executor := parallel.NewExecutor(cfg.Concurrency)
	orchestrator := sync.NewService(source, destination, runtime, executor, cfg.ScanOnPush)

	report, err := orchestrator.Run(ctx, runPlan)
	if err != nil {
		color.Red("Synchronization failed: %v", err)
		return err
	}

	color.Green("All images were synchronized (%d of %d)", report.ImagesPushed, report.ImagesPlanned)
	return nil
}
