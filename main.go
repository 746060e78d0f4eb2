package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/crossrepo/internal/cli/cmd"
	"github.com/bnema/crossrepo/internal/domain"
	"github.com/bnema/crossrepo/pkg/logger"
	"github.com/bnema/crossrepo/pkg/version"
)

// Build information, injected via -ldflags.
var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

const (
	exitInvalidArgument = 1
	exitInvalidFile     = 2
	exitShell           = 11
	exitRegistry        = 21
	exitRuntime         = 22
)

func main() {
	version.Set(buildVersion, buildCommit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cmd.NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the domain error taxonomy onto the documented exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return exitInvalidArgument
	case errors.Is(err, domain.ErrInvalidInputFile):
		return exitInvalidFile
	case errors.Is(err, domain.ErrRegistry):
		return exitRegistry
	case errors.Is(err, domain.ErrRuntime):
		return exitRuntime
	default:
		return exitShell
	}
}
