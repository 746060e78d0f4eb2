// Package sync implements the concurrent execution orchestrator: three
// strictly ordered fan-out phases with partial-failure accounting.
package sync

import (
	"context"
	"errors"
	"strings"

	"github.com/bnema/crossrepo/internal/boundaries/out"
	"github.com/bnema/crossrepo/internal/domain"
	"github.com/bnema/crossrepo/pkg/logger"
	"github.com/bnema/crossrepo/pkg/parallel"
)

// Service drives a RunPlan to completion against the two registries and
// the local container runtime.
type Service struct {
	source      out.Registry
	destination out.Registry
	runtime     out.ContainerRuntime
	executor    *parallel.Executor
	scanOnPush  bool
}

// NewService creates a new sync service. scanOnPush applies to every
// repository created during provisioning.
func NewService(source, destination out.Registry, runtime out.ContainerRuntime, executor *parallel.Executor, scanOnPush bool) *Service {
	return &Service{
		source:      source,
		destination: destination,
		runtime:     runtime,
		executor:    executor,
		scanOnPush:  scanOnPush,
	}
}

type endpoints struct {
	source      string
	destination string
}

// Run executes provisioning, authentication and replication in that order.
// A phase only starts once every unit of the previous phase has reported,
// and an incomplete phase fails the run before the next one begins. The
// returned report is valid even on error.
func (s *Service) Run(ctx context.Context, plan *domain.RunPlan) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RepositoriesPlanned: len(plan.MissingRepositories),
		ImagesPlanned:       len(plan.Candidates),
	}

	if err := s.provisionRepositories(ctx, plan.MissingRepositories, report); err != nil {
		return report, err
	}

	eps, err := s.authenticate(ctx, report)
	if err != nil {
		return report, err
	}

	if err := s.replicate(ctx, plan.Candidates, eps, report); err != nil {
		return report, err
	}

	return report, nil
}

// provisionRepositories creates every missing destination repository
// concurrently. Replication must never start against repositories known to
// be absent, so any shortfall is fatal.
func (s *Service) provisionRepositories(ctx context.Context, missing []string, report *domain.RunReport) error {
	if len(missing) == 0 {
		return nil
	}

	logger.Info("creating missing destination repositories", "repositories", missing)

	tasks := make([]parallel.Task, 0, len(missing))
	for _, name := range missing {
		name := name
		tasks = append(tasks, parallel.Task{
			Unit: name,
			Run: func(ctx context.Context) error {
				err := s.destination.CreateRepository(ctx, name, s.scanOnPush)
				if errors.Is(err, domain.ErrRepositoryExists) {
					// A concurrent run beat us to it; the repository is there.
					logger.Warn("repository already exists", "repository", name)
					return nil
				}
				if err != nil {
					logger.Error("repository creation failed", "repository", name, "error", err)
					return err
				}
				logger.Info("repository created", "repository", name)
				return nil
			},
		})
	}

	outcomes := s.executor.Execute(ctx, tasks)
	succeeded := parallel.Succeeded(outcomes)
	report.RepositoriesCreated = succeeded

	logger.Info("repository provisioning finished", "succeeded", succeeded, "attempted", len(missing))
	if succeeded < len(missing) {
		return &domain.PartialError{
			Phase:     "provisioning",
			Class:     domain.ErrRegistry,
			Succeeded: succeeded,
			Attempted: len(missing),
			Failures:  parallel.Failures(outcomes),
		}
	}
	return nil
}

// authenticate resolves both registry endpoints, then runs exactly two
// concurrent units: credential retrieval plus runtime login for the source
// and for the destination. Every image transfer pulls from one side and
// pushes to the other, so either login failing is fatal.
func (s *Service) authenticate(ctx context.Context, report *domain.RunReport) (endpoints, error) {
	sourceEndpoint, err := s.source.DescribeRegistry(ctx)
	if err != nil {
		return endpoints{}, err
	}
	destEndpoint, err := s.destination.DescribeRegistry(ctx)
	if err != nil {
		return endpoints{}, err
	}

	loginTask := func(registry out.Registry, endpoint string) parallel.Task {
		return parallel.Task{
			Unit: endpoint,
			Run: func(ctx context.Context) error {
				logger.Info("retrieving registry credential", "endpoint", endpoint)
				credential, err := registry.GetCredential(ctx)
				if err != nil {
					return err
				}
				if err := s.runtime.Login(ctx, endpoint, credential.Username, credential.Password); err != nil {
					return err
				}
				logger.Info("runtime login succeeded", "endpoint", endpoint)
				return nil
			},
		}
	}

	outcomes := s.executor.Execute(ctx, []parallel.Task{
		loginTask(s.source, sourceEndpoint),
		loginTask(s.destination, destEndpoint),
	})
	succeeded := parallel.Succeeded(outcomes)
	report.LoginsSucceeded = succeeded

	logger.Info("authentication finished", "succeeded", succeeded, "attempted", 2)
	if succeeded < 2 {
		return endpoints{}, &domain.PartialError{
			Phase:     "authentication",
			Class:     domain.ErrRuntime,
			Succeeded: succeeded,
			Attempted: 2,
			Failures:  parallel.Failures(outcomes),
		}
	}

	return endpoints{source: sourceEndpoint, destination: destEndpoint}, nil
}

// replicate runs one pull/tag/push unit per candidate. Units are
// independent and unordered relative to each other; the three runtime
// operations inside one unit are strictly sequential.
func (s *Service) replicate(ctx context.Context, candidates []domain.SyncCandidate, eps endpoints, report *domain.RunReport) error {
	if len(candidates) == 0 {
		logger.Info("nothing to replicate")
		return nil
	}

	tasks := make([]parallel.Task, 0, len(candidates))
	for _, candidate := range candidates {
		tasks = append(tasks, s.replicationTask(candidate, eps))
	}

	outcomes := s.executor.Execute(ctx, tasks)
	succeeded := parallel.Succeeded(outcomes)
	report.ImagesPushed = succeeded

	logger.Info("replication finished", "succeeded", succeeded, "attempted", len(candidates))
	if succeeded < len(candidates) {
		return &domain.PartialError{
			Phase:     "replication",
			Class:     domain.ErrRegistry,
			Succeeded: succeeded,
			Attempted: len(candidates),
			Failures:  parallel.Failures(outcomes),
		}
	}
	return nil
}

func (s *Service) replicationTask(candidate domain.SyncCandidate, eps endpoints) parallel.Task {
	img := candidate.Image

	var pullRef, pushRef string
	if img.Tagged() {
		name := img.RepositoryName + ":" + img.Tag()
		pullRef = eps.source + "/" + name
		pushRef = eps.destination + "/" + name
	} else {
		// An untagged image can only be addressed by digest on the pull
		// side, and needs a synthesized tag to be pushable at all.
		pullRef = eps.source + "/" + img.RepositoryName + "@" + img.Digest
		pushRef = eps.destination + "/" + img.RepositoryName + ":" + syntheticTag(img.Digest)
	}

	return parallel.Task{
		Unit: img.Reference(),
		Run: func(ctx context.Context) error {
			logger.Info("pulling image", "ref", pullRef)
			if err := s.runtime.PullImage(ctx, pullRef); err != nil {
				logger.Error("pull failed", "ref", pullRef, "error", err)
				return err
			}

			logger.Info("tagging image", "source", pullRef, "target", pushRef)
			if err := s.runtime.TagImage(ctx, pullRef, pushRef); err != nil {
				logger.Error("tag failed", "ref", pushRef, "error", err)
				return err
			}

			logger.Info("pushing image", "ref", pushRef)
			if err := s.runtime.PushImage(ctx, pushRef); err != nil {
				logger.Error("push failed", "ref", pushRef, "error", err)
				return err
			}

			logger.Info("image synchronized", "image", img.Reference())
			return nil
		},
	}
}

// syntheticTag derives a destination tag from a digest's hex prefix.
func syntheticTag(digest string) string {
	hex := strings.TrimPrefix(digest, "sha256:")
	if len(hex) > 12 {
		hex = hex[:12]
	}
	return "untagged-" + hex
}
