// Package plan implements the synchronization decision engine: it selects,
// filters and deduplicates the set of images to replicate.
package plan

import (
	"context"
	"errors"
	"time"

	"github.com/bnema/crossrepo/internal/boundaries/out"
	"github.com/bnema/crossrepo/internal/domain"
	"github.com/bnema/crossrepo/pkg/logger"
)

// Service builds a RunPlan from live registry metadata.
type Service struct {
	source      out.Registry
	destination out.Registry
	now         func() time.Time
}

// NewService creates a new plan service.
func NewService(source, destination out.Registry) *Service {
	return &Service{
		source:      source,
		destination: destination,
		now:         time.Now,
	}
}

// BuildPlan lists the source account, applies the policy filters, derives
// the destination repositories that must be created, and drops candidates
// whose digest already matches the destination. Candidate order follows
// source listing order; every image in one run shares the same evaluation
// date.
func (s *Service) BuildPlan(ctx context.Context, policy domain.SyncPolicy) (*domain.RunPlan, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	logger.Info("retrieving source repositories")
	sourceRepos, err := s.source.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info("retrieving destination repositories")
	destRepos, err := s.destination.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}
	destNames := make(map[string]struct{}, len(destRepos))
	for _, repo := range destRepos {
		destNames[repo.Name] = struct{}{}
	}

	evalDate := s.now()

	var selected []domain.SyncCandidate
	var missing []string
	queued := make(map[string]struct{})

	for _, repo := range sourceRepos {
		images, err := s.source.ListImages(ctx, repo.Name)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			logger.Info("repository is empty, skipping", "repository", repo.Name)
			continue
		}

		for _, img := range images {
			candidate, ok := filter(img, evalDate, policy)
			if !ok {
				continue
			}
			selected = append(selected, candidate)

			// Each missing repository is queued for creation at most once,
			// in order of first encounter.
			if _, exists := destNames[img.RepositoryName]; !exists {
				if _, seen := queued[img.RepositoryName]; !seen {
					queued[img.RepositoryName] = struct{}{}
					missing = append(missing, img.RepositoryName)
				}
			}
		}
	}

	candidates, err := s.dedupAgainstDestination(ctx, selected)
	if err != nil {
		return nil, err
	}

	logger.Info("plan complete",
		"images", len(candidates),
		"missing_repositories", len(missing))

	return &domain.RunPlan{
		Candidates:          candidates,
		MissingRepositories: missing,
	}, nil
}

// filter applies the untagged, age and scan policies to one image.
func filter(img domain.Image, evalDate time.Time, policy domain.SyncPolicy) (domain.SyncCandidate, bool) {
	candidate := domain.SyncCandidate{Image: img}

	logger.Info("found image", "image", img.Reference())
	if !img.Tagged() && !policy.IgnoreUntagged {
		logger.Info("image is not tagged, skipping")
		candidate.Reason = domain.ReasonUntagged
		return candidate, false
	}

	candidate.Age = img.AgeDays(evalDate)
	if candidate.Age > policy.MaxAgeDays {
		logger.Info("image is too old, skipping", "age_days", candidate.Age)
		candidate.Reason = domain.ReasonStale
		return candidate, false
	}
	logger.Debug("image age within window", "age_days", candidate.Age)

	if policy.RequireScan && !img.Scanned() {
		logger.Info("image is not scanned, skipping")
		candidate.Reason = domain.ReasonUnscanned
		return candidate, false
	}

	return candidate, true
}

// dedupAgainstDestination keeps only the candidates whose content is absent
// at the destination. Byte equality of digests is the sole criterion for
// "already replicated"; a matching tag alone proves nothing, since a tag
// may have been moved to new content. Untagged candidates cannot be
// compared by tag and always copy.
func (s *Service) dedupAgainstDestination(ctx context.Context, selected []domain.SyncCandidate) ([]domain.SyncCandidate, error) {
	candidates := make([]domain.SyncCandidate, 0, len(selected))

	for _, candidate := range selected {
		if !candidate.Image.Tagged() {
			candidate.Copy = true
			candidates = append(candidates, candidate)
			continue
		}

		ref := candidate.Image.Reference()
		logger.Info("checking destination for image", "image", ref)

		destImage, err := s.destination.DescribeImage(ctx, candidate.Image.RepositoryName, candidate.Image.Tag())
		switch {
		case errors.Is(err, domain.ErrImageNotFound), errors.Is(err, domain.ErrRepositoryNotFound):
			candidate.Copy = true
		case err != nil:
			return nil, err
		case destImage.Digest != candidate.Image.Digest:
			candidate.Copy = true
		default:
			logger.Info("image already in sync, skipping", "image", ref)
			candidate.Reason = domain.ReasonInSync
			continue
		}

		logger.Info("image will be copied", "image", ref)
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}
