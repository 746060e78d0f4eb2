// Package out defines output ports (interfaces) for infrastructure.
// These interfaces define the contract between use cases and driven
// adapters (AWS ECR, Docker Engine).
package out

import (
	"context"

	"github.com/bnema/crossrepo/internal/domain"
)

// Registry defines read/write operations against one registry account and
// region. Implementations are self-contained remote calls with no
// client-local mutable state and are safe for concurrent use.
type Registry interface {
	// ListRepositories returns the account's repositories in listing order.
	ListRepositories(ctx context.Context) ([]domain.Repository, error)

	// ListImages returns the repository's image metadata in listing order.
	ListImages(ctx context.Context, repositoryName string) ([]domain.Image, error)

	// DescribeImage returns the image carrying the given tag, or
	// domain.ErrImageNotFound when no such tagged image exists.
	DescribeImage(ctx context.Context, repositoryName, tag string) (domain.Image, error)

	// CreateRepository creates a repository, optionally with scan-on-push
	// enabled. An existing repository surfaces as domain.ErrRepositoryExists.
	CreateRepository(ctx context.Context, name string, scanOnPush bool) error

	// GetCredential obtains a short-lived login secret for the account.
	GetCredential(ctx context.Context) (domain.Credential, error)

	// DescribeRegistry resolves the account's registry endpoint FQDN.
	DescribeRegistry(ctx context.Context) (string, error)
}
