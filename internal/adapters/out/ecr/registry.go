// Package ecr implements the Registry output port against AWS ECR using
// the AWS SDK v2.
package ecr

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsecr "github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"

	"github.com/bnema/crossrepo/internal/domain"
	"github.com/bnema/crossrepo/pkg/logger"
)

// api is the subset of the ECR client the adapter depends on.
type api interface {
	DescribeRepositories(ctx context.Context, params *awsecr.DescribeRepositoriesInput, optFns ...func(*awsecr.Options)) (*awsecr.DescribeRepositoriesOutput, error)
	DescribeImages(ctx context.Context, params *awsecr.DescribeImagesInput, optFns ...func(*awsecr.Options)) (*awsecr.DescribeImagesOutput, error)
	CreateRepository(ctx context.Context, params *awsecr.CreateRepositoryInput, optFns ...func(*awsecr.Options)) (*awsecr.CreateRepositoryOutput, error)
	GetAuthorizationToken(ctx context.Context, params *awsecr.GetAuthorizationTokenInput, optFns ...func(*awsecr.Options)) (*awsecr.GetAuthorizationTokenOutput, error)
	DescribeRegistry(ctx context.Context, params *awsecr.DescribeRegistryInput, optFns ...func(*awsecr.Options)) (*awsecr.DescribeRegistryOutput, error)
}

// Registry implements the out.Registry port for one profile/region pair.
type Registry struct {
	client  api
	profile string
	region  string
}

// NewRegistry creates a registry backed by the shared AWS config for the
// given named profile and region.
func NewRegistry(ctx context.Context, profile, region string) (*Registry, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithSharedConfigProfile(profile),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		// A missing or broken profile points at ~/.aws/config, not at AWS.
		return nil, fmt.Errorf("%w: loading AWS config for profile %q: %v", domain.ErrInvalidInputFile, profile, err)
	}

	logger.Debug("ECR client initialized", "profile", profile, "region", region)
	return &Registry{
		client:  awsecr.NewFromConfig(cfg),
		profile: profile,
		region:  region,
	}, nil
}

// NewRegistryWithClient creates a registry with a custom client (for testing).
func NewRegistryWithClient(client api, profile, region string) *Registry {
	return &Registry{client: client, profile: profile, region: region}
}

func (r *Registry) identity() string {
	return r.profile + ":" + r.region
}

func (r *Registry) remoteErr(op, unit string, err error) error {
	return &domain.RemoteError{Class: domain.ErrRegistry, Op: op, Unit: unit, Err: err}
}

// ListRepositories returns every repository of the account, following
// pagination.
func (r *Registry) ListRepositories(ctx context.Context) ([]domain.Repository, error) {
	logger.Debug("retrieving repositories", "registry", r.identity())

	var repos []domain.Repository
	var token *string
	for {
		out, err := r.client.DescribeRepositories(ctx, &awsecr.DescribeRepositoriesInput{NextToken: token})
		if err != nil {
			return nil, r.remoteErr("describe-repositories", r.identity(), err)
		}
		for _, repo := range out.Repositories {
			repos = append(repos, domain.Repository{
				Name: aws.ToString(repo.RepositoryName),
				URI:  aws.ToString(repo.RepositoryUri),
			})
		}
		if out.NextToken == nil {
			return repos, nil
		}
		token = out.NextToken
	}
}

// ListImages returns the repository's image metadata, following pagination.
func (r *Registry) ListImages(ctx context.Context, repositoryName string) ([]domain.Image, error) {
	logger.Info("retrieving images for repository", "registry", r.identity(), "repository", repositoryName)

	var images []domain.Image
	var token *string
	for {
		out, err := r.client.DescribeImages(ctx, &awsecr.DescribeImagesInput{
			RepositoryName: aws.String(repositoryName),
			NextToken:      token,
		})
		if err != nil {
			return nil, r.remoteErr("describe-images", repositoryName, err)
		}
		for _, detail := range out.ImageDetails {
			images = append(images, imageFromDetail(detail))
		}
		if out.NextToken == nil {
			return images, nil
		}
		token = out.NextToken
	}
}

// DescribeImage returns the image carrying the given tag, or
// domain.ErrImageNotFound / domain.ErrRepositoryNotFound.
func (r *Registry) DescribeImage(ctx context.Context, repositoryName, tag string) (domain.Image, error) {
	out, err := r.client.DescribeImages(ctx, &awsecr.DescribeImagesInput{
		RepositoryName: aws.String(repositoryName),
		ImageIds:       []ecrtypes.ImageIdentifier{{ImageTag: aws.String(tag)}},
	})

	var imageNotFound *ecrtypes.ImageNotFoundException
	var repoNotFound *ecrtypes.RepositoryNotFoundException
	switch {
	case errors.As(err, &imageNotFound):
		return domain.Image{}, fmt.Errorf("%w: %s:%s", domain.ErrImageNotFound, repositoryName, tag)
	case errors.As(err, &repoNotFound):
		return domain.Image{}, fmt.Errorf("%w: %s", domain.ErrRepositoryNotFound, repositoryName)
	case err != nil:
		return domain.Image{}, r.remoteErr("describe-images", repositoryName+":"+tag, err)
	}

	if len(out.ImageDetails) == 0 {
		return domain.Image{}, fmt.Errorf("%w: %s:%s", domain.ErrImageNotFound, repositoryName, tag)
	}
	return imageFromDetail(out.ImageDetails[0]), nil
}

// CreateRepository creates a repository at the account. An existing
// repository is reported as domain.ErrRepositoryExists so callers can
// treat the race with a concurrent run as benign.
func (r *Registry) CreateRepository(ctx context.Context, name string, scanOnPush bool) error {
	logger.Debug("creating repository", "registry", r.identity(), "repository", name)

	input := &awsecr.CreateRepositoryInput{RepositoryName: aws.String(name)}
	if scanOnPush {
		input.ImageScanningConfiguration = &ecrtypes.ImageScanningConfiguration{ScanOnPush: true}
	}

	_, err := r.client.CreateRepository(ctx, input)
	var exists *ecrtypes.RepositoryAlreadyExistsException
	if errors.As(err, &exists) {
		return fmt.Errorf("%w: %s", domain.ErrRepositoryExists, name)
	}
	if err != nil {
		return r.remoteErr("create-repository", name, err)
	}
	return nil
}

// GetCredential obtains the account's short-lived login secret. The
// authorization token decodes to "user:password".
func (r *Registry) GetCredential(ctx context.Context) (domain.Credential, error) {
	logger.Info("retrieving credentials", "registry", r.identity())

	out, err := r.client.GetAuthorizationToken(ctx, &awsecr.GetAuthorizationTokenInput{})
	if err != nil {
		return domain.Credential{}, r.remoteErr("get-authorization-token", r.identity(), err)
	}
	if len(out.AuthorizationData) == 0 {
		return domain.Credential{}, r.remoteErr("get-authorization-token", r.identity(), errors.New("no authorization data returned"))
	}

	raw, err := base64.StdEncoding.DecodeString(aws.ToString(out.AuthorizationData[0].AuthorizationToken))
	if err != nil {
		return domain.Credential{}, r.remoteErr("get-authorization-token", r.identity(), fmt.Errorf("malformed authorization token: %w", err))
	}
	username, password, ok := strings.Cut(string(raw), ":")
	if !ok {
		return domain.Credential{}, r.remoteErr("get-authorization-token", r.identity(), errors.New("malformed authorization token"))
	}

	return domain.Credential{Username: username, Password: password}, nil
}

// DescribeRegistry resolves the account's registry FQDN from its id.
func (r *Registry) DescribeRegistry(ctx context.Context) (string, error) {
	out, err := r.client.DescribeRegistry(ctx, &awsecr.DescribeRegistryInput{})
	if err != nil {
		return "", r.remoteErr("describe-registry", r.identity(), err)
	}
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", aws.ToString(out.RegistryId), r.region), nil
}

func imageFromDetail(detail ecrtypes.ImageDetail) domain.Image {
	img := domain.Image{
		RepositoryName: aws.ToString(detail.RepositoryName),
		Digest:         aws.ToString(detail.ImageDigest),
		Tags:           detail.ImageTags,
		PushedAt:       aws.ToTime(detail.ImagePushedAt),
	}
	if detail.ImageScanStatus != nil {
		img.ScanStatus = string(detail.ImageScanStatus.Status)
	}
	return img
}
