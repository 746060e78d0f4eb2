// Package docker implements the container runtime adapter using the
// Docker Engine API.
package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/distribution/reference"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"

	"github.com/bnema/crossrepo/internal/domain"
	"github.com/bnema/crossrepo/pkg/logger"
)

// apiClient is the subset of the Docker client the adapter depends on.
type apiClient interface {
	RegistryLogin(ctx context.Context, auth registry.AuthConfig) (registry.AuthenticateOKBody, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, imageRef string, options image.PushOptions) (io.ReadCloser, error)
}

// Runtime implements the ContainerRuntime port using the Docker Engine API.
// Login caches one auth payload per server address; pulls and pushes attach
// the payload matching their reference's registry.
type Runtime struct {
	client apiClient

	mu    sync.RWMutex
	auths map[string]string
}

// NewRuntime creates a runtime connected to the local Docker daemon.
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &Runtime{client: cli, auths: make(map[string]string)}, nil
}

// NewRuntimeWithClient creates a runtime with a custom client (for testing).
func NewRuntimeWithClient(cli apiClient) *Runtime {
	return &Runtime{client: cli, auths: make(map[string]string)}
}

func (r *Runtime) remoteErr(op, unit string, err error) error {
	return &domain.RemoteError{Class: domain.ErrRuntime, Op: op, Unit: unit, Err: err}
}

// Login authenticates against a registry endpoint and caches the encoded
// auth payload for subsequent pulls and pushes to that endpoint.
func (r *Runtime) Login(ctx context.Context, serverAddress, username, password string) error {
	logger.Info("runtime login", "server", serverAddress)

	authConfig := registry.AuthConfig{
		Username:      username,
		Password:      password,
		ServerAddress: serverAddress,
	}

	if _, err := r.client.RegistryLogin(ctx, authConfig); err != nil {
		return r.remoteErr("login", serverAddress, err)
	}

	// Docker API accepts both StdEncoding and URLEncoding; Podman is
	// stricter, so StdEncoding it is.
	payload, err := json.Marshal(authConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal auth config: %w", err)
	}

	r.mu.Lock()
	r.auths[serverAddress] = base64.StdEncoding.EncodeToString(payload)
	r.mu.Unlock()

	return nil
}

// PullImage pulls a fully-qualified reference and waits for the transfer
// to finish. Transfer failures surface in the progress stream, not in the
// initial call.
func (r *Runtime) PullImage(ctx context.Context, ref string) error {
	if _, err := reference.ParseAnyReference(ref); err != nil {
		return r.remoteErr("pull", ref, fmt.Errorf("invalid reference: %w", err))
	}

	rc, err := r.client.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: r.authFor(ref)})
	if err != nil {
		return r.remoteErr("pull", ref, err)
	}
	defer rc.Close()

	if err := drainProgress(rc); err != nil {
		return r.remoteErr("pull", ref, err)
	}
	return nil
}

// TagImage applies targetRef to the local image known as sourceRef.
func (r *Runtime) TagImage(ctx context.Context, sourceRef, targetRef string) error {
	if err := r.client.ImageTag(ctx, sourceRef, targetRef); err != nil {
		return r.remoteErr("tag", targetRef, err)
	}
	return nil
}

// PushImage pushes a fully-qualified reference and waits for the transfer
// to finish.
func (r *Runtime) PushImage(ctx context.Context, ref string) error {
	if _, err := reference.ParseAnyReference(ref); err != nil {
		return r.remoteErr("push", ref, fmt.Errorf("invalid reference: %w", err))
	}

	rc, err := r.client.ImagePush(ctx, ref, image.PushOptions{RegistryAuth: r.authFor(ref)})
	if err != nil {
		return r.remoteErr("push", ref, err)
	}
	defer rc.Close()

	if err := drainProgress(rc); err != nil {
		return r.remoteErr("push", ref, err)
	}
	return nil
}

// authFor returns the cached auth payload for the reference's registry,
// or empty when the endpoint was never logged in.
func (r *Runtime) authFor(ref string) string {
	server := ref
	if idx := strings.Index(ref, "/"); idx > 0 {
		server = ref[:idx]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.auths[server]
}

// drainProgress consumes a pull/push progress stream to completion and
// returns the first error message it carries.
func drainProgress(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var msg struct {
			Error       string `json:"error"`
			ErrorDetail struct {
				Message string `json:"message"`
			} `json:"errorDetail"`
		}
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read progress stream: %w", err)
		}
		if msg.Error != "" {
			return errors.New(msg.Error)
		}
		if msg.ErrorDetail.Message != "" {
			return errors.New(msg.ErrorDetail.Message)
		}
	}
}
