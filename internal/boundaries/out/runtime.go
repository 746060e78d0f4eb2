package out

import "context"

// ContainerRuntime defines the image transfer operations the orchestrator
// drives against the local container engine.
type ContainerRuntime interface {
	// Login authenticates the runtime against a registry endpoint.
	Login(ctx context.Context, serverAddress, username, password string) error

	// PullImage pulls a fully-qualified image reference.
	PullImage(ctx context.Context, ref string) error

	// TagImage applies targetRef to the local image known as sourceRef.
	TagImage(ctx context.Context, sourceRef, targetRef string) error

	// PushImage pushes a fully-qualified image reference.
	PushImage(ctx context.Context, ref string) error
}
