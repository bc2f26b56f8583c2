//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/oshokin/docker-image-updater/internal/config"
	"github.com/oshokin/docker-image-updater/internal/domain/image"
	"github.com/oshokin/docker-image-updater/internal/logger"
	"github.com/oshokin/docker-image-updater/internal/version"
)

// DefaultCallTimeout bounds inspect requests unless overridden.
const DefaultCallTimeout = 30 * time.Second

// errPullFailed wraps error messages reported inside a pull stream.
var errPullFailed = errors.New("pull failed")

// Client wraps the Docker Engine API client with the two calls the updater needs.
type Client struct {
	// api is the underlying Docker SDK client.
	api *client.Client

	// callTimeout is the default timeout for inspect calls. Pulls are bounded by the caller.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for inspect calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// Dial creates a Docker client from the "config.docker" settings.
// Unset settings fall back to DOCKER_HOST, DOCKER_API_VERSION, DOCKER_CERT_PATH and DOCKER_TLS_VERIFY.
// No connection is made until the first call.
func Dial(ctx context.Context, settings config.DockerSettings, opts ...Option) (*Client, error) {
	clientOptions := []client.Opt{
		client.FromEnv,
		client.WithUserAgent(version.UserAgent()),
	}

	if settings.BaseURL != "" {
		clientOptions = append(clientOptions, client.WithHost(settings.BaseURL))
	}

	if settings.Version != "" {
		clientOptions = append(clientOptions, client.WithVersion(settings.Version))
	} else {
		clientOptions = append(clientOptions, client.WithAPIVersionNegotiation())
	}

	if settings.Timeout > 0 {
		clientOptions = append(clientOptions, client.WithTimeout(settings.Timeout.Std()))
	}

	if tls := settings.TLS; tls != nil {
		clientOptions = append(clientOptions, client.WithTLSClientConfig(tls.CACert, tls.Cert, tls.Key))
	}

	api, err := client.NewClientWithOpts(clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	c := &Client{
		api:         api,
		callTimeout: DefaultCallTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	logger.DebugKV(ctx, "Docker client created", "host", api.DaemonHost(), "version", settings.Version)

	return c, nil
}

// Close releases the underlying HTTP transport.
func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}

	return c.api.Close()
}

// InspectImage returns the content identity of the local image ref.
// A missing image is reported as image.ErrNotFound.
func (c *Client) InspectImage(ctx context.Context, ref string) (image.ID, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	inspect, _, err := c.api.ImageInspectWithRaw(callCtx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return image.NoID, fmt.Errorf("%w: %s: %w", image.ErrNotFound, ref, err)
		}

		return image.NoID, fmt.Errorf("inspect image %s: %w", ref, err)
	}

	return image.ID(inspect.ID), nil
}

// PullImage starts pulling ref and returns its progress stream.
// The caller must drain and close the stream for the pull to complete.
func (c *Client) PullImage(ctx context.Context, ref string) (image.PullStream, error) {
	//nolint:exhaustruct // Registry credentials come from the daemon defaults.
	body, err := c.api.ImagePull(ctx, ref, dockerimage.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("pull image %s: %w", ref, err)
	}

	return NewPullStream(body), nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// PullStream decodes the JSON progress messages the daemon sends during a pull.
type PullStream struct {
	// body is the raw response body.
	body io.ReadCloser
	// decoder reads one jsonmessage.JSONMessage at a time.
	decoder *json.Decoder
}

// NewPullStream wraps a pull response body.
func NewPullStream(body io.ReadCloser) *PullStream {
	return &PullStream{
		body:    body,
		decoder: json.NewDecoder(body),
	}
}

// Next returns the next progress event, io.EOF once the daemon has finished.
// Errors reported by the daemon inside the stream are returned as errors.
func (s *PullStream) Next() (image.PullEvent, error) {
	var message jsonmessage.JSONMessage

	if err := s.decoder.Decode(&message); err != nil {
		if errors.Is(err, io.EOF) {
			return image.PullEvent{}, io.EOF
		}

		return image.PullEvent{}, fmt.Errorf("decode pull progress: %w", err)
	}

	if message.Error != nil {
		return image.PullEvent{}, fmt.Errorf("%w: %w", errPullFailed, message.Error)
	}

	if message.ErrorMessage != "" {
		return image.PullEvent{}, fmt.Errorf("%w: %s", errPullFailed, message.ErrorMessage)
	}

	event := image.PullEvent{
		Layer:  message.ID,
		Status: message.Status,
	}

	if message.Progress != nil {
		event.Current = message.Progress.Current
		event.Total = message.Progress.Total
	}

	return event, nil
}

// Close releases the response body.
func (s *PullStream) Close() error {
	return s.body.Close()
}
