package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

const (
	defaultLocalFile = ".secrets.local"
	meterName        = "github.com/tsuyoshi-3110/dslab571/internal/platform/secrets"
)

// ErrNotFound is returned when neither Secret Manager nor the local file holds the secret.
var ErrNotFound = errors.New("secrets: secret not found")

type accessClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var newAccessClient = func(ctx context.Context, opts ...option.ClientOption) (accessClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// Resolver resolves secret://name[?version=N&project=P] references against Secret Manager,
// caching values for the process lifetime. A local KEY=VALUE file serves development.
type Resolver struct {
	client     accessClient
	ownsClient bool
	projectID  string
	localPath  string
	logger     *zap.Logger
	lookups    metric.Int64Counter

	localOnce sync.Once
	local     map[string]string

	mu    sync.RWMutex
	cache map[string]string
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithLocalFile overrides the development fallback file; an empty path disables it.
func WithLocalFile(path string) Option {
	return func(r *Resolver) {
		r.localPath = strings.TrimSpace(path)
	}
}

func withClient(client accessClient) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// NewResolver builds a Resolver for the given default project. When the Secret Manager
// client cannot be created the resolver serves only local values.
func NewResolver(ctx context.Context, projectID string, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		projectID: strings.TrimSpace(projectID),
		localPath: defaultLocalFile,
		logger:    zap.NewNop(),
		cache:     make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	counter, err := otel.GetMeterProvider().Meter(meterName).Int64Counter(
		"secrets.lookups",
		metric.WithDescription("Secret reference lookups by source"),
	)
	if err != nil {
		r.logger.Warn("secrets: unable to register lookup counter", zap.Error(err))
	}
	r.lookups = counter

	if r.client == nil {
		client, err := newAccessClient(ctx)
		if err != nil {
			r.logger.Warn("secrets: secret manager unavailable, using local values only", zap.Error(err))
		} else {
			r.client = client
			r.ownsClient = true
		}
	}
	return r, nil
}

// Close releases the Secret Manager client when the resolver created it.
func (r *Resolver) Close() error {
	if r == nil || !r.ownsClient || r.client == nil {
		return nil
	}
	return r.client.Close()
}

// ResolveSecret satisfies config.SecretResolver.
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	parsed, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	r.mu.RLock()
	value, ok := r.cache[parsed.key()]
	r.mu.RUnlock()
	if ok {
		r.count(ctx, "cache")
		return value, nil
	}

	project := parsed.project
	if project == "" {
		project = r.projectID
	}
	if r.client != nil && project != "" {
		value, err := r.access(ctx, project, parsed)
		if err == nil {
			r.store(parsed, value)
			r.count(ctx, "remote")
			return value, nil
		}
		r.logger.Debug("secrets: remote lookup failed, trying local values", zap.String("secret", parsed.name), zap.Error(err))
	}

	if value, ok := r.localValue(parsed); ok {
		r.store(parsed, value)
		r.count(ctx, "local")
		return value, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, parsed.name)
}

func (r *Resolver) access(ctx context.Context, project string, ref secretRef) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, ref.name, ref.version)
	retry := gax.WithRetry(func() gax.Retryer {
		return gax.OnCodes([]codes.Code{codes.Unavailable, codes.DeadlineExceeded}, gax.Backoff{
			Initial:    100 * time.Millisecond,
			Max:        2 * time.Second,
			Multiplier: 2,
		})
	})
	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name}, retry)
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (r *Resolver) store(ref secretRef, value string) {
	r.mu.Lock()
	r.cache[ref.key()] = value
	r.mu.Unlock()
}

func (r *Resolver) count(ctx context.Context, source string) {
	if r.lookups == nil {
		return
	}
	r.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

func (r *Resolver) localValue(ref secretRef) (string, bool) {
	r.localOnce.Do(func() {
		r.local = map[string]string{}
		if r.localPath == "" {
			return
		}
		file, err := os.Open(r.localPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				r.logger.Warn("secrets: unable to open local secrets", zap.String("path", r.localPath), zap.Error(err))
			}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			parsed, err := parseRef(strings.TrimSpace(key))
			if err != nil {
				continue
			}
			r.local[parsed.name] = strings.TrimSpace(value)
		}
	})
	value, ok := r.local[ref.name]
	return value, ok
}

type secretRef struct {
	name    string
	version string
	project string
}

func (s secretRef) key() string {
	return s.project + "/" + s.name + "#" + s.version
}

func parseRef(ref string) (secretRef, error) {
	trimmed := strings.TrimSpace(ref)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		trimmed = "secret://" + rest
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return secretRef{}, fmt.Errorf("secrets: invalid reference %q: %w", ref, err)
	}
	if u.Scheme != "secret" {
		return secretRef{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return secretRef{}, fmt.Errorf("secrets: missing secret name in %q", ref)
	}
	version := strings.TrimSpace(u.Query().Get("version"))
	if version == "" {
		version = "latest"
	}
	return secretRef{
		name:    name,
		version: version,
		project: strings.TrimSpace(u.Query().Get("project")),
	}, nil
}
