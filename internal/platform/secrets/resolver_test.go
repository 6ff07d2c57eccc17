package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessClient()
	resource := "projects/dslab/secrets/translate_token/versions/latest"
	client.values[resource] = "remote-token"

	resolver, err := NewResolver(ctx, "dslab", withClient(client), WithLocalFile(""))
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	defer resolver.Close()

	for i := 0; i < 2; i++ {
		got, err := resolver.ResolveSecret(ctx, "secret://translate_token")
		if err != nil {
			t.Fatalf("ResolveSecret returned error: %v", err)
		}
		if got != "remote-token" {
			t.Fatalf("expected remote-token, got %q", got)
		}
	}
	if calls := client.calls(resource); calls != 1 {
		t.Fatalf("expected one remote call, got %d", calls)
	}
}

func TestResolveHonoursVersionAndProject(t *testing.T) {
	ctx := context.Background()
	client := newFakeAccessClient()
	client.values["projects/other/secrets/bucket/versions/3"] = "pinned"

	resolver, err := NewResolver(ctx, "dslab", withClient(client), WithLocalFile(""))
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	got, err := resolver.ResolveSecret(ctx, "sm://bucket?version=3&project=other")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if got != "pinned" {
		t.Fatalf("expected pinned, got %q", got)
	}
}

func TestResolveFallsBackToLocalFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	if err := os.WriteFile(path, []byte("# dev\nsecret://translate_token=local-token\n"), 0o600); err != nil {
		t.Fatalf("write local secrets: %v", err)
	}

	client := newFakeAccessClient()
	client.errs["projects/dslab/secrets/translate_token/versions/latest"] = status.Error(codes.PermissionDenied, "denied")

	resolver, err := NewResolver(ctx, "dslab", withClient(client), WithLocalFile(path))
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	got, err := resolver.ResolveSecret(ctx, "secret://translate_token")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if got != "local-token" {
		t.Fatalf("expected local-token, got %q", got)
	}
}

func TestResolveMissingSecret(t *testing.T) {
	ctx := context.Background()
	resolver, err := NewResolver(ctx, "", withClient(newFakeAccessClient()), WithLocalFile(""))
	if err != nil {
		t.Fatalf("NewResolver returned error: %v", err)
	}
	if _, err := resolver.ResolveSecret(ctx, "secret://absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := resolver.ResolveSecret(ctx, "https://absent"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
}

type fakeAccessClient struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	counts map[string]int
}

func newFakeAccessClient() *fakeAccessClient {
	return &fakeAccessClient{
		values: map[string]string{},
		errs:   map[string]error{},
		counts: map[string]int{},
	}
}

func (f *fakeAccessClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[req.GetName()]++
	if err, ok := f.errs[req.GetName()]; ok {
		return nil, err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeAccessClient) Close() error { return nil }

func (f *fakeAccessClient) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}
