package cloud

import (
	"context"
	"errors"
	"testing"
	"time"

	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

// testProvider is a simple Provider implementation used for cache tests.
type testProvider struct {
	calls int
	node  *core.Node
	err   error
}

func (p *testProvider) Node(ctx context.Context, id string) (*core.Node, error) {
	p.calls++
	return p.node, p.err
}

func TestCacheSetAndGet(t *testing.T) {
	cache := NewCache(5 * time.Minute)

	key := "aws/i-1"
	node := &core.Node{
		ID:       "i-1",
		Tag:      "web",
		Location: &core.Location{ID: "us-west-2a", Parent: &core.Location{ID: "123456789012"}},
	}

	cache.Set(key, node)

	got, ok := cache.Get(key)
	if !ok {
		t.Fatalf("expected cache hit for key %q", key)
	}
	if got.ID != node.ID || got.Tag != node.Tag || got.Location.Parent.ID != "123456789012" {
		t.Fatalf("unexpected node from cache: got %+v, want %+v", got, node)
	}

	got.Location.Parent.ID = "mutated"
	again, _ := cache.Get(key)
	if again.Location.Parent.ID != "123456789012" {
		t.Fatalf("cache returned shared state, got %q", again.Location.Parent.ID)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	cache := NewCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("aws/i-2", &core.Node{ID: "i-2"})

	now = now.Add(2 * time.Minute)

	if _, ok := cache.Get("aws/i-2"); ok {
		t.Fatalf("expected cache entry to be expired")
	}
}

func TestCacheGetOrFetch_UsesProviderAndCaches(t *testing.T) {
	p := &testProvider{node: &core.Node{ID: "i-3"}}
	cache := NewCache(5 * time.Minute)
	ctx := context.Background()

	// First call should hit the provider.
	n1, err := cache.GetOrFetch(ctx, p, "aws/i-3", "i-3")
	if err != nil {
		t.Fatalf("GetOrFetch returned error: %v", err)
	}
	if n1 == nil || n1.ID != "i-3" {
		t.Fatalf("unexpected node from GetOrFetch: %+v", n1)
	}
	if p.calls != 1 {
		t.Fatalf("expected provider to be called once, got %d", p.calls)
	}

	// Second call should come from cache without calling the provider again.
	n2, err := cache.GetOrFetch(ctx, p, "aws/i-3", "i-3")
	if err != nil {
		t.Fatalf("GetOrFetch (cached) returned error: %v", err)
	}
	if n2 == nil || n2.ID != "i-3" {
		t.Fatalf("unexpected cached node from GetOrFetch: %+v", n2)
	}
	if p.calls != 1 {
		t.Fatalf("expected provider to be called once after cache hit, got %d", p.calls)
	}
}

func TestCachingProvider_DoesNotCacheNotFound(t *testing.T) {
	p := &testProvider{err: core.ErrNotFound}
	cp := NewCachingProvider(ProviderAWS, p, NewCache(time.Minute))

	for i := 0; i < 2; i++ {
		if _, err := cp.Node(context.Background(), "i-404"); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if p.calls != 2 {
		t.Fatalf("expected not-found to bypass the cache, got %d calls", p.calls)
	}
}

func TestCachingProvider_WithEnricherIsIdempotent(t *testing.T) {
	p := &testProvider{node: &core.Node{
		ID:    "i-5",
		Image: &core.Image{ID: "ami-1", DefaultCredentials: &core.Credentials{Account: "ubuntu"}},
	}}
	e := core.NewEnricher(NewCachingProvider(ProviderAWS, p, NewCache(time.Minute)), nil, nil)

	for i := 0; i < 2; i++ {
		node, ok, err := e.FetchAndEnrich(context.Background(), "i-5")
		if err != nil || !ok {
			t.Fatalf("FetchAndEnrich = (%v, %v, %v)", node, ok, err)
		}
		if node.Credentials == nil || node.Credentials.Account != "ubuntu" {
			t.Fatalf("unexpected credentials on call %d: %+v", i, node.Credentials)
		}
	}
	if p.node.Credentials != nil {
		t.Fatalf("provider's record was mutated")
	}
	if p.calls != 1 {
		t.Errorf("expected one provider call, got %d", p.calls)
	}
}

func TestNewProvider_UnknownProvider(t *testing.T) {
	if _, err := NewProvider(context.Background(), "non-existent-provider", Options{}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unknown provider, got %v", err)
	}
}

func TestRegisterProvider_UsedByNewProvider(t *testing.T) {
	p := &testProvider{node: &core.Node{ID: "x"}}
	var got Options
	RegisterProvider("test-provider", func(_ context.Context, opts Options) (Provider, error) {
		got = opts
		return p, nil
	})
	t.Cleanup(func() { delete(providerRegistry, "test-provider") })

	prov, err := NewProvider(context.Background(), "test-provider", Options{})
	if err != nil {
		t.Fatalf("NewProvider returned error: %v", err)
	}
	if prov != Provider(p) {
		t.Fatalf("NewProvider returned %#v", prov)
	}
	if got.TagKey != DefaultTagKey || got.Catalog == nil || got.Logger == nil {
		t.Errorf("defaults not applied: %+v", got)
	}

	names := ProviderNames()
	for _, want := range []string{ProviderAWS, ProviderGCE, ProviderKube, "test-provider"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("ProviderNames() = %v, missing %q", names, want)
		}
	}
}
