package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type stubSource struct {
	mu      sync.Mutex
	version string
	rows    []TenantRouting
	verErr  error
	loadErr error
	loads   int
}

func (s *stubSource) Version(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.verErr
}

func (s *stubSource) Load(ctx context.Context) ([]TenantRouting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.rows, nil
}

func (s *stubSource) set(version string, rows []TenantRouting, loadErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = version
	s.rows = rows
	s.loadErr = loadErr
}

func TestResolver_ActiveRoutingResolves(t *testing.T) {
	src := &stubSource{}
	src.set("v1", []TenantRouting{
		{TenantID: "tenant_abc", NumberID: "num_1", PhoneNumber: "+14255550100", Active: true},
		{TenantID: "tenant_off", NumberID: "num_2", PhoneNumber: "+14255550101", Active: false},
	}, nil)
	r := NewResolver(src, nil)

	routing, ok := r.Resolve(context.Background(), "+14255550100")
	if !ok {
		t.Fatalf("expected active routing to resolve")
	}
	if routing.TenantID != "tenant_abc" {
		t.Fatalf("expected tenant_abc, got %q", routing.TenantID)
	}
}

func TestResolver_InactiveAndUnmappedAreMisses(t *testing.T) {
	src := &stubSource{}
	src.set("v1", []TenantRouting{
		{TenantID: "tenant_off", NumberID: "num_2", PhoneNumber: "+14255550101", Active: false},
	}, nil)
	r := NewResolver(src, nil)

	if _, ok := r.Resolve(context.Background(), "+14255550101"); ok {
		t.Fatalf("inactive routing must not resolve")
	}
	if _, ok := r.Resolve(context.Background(), "+19999999999"); ok {
		t.Fatalf("unmapped number must not resolve")
	}
	if _, ok := r.Resolve(context.Background(), "no digits here"); ok {
		t.Fatalf("unnormalizable input must not resolve")
	}
}

func TestResolver_FractionalFormatsConverge(t *testing.T) {
	src := &stubSource{}
	src.set("v1", []TenantRouting{
		{TenantID: "tenant_abc", NumberID: "num_1", PhoneNumber: "(425) 555-0100", Active: true},
	}, nil)
	r := NewResolver(src, nil)

	for _, form := range []string{
		"+14255550100",
		"14255550100",
		"4255550100",
		"425.555.0100",
		"1-425-555-0100",
		"0014255550100",
	} {
		routing, ok := r.Resolve(context.Background(), form)
		if !ok {
			t.Fatalf("form %q did not resolve", form)
		}
		if routing.TenantID != "tenant_abc" {
			t.Fatalf("form %q resolved to %q", form, routing.TenantID)
		}
	}
}

func TestResolver_ReloadsOnlyOnVersionChange(t *testing.T) {
	src := &stubSource{}
	src.set("v1", []TenantRouting{{TenantID: "t1", PhoneNumber: "+14255550100", Active: true}}, nil)
	r := NewResolver(src, nil)

	for i := 0; i < 5; i++ {
		r.Resolve(context.Background(), "+14255550100")
	}
	if src.loads != 1 {
		t.Fatalf("expected a single load for a stable version, got %d", src.loads)
	}

	src.set("v2", []TenantRouting{{TenantID: "t2", PhoneNumber: "+14255550100", Active: true}}, nil)
	routing, ok := r.Resolve(context.Background(), "+14255550100")
	if !ok || routing.TenantID != "t2" {
		t.Fatalf("expected the new table after version change, got %+v ok=%v", routing, ok)
	}
	if src.loads != 2 {
		t.Fatalf("expected exactly two loads, got %d", src.loads)
	}
}

func TestResolver_FailedReloadKeepsPreviousCache(t *testing.T) {
	src := &stubSource{}
	src.set("v1", []TenantRouting{{TenantID: "t1", PhoneNumber: "+14255550100", Active: true}}, nil)
	r := NewResolver(src, nil)
	if _, ok := r.Resolve(context.Background(), "+14255550100"); !ok {
		t.Fatalf("seed resolve failed")
	}

	src.set("v2", nil, errors.New("backing store down"))
	routing, ok := r.Resolve(context.Background(), "+14255550100")
	if !ok || routing.TenantID != "t1" {
		t.Fatalf("previous cache must survive a failed reload, got %+v ok=%v", routing, ok)
	}
}

func TestResolver_ConcurrentReadsDuringRefresh(t *testing.T) {
	src := &stubSource{}
	src.set("v1", []TenantRouting{{TenantID: "t1", PhoneNumber: "+14255550100", Active: true}}, nil)
	r := NewResolver(src, nil)
	r.Resolve(context.Background(), "+14255550100")

	src.set("v2", []TenantRouting{{TenantID: "t1", PhoneNumber: "+14255550100", Active: true}}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Resolve(context.Background(), "+14255550100"); !ok {
				t.Errorf("resolve missed during refresh")
			}
		}()
	}
	wg.Wait()
}

func TestNormalizeE164(t *testing.T) {
	cases := []struct{ in, want string }{
		{"+14255550100", "+14255550100"},
		{"(425) 555-0100", "+14255550100"},
		{"1 425 555 0100", "+14255550100"},
		{"0014255550100", "+14255550100"},
		{"+442071838750", "+442071838750"},
		{"", ""},
		{"anonymous", ""},
	}
	for _, tc := range cases {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
