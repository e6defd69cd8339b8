package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viperadnan-git/playdl/internal/core/item"
)

type hostResolver struct {
	name   string
	host   string
	result Result
	calls  int
}

func (h *hostResolver) Name() string { return h.name }

func (h *hostResolver) Resolve(_ context.Context, url string) (Result, error) {
	h.calls++
	if url != "https://"+h.host+"/show" {
		return Result{}, ErrNotApplicable
	}
	return h.result, nil
}

func TestRegistryFirstClaimWins(t *testing.T) {
	a := &hostResolver{name: "a", host: "a.example", result: Result{Items: []*item.Item{item.New(1, "x", "u", "t")}}}
	b := &hostResolver{name: "b", host: "b.example", result: Result{MinDuration: time.Minute}}
	b2 := &hostResolver{name: "b2", host: "b.example"}

	reg := NewRegistry()
	reg.Register(a)
	reg.Register(b)
	reg.Register(b2)

	res, err := reg.Resolve(context.Background(), "https://b.example/show")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.MinDuration != time.Minute {
		t.Fatalf("got result from wrong resolver: %+v", res)
	}
	if a.calls != 1 || b.calls != 1 || b2.calls != 0 {
		t.Fatalf("calls a=%d b=%d b2=%d", a.calls, b.calls, b2.calls)
	}
	if got := reg.List(); len(got) != 3 || got[0] != "a" {
		t.Fatalf("List = %v", got)
	}
}

func TestRegistryNoneApplicable(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&hostResolver{name: "a", host: "a.example"})
	_, err := reg.Resolve(context.Background(), "https://other.example/show")
	if !errors.Is(err, ErrNotApplicable) {
		t.Fatalf("Resolve = %v, want ErrNotApplicable", err)
	}
}

type fakeLister struct {
	out   []byte
	proxy string
}

func (f *fakeLister) FlatPlaylist(_ context.Context, _ string, proxy string) ([]byte, error) {
	f.proxy = proxy
	return f.out, nil
}

func TestFlat(t *testing.T) {
	lister := &fakeLister{out: []byte(`{"id": "b", "title": "second", "ie_key": "Youtube"}
{"id": "a", "title": "first", "ie_key": "Youtube"}
`)}
	res, err := NewFlat(lister, "http://proxy:3128", false).Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lister.proxy != "http://proxy:3128" {
		t.Fatalf("proxy = %q", lister.proxy)
	}
	if len(res.Items) != 2 || res.Items[0].ID != "a" || res.Items[0].Index != 1 {
		t.Fatalf("items = %+v", res.Items)
	}

	if _, err := NewFlat(lister, "", false).Resolve(context.Background(), "[{}]"); !errors.Is(err, ErrNotApplicable) {
		t.Fatalf("non-URL should not be claimed, got %v", err)
	}
}
