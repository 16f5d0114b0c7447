package engine

import (
	"context"
	"testing"
)

func mapGetter(comments map[int64]*Comment) CommentGetter {
	return func(_ context.Context, id int64) (*Comment, error) {
		c, ok := comments[id]
		if !ok {
			return nil, ErrNotFound
		}
		return c, nil
	}
}

func id(n int64) *int64 { return &n }

func TestResolveParent(t *testing.T) {
	// Thread 1 holds root 10 with reply 11; comment 20 lives in thread 2.
	get := mapGetter(map[int64]*Comment{
		10: {ID: 10, ThreadID: 1},
		11: {ID: 11, ThreadID: 1, Parent: id(10)},
		20: {ID: 20, ThreadID: 2},
	})
	ctx := context.Background()

	cases := []struct {
		name      string
		requested *int64
		want      *int64
	}{
		{"no parent requested", nil, nil},
		{"root parent accepted", id(10), id(10)},
		{"reply parent flattened to root", id(11), id(10)},
		{"unknown parent becomes root", id(99), nil},
		{"cross-thread parent becomes root", id(20), nil},
	}
	for _, tc := range cases {
		got, err := ResolveParent(ctx, get, 1, tc.requested)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if (got == nil) != (tc.want == nil) || (got != nil && *got != *tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestResolveParent_DanglingGrandparent(t *testing.T) {
	// 11 claims parent 10 but 10 is gone. Nothing left to anchor to.
	get := mapGetter(map[int64]*Comment{
		11: {ID: 11, ThreadID: 1, Parent: id(10)},
	})
	got, err := ResolveParent(context.Background(), get, 1, id(11))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil parent for dangling chain, got %d", *got)
	}
}

func TestResolveParent_CrossThreadReply(t *testing.T) {
	// The requested parent flattens to a root in another thread.
	get := mapGetter(map[int64]*Comment{
		20: {ID: 20, ThreadID: 2},
		21: {ID: 21, ThreadID: 2, Parent: id(20)},
	})
	got, err := ResolveParent(context.Background(), get, 1, id(21))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil parent for cross-thread root, got %d", *got)
	}
}
