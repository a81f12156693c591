package algos

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluej-social/bluej/store"
	"github.com/bluej-social/bluej/store/memstore"
)

// stubFollowClient pages out a canned follow list.
type stubFollowClient struct {
	pages []FollowPage
	calls int
}

func (s *stubFollowClient) Follows(ctx context.Context, actor, cursor string) (*FollowPage, error) {
	if s.calls >= len(s.pages) {
		s.calls++
		return &FollowPage{}, nil
	}
	p := s.pages[s.calls]
	s.calls++
	return &p, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAlgos(st store.Store) *Algos {
	return New(&Args{
		Store:   st,
		Follows: &stubFollowClient{},
		Seeds:   NewSeedCache(),
		Logger:  testLogger(),
	})
}

func exec(t *testing.T, st store.Store, name store.MutationName, params map[string]any) {
	t.Helper()
	require.NoError(t, st.Exec(context.Background(), store.Mutation{Name: name, Params: params}))
}

// follow primes the requester and records follow edges toward the subjects,
// as the indexer would have after consuming the firehose.
func follow(t *testing.T, st store.Store, actor string, subjects ...string) {
	t.Helper()
	for i, subject := range subjects {
		exec(t, st, store.MutMergeFollow, map[string]any{
			"uri":     "at://" + actor + "/app.bsky.graph.follow/" + string(rune('a'+i)),
			"actor":   actor,
			"subject": subject,
		})
	}
	exec(t, st, store.MutSetFollowsPrimed, map[string]any{"did": actor})
}

func createPost(t *testing.T, st *memstore.Store, uri, cid, author string, at time.Time) {
	t.Helper()
	st.SetClock(func() time.Time { return at })
	exec(t, st, store.MutCreatePost, map[string]any{
		"uri":       uri,
		"cid":       cid,
		"author":    author,
		"text":      "hello",
		"createdAt": at,
	})
}

func feedURIs(f *Feed) []string {
	out := make([]string, 0, len(f.Feed))
	for _, item := range f.Feed {
		out = append(out, item.Post)
	}
	return out
}
