package bluej

import (
	"context"

	"github.com/bluej-social/bluej/store"
)

func (b *BlueJ) handlePostDelete(ctx context.Context, op deleteOp) {
	b.queue.Submit(ctx, store.Mutation{
		Name:   store.MutDeletePost,
		Params: map[string]any{"uri": op.uri},
	})
}

// Follow deletes carry only the record uri, never the two endpoints, so the
// edge is matched by uri.
func (b *BlueJ) handleFollowDelete(ctx context.Context, op deleteOp) {
	b.queue.Submit(ctx, store.Mutation{
		Name:   store.MutDeleteFollowByURI,
		Params: map[string]any{"uri": op.uri},
	})
}
