package bluej

import (
	"context"
	"time"
)

// One firehose commit's operations, partitioned by category. Within a
// commit the categories apply in a fixed order and each derived mutation is
// awaited before the next: a post must exist before an edge referencing it
// is written. There is no cross-mutation transaction, so a crash mid-commit
// leaves a partially applied event — accepted, since the store offers no
// multi-statement transaction to this layer.
type commitOps struct {
	postDeletes   []deleteOp
	postCreates   []postCreateOp
	followDeletes []deleteOp
	followCreates []followCreateOp
	likeCreates   []likeCreateOp
	repostDeletes []deleteOp
	repostCreates []repostCreateOp
}

type deleteOp struct {
	uri string
}

type postCreateOp struct {
	uri       string
	cid       string
	author    string
	text      string
	createdAt time.Time
	rootURI   string
	parentURI string
}

type repostCreateOp struct {
	uri        string
	cid        string
	author     string
	subjectURI string
	createdAt  time.Time
}

type likeCreateOp struct {
	author     string
	subjectURI string
}

type followCreateOp struct {
	uri     string
	actor   string
	subject string
}

func (b *BlueJ) handleCommit(ctx context.Context, ops *commitOps) {
	for _, op := range ops.postDeletes {
		b.countEvent("post_delete")
		b.handlePostDelete(ctx, op)
	}
	for _, op := range ops.postCreates {
		b.countEvent("post_create")
		b.handlePostCreate(ctx, op)
	}
	for _, op := range ops.followDeletes {
		b.countEvent("follow_delete")
		b.handleFollowDelete(ctx, op)
	}
	for _, op := range ops.followCreates {
		b.countEvent("follow_create")
		b.handleFollowCreate(ctx, op)
	}
	for _, op := range ops.likeCreates {
		b.countEvent("like_create")
		b.handleLikeCreate(ctx, op)
	}
	for _, op := range ops.repostDeletes {
		b.countEvent("repost_delete")
		// Reposts are posts; deletion is identical.
		b.handlePostDelete(ctx, op)
	}
	for _, op := range ops.repostCreates {
		b.countEvent("repost_create")
		b.handleRepostCreate(ctx, op)
	}

	b.runMaintenance(ctx)
}
