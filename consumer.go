package bluej

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/bluesky-social/indigo/events"
	"github.com/bluesky-social/indigo/events/schedulers/sequential"
	"github.com/bluesky-social/indigo/repo"
	"github.com/bluesky-social/indigo/repomgr"
	"github.com/gorilla/websocket"
	"github.com/ipfs/go-cid"
)

func (b *BlueJ) startConsumer(ctx context.Context, cancel context.CancelFunc) error {
	defer cancel()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			if err := os.WriteFile(b.cursorFile, []byte(b.cursor), 0644); err != nil {
				b.logger.Error("error saving cursor", "error", err)
			}
			b.logger.Debug("saving cursor", "seq", b.cursor)
		}
	}()

	u, err := url.Parse(b.relayHost)
	if err != nil {
		return err
	}
	u.Path = "/xrpc/com.atproto.sync.subscribeRepos"

	prevCursor, err := b.loadCursor()
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	} else {
		b.cursor = prevCursor
	}

	if prevCursor != "" {
		u.RawQuery = "cursor=" + prevCursor
	}

	rsc := events.RepoStreamCallbacks{
		RepoCommit: func(evt *atproto.SyncSubscribeRepos_Commit) error {
			b.repoCommit(ctx, evt)
			return nil
		},
	}

	d := websocket.DefaultDialer

	b.logger.Info("connecting to relay", "url", u.String())

	con, _, err := d.Dial(u.String(), http.Header{
		"user-agent": []string{"bluej/0.0.0"},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	// Commits must apply in arrival order: later mutations can reference
	// entities created by earlier ones.
	scheduler := sequential.NewScheduler(con.RemoteAddr().String(), rsc.EventHandler)

	if err := events.HandleRepoStream(ctx, con, scheduler, b.logger); err != nil {
		b.logger.Error("repo stream failed", "error", err)
	}

	b.logger.Info("repo stream shut down")

	return nil
}

func (b *BlueJ) repoCommit(ctx context.Context, evt *atproto.SyncSubscribeRepos_Commit) {
	b.cursor = fmt.Sprintf("%d", evt.Seq)

	if evt.TooBig {
		b.logger.Warn("commit too big", "repo", evt.Repo, "seq", evt.Seq)
		return
	}

	r, err := repo.ReadRepoFromCar(ctx, bytes.NewReader(evt.Blocks))
	if err != nil {
		b.logger.Error("failed to read event repo", "error", err)
		return
	}

	did, err := syntax.ParseDID(evt.Repo)
	if err != nil {
		b.logger.Error("failed to parse did", "error", err)
		return
	}

	var ops commitOps

	for _, op := range evt.Ops {
		collection, rkey, err := syntax.ParseRepoPath(op.Path)
		if err != nil {
			b.logger.Error("invalid path in repo op")
			continue
		}

		uri := fmt.Sprintf("at://%s/%s/%s", did, collection, rkey)
		ek := repomgr.EventKind(op.Action)

		switch ek {
		case repomgr.EvtKindCreateRecord:
			if op.Cid == nil {
				b.logger.Warn("op missing reccid", "path", op.Path, "action", op.Action)
				continue
			}

			c := (cid.Cid)(*op.Cid)
			reccid, rec, err := r.GetRecordBytes(ctx, op.Path)
			if err != nil {
				b.logger.Error("failed to get record bytes", "error", err, "path", op.Path)
				continue
			}

			if c != reccid {
				b.logger.Warn("reccid mismatch", "from_event", c, "from_blocks", reccid, "path", op.Path)
				continue
			}

			if rec == nil {
				b.logger.Warn("record not found", "reccid", c, "path", op.Path)
				continue
			}

			if err := b.collectCreate(&ops, *rec, uri, did.String(), collection.String(), rkey.String(), reccid.String()); err != nil {
				b.logger.Error("error collecting create op", "error", err, "path", op.Path)
				continue
			}
		case repomgr.EvtKindDeleteRecord:
			switch collection.String() {
			case "app.bsky.feed.post":
				ops.postDeletes = append(ops.postDeletes, deleteOp{uri: uri})
			case "app.bsky.feed.repost":
				ops.repostDeletes = append(ops.repostDeletes, deleteOp{uri: uri})
			case "app.bsky.graph.follow":
				ops.followDeletes = append(ops.followDeletes, deleteOp{uri: uri})
			}
		}
	}

	b.handleCommit(ctx, &ops)
}

// collectCreate decodes one created record into its typed op. Collections
// the index doesn't track are skipped.
func (b *BlueJ) collectCreate(ops *commitOps, recb []byte, uri, did, collection, rkey, reccid string) error {
	switch collection {
	case "app.bsky.feed.post":
		var rec bsky.FeedPost
		if err := rec.UnmarshalCBOR(bytes.NewReader(recb)); err != nil {
			return err
		}

		cat, err := parseTimeFromRecord(&rec, rkey)
		if err != nil {
			return err
		}

		op := postCreateOp{
			uri:       uri,
			cid:       reccid,
			author:    did,
			text:      rec.Text,
			createdAt: *cat,
		}
		if rec.Reply != nil {
			if rec.Reply.Root != nil {
				op.rootURI = rec.Reply.Root.Uri
			}
			if rec.Reply.Parent != nil {
				op.parentURI = rec.Reply.Parent.Uri
			}
		}
		ops.postCreates = append(ops.postCreates, op)
	case "app.bsky.feed.repost":
		var rec bsky.FeedRepost
		if err := rec.UnmarshalCBOR(bytes.NewReader(recb)); err != nil {
			return err
		}

		if rec.Subject == nil {
			return fmt.Errorf("invalid subject in repost")
		}

		cat, err := parseTimeFromRecord(&rec, rkey)
		if err != nil {
			return err
		}

		ops.repostCreates = append(ops.repostCreates, repostCreateOp{
			uri:        uri,
			cid:        reccid,
			author:     did,
			subjectURI: rec.Subject.Uri,
			createdAt:  *cat,
		})
	case "app.bsky.feed.like":
		var rec bsky.FeedLike
		if err := rec.UnmarshalCBOR(bytes.NewReader(recb)); err != nil {
			return err
		}

		if rec.Subject == nil {
			return fmt.Errorf("invalid subject in like")
		}

		ops.likeCreates = append(ops.likeCreates, likeCreateOp{
			author:     did,
			subjectURI: rec.Subject.Uri,
		})
	case "app.bsky.graph.follow":
		var rec bsky.GraphFollow
		if err := rec.UnmarshalCBOR(bytes.NewReader(recb)); err != nil {
			return err
		}

		ops.followCreates = append(ops.followCreates, followCreateOp{
			uri:     uri,
			actor:   did,
			subject: rec.Subject,
		})
	}

	return nil
}

func (b *BlueJ) loadCursor() (string, error) {
	bts, err := os.ReadFile(b.cursorFile)
	if err != nil {
		return "", err
	}
	return string(bts), nil
}
