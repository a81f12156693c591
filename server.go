package bluej

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/bluej-social/bluej/algos"
)

func (b *BlueJ) feedRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/xrpc/app.bsky.feed.getFeedSkeleton", b.handleGetFeedSkeleton).Methods(http.MethodGet)
	r.HandleFunc("/xrpc/app.bsky.feed.describeFeedGenerator", b.handleDescribeFeedGenerator).Methods(http.MethodGet)
	r.HandleFunc("/.well-known/did.json", b.handleWellKnownDID).Methods(http.MethodGet)
	return r
}

func (b *BlueJ) handleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	did, err := b.auth.Validate(ctx, r)
	if err != nil {
		writeXRPCError(w, http.StatusUnauthorized, "AuthenticationRequired", err.Error())
		return
	}

	q := r.URL.Query()

	feedURI := q.Get("feed")
	if feedURI == "" {
		writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "missing feed parameter")
		return
	}
	parts := strings.Split(feedURI, "/")
	shortname := parts[len(parts)-1]

	limit := 0
	if ls := q.Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil {
			writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "invalid limit parameter")
			return
		}
		limit = l
	}

	feed, err := b.algos.Handle(ctx, shortname, algos.Request{
		Limit:  limit,
		Cursor: q.Get("cursor"),
	}, did)
	if err != nil {
		switch {
		case errors.Is(err, algos.ErrUnknownFeed):
			writeXRPCError(w, http.StatusBadRequest, "UnknownFeed", fmt.Sprintf("unknown feed %q", feedURI))
		case errors.Is(err, algos.ErrCursorOwnership):
			writeXRPCError(w, http.StatusUnauthorized, "AuthenticationRequired", "cursor does not belong to requester")
		case errors.Is(err, algos.ErrMalformedCursor):
			writeXRPCError(w, http.StatusBadRequest, "InvalidRequest", "malformed cursor")
		default:
			writeXRPCError(w, http.StatusInternalServerError, "InternalServerError", "feed request failed")
		}
		return
	}

	writeJSON(w, feed)
}

func (b *BlueJ) handleDescribeFeedGenerator(w http.ResponseWriter, r *http.Request) {
	type feedDesc struct {
		URI string `json:"uri"`
	}
	feeds := []feedDesc{}
	for _, shortname := range b.algos.Shortnames() {
		feeds = append(feeds, feedDesc{
			URI: fmt.Sprintf("at://%s/app.bsky.feed.generator/%s", b.publisherDID, shortname),
		})
	}
	writeJSON(w, map[string]any{
		"did":   b.serviceDID,
		"feeds": feeds,
	})
}

func (b *BlueJ) handleWellKnownDID(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       b.serviceDID,
		"service": []map[string]any{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": "https://" + b.hostname,
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding failure", http.StatusInternalServerError)
	}
}

func writeXRPCError(w http.ResponseWriter, status int, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   name,
		"message": message,
	})
}
