package algos

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Cursors are fields joined by "::" and percent-encoded into one opaque
// string. Each algorithm embeds the requester DID so a cursor cannot be
// replayed by another account.

const cursorDelimiter = "::"

var (
	ErrMalformedCursor = errors.New("malformed cursor")

	// ErrCursorOwnership marks a structurally valid cursor presented by an
	// account other than the one it was minted for.
	ErrCursorOwnership = errors.New("cursor does not belong to requester")
)

func encodeCursor(fields ...string) string {
	return url.QueryEscape(strings.Join(fields, cursorDelimiter))
}

func decodeCursor(raw string, arity int) ([]string, error) {
	unescaped, err := url.QueryUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedCursor, raw)
	}
	parts := strings.Split(unescaped, cursorDelimiter)
	if len(parts) != arity {
		return nil, fmt.Errorf("%w: %q", ErrMalformedCursor, raw)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedCursor, raw)
		}
	}
	return parts, nil
}

// decodeChaosCursor parses "<lastRandId>::<requesterDid>". A randId of zero
// is rejected: the mixer never produces it.
func decodeChaosCursor(raw, requesterDID string) (int64, error) {
	parts, err := decodeCursor(raw, 2)
	if err != nil {
		return 0, err
	}
	randID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || randID == 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCursor, raw)
	}
	if parts[1] != requesterDID {
		return 0, fmt.Errorf("%w: %q", ErrCursorOwnership, raw)
	}
	return randID, nil
}

// decodeFavoritesCursor parses "<requesterDid>::<position>". Page one is
// expressed by omitting the cursor, so the position must be positive.
func decodeFavoritesCursor(raw, requesterDID string) (int, error) {
	parts, err := decodeCursor(raw, 2)
	if err != nil {
		return 0, err
	}
	position, err := strconv.Atoi(parts[1])
	if err != nil || position <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedCursor, raw)
	}
	if parts[0] != requesterDID {
		return 0, fmt.Errorf("%w: %q", ErrCursorOwnership, raw)
	}
	return position, nil
}
