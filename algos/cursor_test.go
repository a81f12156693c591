package algos

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testDID = "did:plc:aaaabbbbccccdddd"

func TestChaosCursorRoundtrip(t *testing.T) {
	raw := encodeCursor("-958040966", testDID)
	randID, err := decodeChaosCursor(raw, testDID)
	require.NoError(t, err)
	require.Equal(t, int64(-958040966), randID)
}

func TestChaosCursorMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"justonefield",
		encodeCursor("1", "2", "3"),
		encodeCursor("notanumber", testDID),
		encodeCursor("", testDID),
		encodeCursor("0", testDID),
	} {
		_, err := decodeChaosCursor(raw, testDID)
		require.ErrorIs(t, err, ErrMalformedCursor, "cursor %q", raw)
	}
}

func TestChaosCursorOwnership(t *testing.T) {
	raw := encodeCursor("12345", "did:plc:someoneelse")
	_, err := decodeChaosCursor(raw, testDID)
	require.ErrorIs(t, err, ErrCursorOwnership)
}

func TestFavoritesCursorRoundtrip(t *testing.T) {
	raw := encodeCursor(testDID, "150")
	position, err := decodeFavoritesCursor(raw, testDID)
	require.NoError(t, err)
	require.Equal(t, 150, position)
}

func TestFavoritesCursorMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		testDID,
		encodeCursor(testDID, "abc"),
		encodeCursor(testDID, "0"),
		encodeCursor(testDID, "-5"),
		encodeCursor(testDID, "1", "extra"),
	} {
		_, err := decodeFavoritesCursor(raw, testDID)
		require.ErrorIs(t, err, ErrMalformedCursor, "cursor %q", raw)
	}
}

func TestFavoritesCursorOwnership(t *testing.T) {
	raw := encodeCursor("did:plc:someoneelse", "50")
	_, err := decodeFavoritesCursor(raw, testDID)
	require.ErrorIs(t, err, ErrCursorOwnership)
}
