package poker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	seen := map[uint8]bool{}
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			c := Card{Suit: suit, Rank: rank}
			enc := c.Encode()
			require.Less(t, enc, uint8(64), "encoding must fit in 6 bits")
			require.False(t, seen[enc], "encoding collision at %v", c)
			seen[enc] = true

			dec, err := Decode(enc)
			require.NoError(t, err)
			assert.Equal(t, c, dec)
		}
	}
	assert.Len(t, seen, 52)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := Decode(0xFF)
	assert.Error(t, err)

	// Suit bits valid but rank offset past Ace.
	_, err = Decode(0x0D)
	assert.Error(t, err)
}

func TestParseCard(t *testing.T) {
	t.Parallel()

	c, err := ParseCard("As")
	require.NoError(t, err)
	assert.Equal(t, Card{Suit: Spades, Rank: Ace}, c)

	c, err = ParseCard("Td")
	require.NoError(t, err)
	assert.Equal(t, Card{Suit: Diamonds, Rank: Ten}, c)

	for _, bad := range []string{"", "A", "Ax", "1s", "AsKs"} {
		_, err := ParseCard(bad)
		assert.Error(t, err, "parsing %q", bad)
	}
}

func TestCardString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Kh", Card{Suit: Hearts, Rank: King}.String())
	assert.Equal(t, "2c", Card{Suit: Clubs, Rank: Two}.String())
	assert.Equal(t, "??", Card{}.String())
}
