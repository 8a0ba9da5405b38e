package fairness

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoll_Deterministic(t *testing.T) {
	t.Parallel()
	msg := Message(7, 3, 1700000000000)
	a := Roll("deadbeef", msg)
	b := Roll("deadbeef", msg)
	require.Equal(t, a, b)
	require.Less(t, a, uint64(1)<<RollBits)
}

func TestRoll_BoundToInputs(t *testing.T) {
	t.Parallel()
	base := Roll("seed", Message(1, 2, 3))
	if Roll("seed", Message(2, 2, 3)) == base &&
		Roll("seed", Message(1, 9, 3)) == base &&
		Roll("seed", Message(1, 2, 9)) == base {
		t.Fatalf("roll did not change with any input change")
	}
	require.NotEqual(t, base, Roll("other-seed", Message(1, 2, 3)))
}

func TestNewSeed_UniqueAndCommittable(t *testing.T) {
	t.Parallel()
	s1, err := NewSeed()
	require.NoError(t, err)
	s2, err := NewSeed()
	require.NoError(t, err)
	require.NotEqual(t, s1, s2)
	require.Len(t, s1, 64)
	require.Len(t, Commitment(s1), 64)
}

func TestVerify(t *testing.T) {
	t.Parallel()
	seed, err := NewSeed()
	require.NoError(t, err)
	commit := Commitment(seed)
	roll := Roll(seed, Message(42, 5, 1700000000123))

	require.NoError(t, Verify(seed, commit, 42, 5, 1700000000123, roll))

	// Wrong seed fails the commitment check.
	require.Error(t, Verify("aaaa", commit, 42, 5, 1700000000123, roll))

	// Tampered nonce fails the roll check.
	require.Error(t, Verify(seed, commit, 43, 5, 1700000000123, roll))
}
