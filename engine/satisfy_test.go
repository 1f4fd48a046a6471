package engine

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AreaLayer/descriptors/expand"
)

const (
	keyGHex  = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	key2GHex = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

func keyBytes(t *testing.T, h string) []byte {
	t.Helper()
	b, err := hex.DecodeString(h)
	require.NoError(t, err)
	return b
}

func TestSatisfyNoLockSinglePk(t *testing.T) {
	expanded, vars, err := expand.Expand("pk("+keyGHex+")", nil, true)
	require.NoError(t, err)
	ast, _, err := Compile(expanded, vars)
	require.NoError(t, err)

	pub := keyBytes(t, keyGHex)
	sig := make([]byte, 64)

	witness, err := Satisfy(ast,
		[]Signature{{PubKey: pub, Sig: sig}},
		nil,
		func(uint32) (bool, error) { return false, nil },
		func(uint32) (bool, error) { return false, nil },
	)
	require.NoError(t, err)
	require.Len(t, witness, 1)
	require.Equal(t, sig, []byte(witness[0]))
}

func TestSatisfyMissingSignatureFails(t *testing.T) {
	expanded, vars, err := expand.Expand("pk("+keyGHex+")", nil, true)
	require.NoError(t, err)
	ast, _, err := Compile(expanded, vars)
	require.NoError(t, err)

	_, err = Satisfy(ast, nil, nil, alwaysFalse, alwaysFalse)
	require.ErrorIs(t, err, ErrUnresolvable)
}

func TestProbeConstraintsNoLockBranch(t *testing.T) {
	expanded, vars, err := expand.Expand("pk("+keyGHex+")", nil, true)
	require.NoError(t, err)
	ast, _, err := Compile(expanded, vars)
	require.NoError(t, err)

	pub := keyBytes(t, keyGHex)
	older, after, err := ProbeConstraints(ast, [][]byte{pub}, nil)
	require.NoError(t, err)
	require.Nil(t, older)
	require.Nil(t, after)
}

func TestProbeConstraintsNoUsableSignerFails(t *testing.T) {
	expanded, vars, err := expand.Expand("pk("+keyGHex+")", nil, true)
	require.NoError(t, err)
	ast, _, err := Compile(expanded, vars)
	require.NoError(t, err)

	_, _, err = ProbeConstraints(ast, nil, nil)
	require.ErrorIs(t, err, ErrUnresolvable)
}

// TestProbeConstraintsResolvesOlderViaRetry exercises the third, most
// complex probe stage: the unconditional-true pass alone cannot tell
// which older() value the real satisfaction needs (satisfy() walks
// every node regardless of branch), and the unconditional-false pass
// fails outright because and_v requires the timelock to hold, so
// ProbeConstraints must fall back to retrying each observed value in
// isolation.
func TestProbeConstraintsResolvesOlderViaRetry(t *testing.T) {
	expanded, vars, err := expand.Expand("and_v(v:pk("+keyGHex+"),older(144))", nil, true)
	require.NoError(t, err)
	ast, _, err := Compile(expanded, vars)
	require.NoError(t, err)

	pub := keyBytes(t, keyGHex)
	older, after, err := ProbeConstraints(ast, [][]byte{pub}, nil)
	require.NoError(t, err)
	require.Nil(t, after)
	require.NotNil(t, older)
	require.Equal(t, uint32(144), *older)
}

// TestProbeConstraintsResolvesAfterViaRetry is the after() counterpart
// of the above, covering the second isolation loop.
func TestProbeConstraintsResolvesAfterViaRetry(t *testing.T) {
	expanded, vars, err := expand.Expand("and_v(v:pk("+keyGHex+"),after(500000))", nil, true)
	require.NoError(t, err)
	ast, _, err := Compile(expanded, vars)
	require.NoError(t, err)

	pub := keyBytes(t, keyGHex)
	older, after, err := ProbeConstraints(ast, [][]byte{pub}, nil)
	require.NoError(t, err)
	require.Nil(t, older)
	require.NotNil(t, after)
	require.Equal(t, uint32(500000), *after)
}

func TestMaxSatisfactionWeightSingleKey(t *testing.T) {
	expanded, vars, err := expand.Expand("pk("+keyGHex+")", nil, true)
	require.NoError(t, err)
	ast, _, err := Compile(expanded, vars)
	require.NoError(t, err)

	pub := keyBytes(t, keyGHex)
	weight, err := MaxSatisfactionWeight(ast, [][]byte{pub}, nil)
	require.NoError(t, err)
	// One witness element (a 64-byte fake signature): 1-byte length
	// prefix + 64 bytes.
	require.Equal(t, 65, weight)
}

func TestWitnessWeight(t *testing.T) {
	w := [][]byte{make([]byte, 64), make([]byte, 33)}
	require.Equal(t, 1+64+1+33, WitnessWeight(w))
}

func TestDedupeU32(t *testing.T) {
	got := dedupeU32([]uint32{3, 1, 3, 2, 1})
	require.Equal(t, []uint32{3, 1, 2}, got)
}
