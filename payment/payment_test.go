package payment

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

const pubKeyGHex = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func pubKeyG(t *testing.T) []byte {
	b, err := hex.DecodeString(pubKeyGHex)
	require.NoError(t, err)
	return b
}

func TestPKHasNoAddress(t *testing.T) {
	pay, err := PK(pubKeyG(t))
	require.NoError(t, err)
	require.Equal(t, P2PK, pay.Kind)
	require.Empty(t, pay.Address)
	require.False(t, pay.IsSegwit())
}

func TestPKHRoundTripsThroughFromAddress(t *testing.T) {
	pay, err := PKH(pubKeyG(t), &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2PKH, pay.Kind)

	decoded, err := FromAddress(pay.Address, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2PKH, decoded.Kind)
	require.Equal(t, pay.ScriptPubKey, decoded.ScriptPubKey)
}

func TestWPKHRoundTripsThroughFromAddress(t *testing.T) {
	pay, err := WPKH(pubKeyG(t), &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2WPKH, pay.Kind)
	require.True(t, pay.IsSegwit())

	decoded, err := FromAddress(pay.Address, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2WPKH, decoded.Kind)
}

func TestNestedWPKHWrapsP2SHAroundWPKH(t *testing.T) {
	inner, err := WPKH(pubKeyG(t), &chaincfg.MainNetParams)
	require.NoError(t, err)

	nested, err := NestedWPKH(pubKeyG(t), &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2SH_P2WPKH, nested.Kind)
	require.True(t, nested.IsSegwit())
	require.Equal(t, inner.ScriptPubKey, nested.RedeemScript)

	decoded, err := FromAddress(nested.Address, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2SH, decoded.Kind)
}

func TestWSHAndNestedWSH(t *testing.T) {
	witnessScript := []byte{0x51} // OP_1, stand-in for a compiled script

	wsh, err := WSH(witnessScript, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2WSH, wsh.Kind)
	require.Equal(t, witnessScript, wsh.WitnessScript)

	nested, err := NestedWSH(witnessScript, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2SH_P2WSH, nested.Kind)
	require.Equal(t, wsh.ScriptPubKey, nested.RedeemScript)
}

func TestSH(t *testing.T) {
	redeem := []byte{0x51}
	pay, err := SH(redeem, &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t, P2SH, pay.Kind)
	require.Equal(t, redeem, pay.RedeemScript)
	require.False(t, pay.IsSegwit())
}

func TestFromAddressUnknownNetworkFails(t *testing.T) {
	pay, err := PKH(pubKeyG(t), &chaincfg.MainNetParams)
	require.NoError(t, err)

	_, err = FromAddress(pay.Address, &chaincfg.TestNet3Params)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "P2WSH", P2WSH.String())
	require.Equal(t, "UNKNOWN", Kind(99).String())
}
