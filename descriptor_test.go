package descriptor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

const (
	pubKeyG  = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	pubKey2G = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

func TestNewPK(t *testing.T) {
	d, err := New("pk("+pubKeyG+")", 0, false, Options{})
	require.NoError(t, err)
	_, err = d.GetAddress()
	require.True(t, IsErrorCode(err, ErrNoAddress))
	require.NotEmpty(t, d.GetScriptPubKey())
}

func TestNewPKH(t *testing.T) {
	d, err := New("pkh("+pubKeyG+")", 0, false, Options{})
	require.NoError(t, err)
	addr, err := d.GetAddress()
	require.NoError(t, err)
	require.NotEmpty(t, addr)
	require.False(t, d.IsSegwit())
}

func TestNewWPKH(t *testing.T) {
	d, err := New("wpkh("+pubKeyG+")", 0, false, Options{})
	require.NoError(t, err)
	require.True(t, d.IsSegwit())
	addr, err := d.GetAddress()
	require.NoError(t, err)
	require.NotEmpty(t, addr)
}

func TestNewNestedWPKH(t *testing.T) {
	d, err := New("sh(wpkh("+pubKeyG+"))", 0, false, Options{})
	require.NoError(t, err)
	require.True(t, d.IsSegwit())
	require.NotEmpty(t, d.GetRedeemScript())
}

func TestNewWSHSingleKeyPolicy(t *testing.T) {
	d, err := New("wsh(pk("+pubKeyG+"))", 0, false, Options{})
	require.NoError(t, err)
	require.True(t, d.IsSegwit())
	require.NotEmpty(t, d.GetWitnessScript())

	// A single pk() branch has no timelock: the probe should resolve to
	// "no constraint" rather than failing.
	require.Nil(t, d.GetLockTime())
	require.Nil(t, d.GetSequence())

	weight, err := d.MaxSatisfactionWeight()
	require.NoError(t, err)
	require.Greater(t, weight, 0)
}

func TestNewAddressOnlySkipsProbe(t *testing.T) {
	d, err := New("wsh(pk("+pubKeyG+"))", 0, false, Options{AddressOnly: true})
	require.NoError(t, err)
	require.Nil(t, d.GetLockTime())
	require.Nil(t, d.GetSequence())

	_, err = d.MaxSatisfactionWeight()
	require.Error(t, err)
}

func TestNewBareSHTemplateMulti(t *testing.T) {
	d, err := New("sh(multi(2,"+pubKeyG+","+pubKey2G+"))", 0, false, Options{})
	require.NoError(t, err)
	require.False(t, d.IsSegwit())
	require.NotEmpty(t, d.GetRedeemScript())
}

func TestNewBareSHDisallowsArbitraryMiniscriptByDefault(t *testing.T) {
	_, err := New("sh(or_b(pk("+pubKeyG+"),a:pk("+pubKey2G+")))", 0, false, Options{})
	require.True(t, IsErrorCode(err, ErrMiniscriptInP2SHDisallowed))
}

func TestNewBareSHAllowsArbitraryMiniscriptWhenOptedIn(t *testing.T) {
	_, err := New("sh(or_b(pk("+pubKeyG+"),a:pk("+pubKey2G+")))", 0, false,
		Options{AllowMiniscriptInP2SH: true})
	require.NoError(t, err)
}

func TestNewDuplicateKeyInMiniscriptFails(t *testing.T) {
	_, err := New("wsh(and_v(v:pk("+pubKeyG+"),pk("+pubKeyG+")))", 0, false, Options{})
	require.True(t, IsErrorCode(err, ErrDuplicatePubkey))
}

func TestNewWildcardRequiresIndex(t *testing.T) {
	_, err := New("pkh([d34db33f/0h]xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8/0/*)",
		0, false, Options{})
	require.True(t, IsErrorCode(err, ErrInvalidIndex))
}

func TestNewWildcardWithIndex(t *testing.T) {
	expr := "pkh([d34db33f/0h]xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8/0/*)"
	d0, err := New(expr, 0, true, Options{})
	require.NoError(t, err)
	d1, err := New(expr, 1, true, Options{})
	require.NoError(t, err)

	addr0, err := d0.GetAddress()
	require.NoError(t, err)
	addr1, err := d1.GetAddress()
	require.NoError(t, err)
	require.NotEqual(t, addr0, addr1)
}

func TestNewChecksumRequired(t *testing.T) {
	_, err := New("pk("+pubKeyG+")", 0, false, Options{ChecksumRequired: true})
	require.True(t, IsErrorCode(err, ErrMissingChecksum))
}

func TestNewChecksumValidated(t *testing.T) {
	expr := "pk(" + pubKeyG + ")"
	sum := Checksum(expr)

	d, err := New(expr+"#"+sum, 0, false, Options{ChecksumRequired: true})
	require.NoError(t, err)
	require.Equal(t, expr+"#"+sum, d.ChecksumString())
	require.Equal(t, expr, d.String())

	_, err = New(expr+"#wrongsum", 0, false, Options{})
	require.True(t, IsErrorCode(err, ErrBadChecksum))
}

func TestNewAddr(t *testing.T) {
	pkh, err := New("pkh("+pubKeyG+")", 0, false, Options{})
	require.NoError(t, err)
	addr, err := pkh.GetAddress()
	require.NoError(t, err)

	d, err := New("addr("+addr+")", 0, false, Options{})
	require.NoError(t, err)
	got, err := d.GetAddress()
	require.NoError(t, err)
	require.Equal(t, addr, got)
}

func TestNewUnrecognizedShapeFails(t *testing.T) {
	_, err := New("notadescriptor(abc)", 0, false, Options{})
	require.True(t, IsErrorCode(err, ErrInvalidExpression))
}

func TestGetScriptSatisfactionSingleKeyPolicy(t *testing.T) {
	d, err := New("wsh(pk("+pubKeyG+"))", 0, false, Options{})
	require.NoError(t, err)

	pub, err := hex.DecodeString(pubKeyG)
	require.NoError(t, err)
	sig := make([]byte, 64)

	witness, err := d.GetScriptSatisfaction([]Signature{{PubKey: pub, Signature: sig}})
	require.NoError(t, err)
	require.Len(t, witness, 1)
}

func TestGetScriptSatisfactionFailsForKeyOnlyShape(t *testing.T) {
	d, err := New("pkh("+pubKeyG+")", 0, false, Options{})
	require.NoError(t, err)

	_, err = d.GetScriptSatisfaction(nil)
	require.True(t, IsErrorCode(err, ErrUnresolvable))
}

// TestOlderResolvesSequenceAndSatisfies covers spec.md §8 scenario 5:
// wsh(and_v(v:pk(K1),older(144))) constructed with an explicit signer
// set resolves nSequence to 144 and produces a non-empty satisfaction
// once the required relative timelock is met.
func TestOlderResolvesSequenceAndSatisfies(t *testing.T) {
	d, err := New("wsh(and_v(v:pk("+pubKeyG+"),older(144)))", 0, false,
		Options{SignersKeyExpressions: []string{pubKeyG}})
	require.NoError(t, err)

	require.Nil(t, d.GetLockTime())
	require.NotNil(t, d.GetSequence())
	require.Equal(t, uint32(144), *d.GetSequence())
	require.LessOrEqual(t, len(d.GetWitnessScript()), 3600)

	pub, err := hex.DecodeString(pubKeyG)
	require.NoError(t, err)
	sig := make([]byte, 64)

	witness, err := d.GetScriptSatisfaction([]Signature{{PubKey: pub, Signature: sig}})
	require.NoError(t, err)
	require.NotEmpty(t, witness)
}

// TestOrDPicksPreimageBranch covers spec.md §8 scenario 6:
// wsh(or_d(pk(K1),and_v(v:pk(K2),sha256(H)))), given a preimage for H
// and only a signature for K2, must resolve to no timelock and must
// satisfy through the second branch, surfacing both the preimage and
// the K2 signature in the witness.
func TestOrDPicksPreimageBranch(t *testing.T) {
	preimage := bytes.Repeat([]byte{0x07}, 32)
	digest := sha256.Sum256(preimage)
	digestHex := hex.EncodeToString(digest[:])
	preimageHex := hex.EncodeToString(preimage)

	expr := "wsh(or_d(pk(" + pubKeyG + "),and_v(v:pk(" + pubKey2G + "),sha256(" + digestHex + "))))"
	d, err := New(expr, 0, false, Options{
		Preimages: []PreimageInput{{Digest: "sha256(" + digestHex + ")", Preimage: preimageHex}},
	})
	require.NoError(t, err)

	require.Nil(t, d.GetLockTime())
	require.Nil(t, d.GetSequence())

	pub2, err := hex.DecodeString(pubKey2G)
	require.NoError(t, err)
	sig2 := make([]byte, 64)

	witness, err := d.GetScriptSatisfaction([]Signature{{PubKey: pub2, Signature: sig2}})
	require.NoError(t, err)
	require.NotEmpty(t, witness)

	var hasPreimage, hasSig bool
	for _, elem := range witness {
		if bytes.Equal(elem, preimage) {
			hasPreimage = true
		}
		if bytes.Equal(elem, sig2) {
			hasSig = true
		}
	}
	require.True(t, hasPreimage, "satisfaction must contain the preimage")
	require.True(t, hasSig, "satisfaction must contain the K2 signature")
}

func TestOptionsNetworkDefault(t *testing.T) {
	var o Options
	require.Equal(t, &chaincfg.MainNetParams, o.network())

	o.Network = &chaincfg.TestNet3Params
	require.Equal(t, &chaincfg.TestNet3Params, o.network())
}

func TestErrorCodeString(t *testing.T) {
	require.Equal(t, "ErrBadChecksum", ErrBadChecksum.String())
	require.Contains(t, ErrorCode(999).String(), "Unknown")
}
