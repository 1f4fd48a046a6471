package descriptor

import "github.com/btcsuite/btcd/chaincfg"

// Options configures construction of a Descriptor.
type Options struct {
	// Network selects which address and WIF version bytes are accepted
	// and which network an address is rendered for. Extended keys are not
	// checked against it. Defaults to chaincfg.MainNetParams if nil.
	Network *chaincfg.Params

	// ChecksumRequired fails construction if the expression carries no
	// "#checksum" suffix.
	ChecksumRequired bool

	// AllowMiniscriptInP2SH permits arbitrary miniscript inside a bare
	// sh(...), bypassing the template-keyword restriction of §4.1.
	AllowMiniscriptInP2SH bool

	// SignersKeyExpressions is the assumed signer set used to extract
	// (nLockTime, nSequence) via the fake-signature probe. If empty, it
	// defaults to every key in the miniscript's expansion map, which is
	// not recommended: it assumes every key will sign, which may select
	// a branch no real signer set can fulfill.
	SignersKeyExpressions []string

	// Preimages are the hash preimages known at construction time, used
	// both for the fake-signature probe and for real satisfaction.
	Preimages []PreimageInput

	// AddressOnly skips the fake-signature satisfier probe entirely.
	// GetLockTime/GetSequence then always report absent, and
	// construction never fails with Unresolvable due to an ill-fitting
	// default signer set.
	AddressOnly bool

	// KnownPreimageDigests are digest tokens (e.g. "sha256(<hex>)") the
	// caller knows a preimage exists for but does not yet hold, used
	// only during the fake-signature probe so that branch is considered
	// reachable without supplying the preimage bytes themselves.
	KnownPreimageDigests map[string]struct{}
}

// PreimageInput is a hash preimage supplied for construction: Digest is
// a textual hash call like "sha256(<hex>)" and Preimage is the matching
// 32-byte hex preimage.
type PreimageInput struct {
	Digest   string
	Preimage string
}

func (o Options) network() *chaincfg.Params {
	if o.Network != nil {
		return o.Network
	}
	return &chaincfg.MainNetParams
}
