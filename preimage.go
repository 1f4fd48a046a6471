package descriptor

import (
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/AreaLayer/descriptors/engine"
)

// digestRE matches a Preimage digest token: one of the 4 accepted hash
// functions applied to a hex-encoded hash value.
var digestRE = regexp.MustCompile(`^(sha256|hash256|ripemd160|hash160)\(([0-9a-fA-F]+)\)$`)

// parsePreimage validates and decodes a single (digest, preimageHex)
// pair per the §3 Preimage invariants.
func parsePreimage(digest, preimageHex string) (engine.Preimage, error) {
	m := digestRE.FindStringSubmatch(digest)
	if m == nil {
		return engine.Preimage{}, makeError(ErrInvalidKey,
			fmt.Sprintf("malformed preimage digest %q", digest))
	}
	hashFunc, hashHex := m[1], m[2]

	wantLen := 64
	if hashFunc == "ripemd160" || hashFunc == "hash160" {
		wantLen = 40
	}
	if len(hashHex) != wantLen {
		return engine.Preimage{}, makeError(ErrInvalidKey,
			fmt.Sprintf("digest %q has the wrong hex length for %s", digest, hashFunc))
	}
	hash, err := hex.DecodeString(hashHex)
	if err != nil {
		return engine.Preimage{}, makeError(ErrInvalidKey,
			fmt.Sprintf("digest %q is not valid hex: %v", digest, err))
	}

	preimage, err := hex.DecodeString(preimageHex)
	if err != nil || len(preimage) != 32 {
		return engine.Preimage{}, makeError(ErrInvalidKey,
			fmt.Sprintf("preimage for %q must be 32 bytes of hex", digest))
	}

	return engine.Preimage{HashFunc: hashFunc, Hash: hash, Preimage: preimage}, nil
}

// parseKnownDigest decodes a bare digest token (no preimage bytes) for
// the KnownPreimageDigests probing set.
func parseKnownDigest(digest string) (engine.Preimage, error) {
	m := digestRE.FindStringSubmatch(digest)
	if m == nil {
		return engine.Preimage{}, makeError(ErrInvalidKey,
			fmt.Sprintf("malformed preimage digest %q", digest))
	}
	hashFunc, hashHex := m[1], m[2]
	hash, err := hex.DecodeString(hashHex)
	if err != nil {
		return engine.Preimage{}, makeError(ErrInvalidKey,
			fmt.Sprintf("digest %q is not valid hex: %v", digest, err))
	}
	return engine.Preimage{HashFunc: hashFunc, Hash: hash, Preimage: []byte{}}, nil
}
