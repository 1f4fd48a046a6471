// Package keyexpr resolves a single descriptor KEY token — a raw hex
// public key, a WIF-encoded private key, or an extended (xpub/xprv) key
// with an optional origin and derivation path — into a concrete public
// key plus derivation metadata.
//
// It leans on btcec for secp256k1 point handling and on
// btcutil/hdkeychain for BIP32 derivation; this package owns none of
// that math, it only drives it the way btcsuite-btcwallet's waddrmgr
// drives it when deriving addresses from an account key.
package keyexpr

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// Errors returned by Parse. The descriptor façade maps these to its own
// ErrorCode taxonomy.
var (
	ErrInvalidKey               = errors.New("invalid key expression")
	ErrSegwitRequiresCompressed = errors.New("uncompressed pubkey not allowed in segwit context")
	ErrHardenedFromXpub         = errors.New("hardened derivation step requested from an extended public key")
)

// originRE matches the "[fingerprint/path]" prefix of a key expression,
// e.g. "[d34db33f/49h/0h/0h]".
var originRE = regexp.MustCompile(`^\[([0-9a-fA-F]{8})((?:/[0-9]+[h']?)*)\]`)

// Expression is a resolved descriptor key expression.
type Expression struct {
	// PubKey is the compressed (or, outside a segwit context,
	// optionally uncompressed) SEC-encoded public key.
	PubKey []byte

	// OriginFingerprint is the 4-byte master key fingerprint from an
	// optional "[fpr/path]" prefix, or nil if absent.
	OriginFingerprint []byte

	// OriginPath is the derivation path inside the "[fpr/path]"
	// prefix, or nil if absent.
	OriginPath []uint32

	// DerivationPath is the "/child/child/..." path applied to the
	// extended key itself, after any origin prefix. Combined with
	// OriginFingerprint and OriginPath this gives the full BIP32
	// derivation path for PSBT population.
	DerivationPath []uint32

	// ExtendedKey is set when the token was an xpub/xprv/tpub/tprv,
	// holding the key at the end of DerivationPath.
	ExtendedKey *hdkeychain.ExtendedKey

	// PrivKey and Compressed are set when the token was a WIF private
	// key.
	PrivKey    *btcec.PrivateKey
	Compressed bool
}

// isHexKeyLen reports whether n is the hex-character length of a
// compressed (66) or uncompressed (130) SEC-encoded pubkey.
func isHexKeyLen(n int) bool { return n == 66 || n == 130 }

// splitOrigin peels a leading "[fingerprint/path]" off token, if
// present.
func splitOrigin(token string) (fingerprint []byte, path []uint32, rest string, err error) {
	m := originRE.FindStringSubmatch(token)
	if m == nil {
		return nil, nil, token, nil
	}
	fingerprint, err = hex.DecodeString(m[1])
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: bad origin fingerprint: %v",
			ErrInvalidKey, err)
	}
	path, err = parsePath(m[2])
	if err != nil {
		return nil, nil, "", fmt.Errorf("%w: bad origin path: %v",
			ErrInvalidKey, err)
	}
	return fingerprint, path, token[len(m[0]):], nil
}

// parsePath parses a "/N/N'/N h" style path (leading slash optional,
// may be empty) into child indices, offsetting hardened steps by
// hdkeychain.HardenedKeyStart.
func parsePath(p string) ([]uint32, error) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil, nil
	}
	pieces := strings.Split(p, "/")
	path := make([]uint32, 0, len(pieces))
	for _, piece := range pieces {
		hardened := strings.HasSuffix(piece, "'") || strings.HasSuffix(piece, "h")
		numPart := strings.TrimRight(piece, "'h")
		n, err := strconv.ParseUint(numPart, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad path element %q: %v",
				ErrInvalidKey, piece, err)
		}
		if hardened {
			n += hdkeychain.HardenedKeyStart
		}
		path = append(path, uint32(n))
	}
	return path, nil
}

// Parse resolves a single KEY token. network, if non-nil, selects which
// version bytes are acceptable for WIF decoding; extended keys are
// accepted whatever network their version bytes name. isSegwitContext
// rejects uncompressed public keys.
func Parse(token string, network *chaincfg.Params, isSegwitContext bool) (*Expression, error) {
	fingerprint, originPath, rest, err := splitOrigin(token)
	if err != nil {
		return nil, err
	}
	if rest == "" {
		return nil, fmt.Errorf("%w: empty key token", ErrInvalidKey)
	}

	switch {
	case isHexKeyLen(len(rest)) && isHexString(rest):
		return parseRawHex(rest, fingerprint, originPath, isSegwitContext)

	case strings.HasPrefix(rest, "xpub") || strings.HasPrefix(rest, "xprv") ||
		strings.HasPrefix(rest, "tpub") || strings.HasPrefix(rest, "tprv"):
		return parseExtended(rest, fingerprint, originPath)

	default:
		return parseWIF(rest, network, fingerprint, originPath, isSegwitContext)
	}
}

func isHexString(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

func parseRawHex(rest string, fingerprint []byte, originPath []uint32,
	isSegwitContext bool) (*Expression, error) {

	raw, err := hex.DecodeString(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if _, err := btcec.ParsePubKey(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != 33 && isSegwitContext {
		return nil, ErrSegwitRequiresCompressed
	}
	return &Expression{
		PubKey:            raw,
		OriginFingerprint: fingerprint,
		OriginPath:        originPath,
	}, nil
}

func parseWIF(rest string, network *chaincfg.Params, fingerprint []byte,
	originPath []uint32, isSegwitContext bool) (*Expression, error) {

	wif, err := btcutil.DecodeWIF(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if network != nil && !wif.IsForNet(network) {
		return nil, fmt.Errorf("%w: WIF is not valid for %s",
			ErrInvalidKey, network.Name)
	}
	if !wif.CompressPubKey && isSegwitContext {
		return nil, ErrSegwitRequiresCompressed
	}
	pub := wif.SerializePubKey()
	return &Expression{
		PubKey:            pub,
		OriginFingerprint: fingerprint,
		OriginPath:        originPath,
		PrivKey:           wif.PrivKey,
		Compressed:        wif.CompressPubKey,
	}, nil
}

func parseExtended(rest string, fingerprint []byte, originPath []uint32) (*Expression, error) {
	keyStr := rest
	var pathStr string
	if idx := strings.Index(rest, "/"); idx >= 0 {
		keyStr = rest[:idx]
		pathStr = rest[idx:]
	}

	key, err := hdkeychain.NewKeyFromString(keyStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	path, err := parsePath(pathStr)
	if err != nil {
		return nil, err
	}

	derived := key
	for i, step := range path {
		if step >= hdkeychain.HardenedKeyStart && !derived.IsPrivate() {
			return nil, ErrHardenedFromXpub
		}
		derived, err = derived.Derive(step)
		if err != nil {
			return nil, fmt.Errorf("%w: deriving step %d of path: %v",
				ErrInvalidKey, i, err)
		}
	}

	var pub *btcec.PublicKey
	if derived.IsPrivate() {
		priv, err := derived.ECPrivKey()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		pub = priv.PubKey()
	} else {
		pub, err = derived.ECPubKey()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
	}

	return &Expression{
		PubKey:            pub.SerializeCompressed(),
		OriginFingerprint: fingerprint,
		OriginPath:        originPath,
		DerivationPath:    path,
		ExtendedKey:       derived,
	}, nil
}
