// Package expand rewrites a miniscript fragment by replacing every key
// expression it contains with a positional variable "@i", producing a
// variable-form miniscript plus an ordered variable-to-key map. This is
// the step that decouples key material from policy before the policy is
// handed to the compiler.
package expand

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/AreaLayer/descriptors/keyexpr"
)

// ErrDuplicatePubkey is returned when two key tokens in the same
// miniscript resolve to the same compressed public key.
var ErrDuplicatePubkey = errors.New("duplicate public key in miniscript")

// keyTokenRE matches maximal key-expression substrings: an optional
// "[fingerprint/path]" origin prefix followed by a raw hex pubkey or an
// extended key (with its own trailing derivation path), or a bare hex
// pubkey, or a WIF-encoded private key. Alternatives are ordered most- to
// least-specific so the origin-prefixed forms win over the bare ones.
var keyTokenRE = regexp.MustCompile(
	`\[[0-9a-fA-F]{8}(?:/[0-9]+[h']?)*\](?:[0-9a-fA-F]{130}|[0-9a-fA-F]{66}|(?:xpub|xprv|tpub|tprv)[1-9A-HJ-NP-Za-km-z]+(?:/[0-9]+[h']?)*)` +
		`|(?:xpub|xprv|tpub|tprv)[1-9A-HJ-NP-Za-km-z]+(?:/[0-9]+[h']?)*` +
		`|[0-9a-fA-F]{130}|[0-9a-fA-F]{66}` +
		`|[5KLc9][1-9A-HJ-NP-Za-km-z]{50,51}`)

// Map is an ExpansionMap: an ordered association between variable tokens
// "@0, @1, ..." (in first-appearance order) and the resolved key
// expression they stand for.
type Map struct {
	Order []string
	Exprs map[string]*keyexpr.Expression
}

// Lookup implements the lookupVar callback expected by
// (*miniscript.AST).ApplyVars: it resolves a variable identifier like
// "@3" to its pubkey bytes, or returns (nil, nil) for anything that is
// not one of our variables so the caller falls back to parsing the
// identifier as a literal hex value.
func (m *Map) Lookup(identifier string) ([]byte, error) {
	expr, ok := m.Exprs[identifier]
	if !ok {
		return nil, nil
	}
	return expr.PubKey, nil
}

// Expand scans ms left to right for maximal key-expression substrings and
// replaces each occurrence, in order of appearance, with "@k" where k is
// the zero-based index of that occurrence. It returns the rewritten
// string and the resulting ExpansionMap.
func Expand(ms string, network *chaincfg.Params, isSegwit bool) (string, *Map, error) {
	m := &Map{Exprs: map[string]*keyexpr.Expression{}}
	seen := map[string]struct{}{}

	var firstErr error
	result := keyTokenRE.ReplaceAllStringFunc(ms, func(token string) string {
		if firstErr != nil {
			return token
		}
		expr, err := keyexpr.Parse(token, network, isSegwit)
		if err != nil {
			firstErr = err
			return token
		}

		pubHex := hex.EncodeToString(expr.PubKey)
		if _, dup := seen[pubHex]; dup {
			firstErr = fmt.Errorf("%w: %s", ErrDuplicatePubkey, pubHex)
			return token
		}
		seen[pubHex] = struct{}{}

		v := fmt.Sprintf("@%d", len(m.Order))
		m.Order = append(m.Order, v)
		m.Exprs[v] = expr
		return v
	})
	if firstErr != nil {
		return "", nil, firstErr
	}
	return result, m, nil
}
