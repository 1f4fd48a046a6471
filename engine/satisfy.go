package engine

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/txscript/miniscript"
	"github.com/btcsuite/btcd/wire"
)

// Signature is a single signature known to the satisfier, bound to the
// pubkey it was produced against.
type Signature struct {
	PubKey []byte
	Sig    []byte
}

// Preimage is a single hash preimage known to the satisfier. HashFunc is
// one of "sha256", "ripemd160", "hash256", "hash160".
type Preimage struct {
	HashFunc string
	Hash     []byte
	Preimage []byte
}

func preimageTable(preimages []Preimage) map[string][]byte {
	table := make(map[string][]byte, len(preimages))
	for _, p := range preimages {
		table[p.HashFunc+":"+hex.EncodeToString(p.Hash)] = p.Preimage
	}
	return table
}

func signatureTable(sigs []Signature) map[string][]byte {
	table := make(map[string][]byte, len(sigs))
	for _, s := range sigs {
		table[hex.EncodeToString(s.PubKey)] = s.Sig
	}
	return table
}

// Satisfy searches for a non-malleable witness given the known
// signatures and preimages, under the relative/absolute timelock
// predicates checkOlder/checkAfter. It fails with ErrUnresolvable if no
// satisfaction exists under those knowns.
func Satisfy(ast *miniscript.AST, sigs []Signature, preimages []Preimage,
	checkOlder, checkAfter func(uint32) (bool, error)) (wire.TxWitness, error) {

	sigTable := signatureTable(sigs)
	preTable := preimageTable(preimages)

	satisfier := &miniscript.Satisfier{
		CheckOlder: checkOlder,
		CheckAfter: checkAfter,
		Sign: func(pubKey []byte) ([]byte, bool) {
			sig, ok := sigTable[hex.EncodeToString(pubKey)]
			return sig, ok
		},
		Preimage: func(hashFunc string, hash []byte) ([]byte, bool) {
			pre, ok := preTable[hashFunc+":"+hex.EncodeToString(hash)]
			return pre, ok
		},
	}

	witness, err := ast.Satisfy(satisfier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	return witness, nil
}

// alwaysTrue/alwaysFalse are the two unconditional timelock predicates
// used while probing for spending constraints.
func alwaysTrue(uint32) (bool, error)  { return true, nil }
func alwaysFalse(uint32) (bool, error) { return false, nil }

// ProbeConstraints discovers the (nLockTime, nSequence) that a
// satisfaction of ast would need, using 64-byte zero signatures for
// every pubkey in signerPubKeys and the given preimages, without being
// told which branch the real signatures will ultimately take.
//
// The underlying satisfier has no API to report which older()/after()
// node a chosen satisfaction passed through, so this probes: first with
// every timelock treated as already satisfied (to confirm a
// satisfaction exists at all, and to record every older()/after() value
// the search structurally visits — satisfy() recurses into every node
// regardless of which branch wins); then with every timelock treated as
// unsatisfied (the no-lock case); then, if that fails, by retrying each
// observed value in isolation until one succeeds. It returns
// (nil, nil, nil) for the no-lock case.
//
// Each isolation retry holds the other kind of timelock unsatisfied, so
// a satisfaction that needs an older() and an after() value at the same
// time is not found; ProbeConstraints then fails with ErrUnresolvable.
func ProbeConstraints(ast *miniscript.AST, signerPubKeys [][]byte,
	preimages []Preimage) (older, after *uint32, err error) {

	fakeSig := make([]byte, 64)
	signerSet := make(map[string]struct{}, len(signerPubKeys))
	for _, pk := range signerPubKeys {
		signerSet[hex.EncodeToString(pk)] = struct{}{}
	}
	preTable := preimageTable(preimages)

	sign := func(pubKey []byte) ([]byte, bool) {
		_, ok := signerSet[hex.EncodeToString(pubKey)]
		return fakeSig, ok
	}
	preimage := func(hashFunc string, hash []byte) ([]byte, bool) {
		pre, ok := preTable[hashFunc+":"+hex.EncodeToString(hash)]
		return pre, ok
	}

	var olderSeen, afterSeen []uint32
	probe := &miniscript.Satisfier{
		CheckOlder: func(v uint32) (bool, error) {
			olderSeen = append(olderSeen, v)
			return true, nil
		},
		CheckAfter: func(v uint32) (bool, error) {
			afterSeen = append(afterSeen, v)
			return true, nil
		},
		Sign:     sign,
		Preimage: preimage,
	}
	if _, err := ast.Satisfy(probe); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}

	noLock := &miniscript.Satisfier{
		CheckOlder: alwaysFalse,
		CheckAfter: alwaysFalse,
		Sign:       sign,
		Preimage:   preimage,
	}
	if _, err := ast.Satisfy(noLock); err == nil {
		return nil, nil, nil
	}

	for _, want := range dedupeU32(olderSeen) {
		want := want
		s := &miniscript.Satisfier{
			CheckOlder: func(v uint32) (bool, error) { return v == want, nil },
			CheckAfter: alwaysFalse,
			Sign:       sign,
			Preimage:   preimage,
		}
		if _, err := ast.Satisfy(s); err == nil {
			return &want, nil, nil
		}
	}
	for _, want := range dedupeU32(afterSeen) {
		want := want
		s := &miniscript.Satisfier{
			CheckOlder: alwaysFalse,
			CheckAfter: func(v uint32) (bool, error) { return v == want, nil },
			Sign:       sign,
			Preimage:   preimage,
		}
		if _, err := ast.Satisfy(s); err == nil {
			return nil, &want, nil
		}
	}

	return nil, nil, fmt.Errorf("%w: could not determine a consistent "+
		"spending constraint", ErrUnresolvable)
}

// WitnessWeight returns the serialized weight, in bytes, of a witness
// stack: one compact-size length prefix per element plus the element
// itself.
func WitnessWeight(w wire.TxWitness) int {
	total := 0
	for _, elem := range w {
		total += wire.VarIntSerializeSize(uint64(len(elem))) + len(elem)
	}
	return total
}

// MaxSatisfactionWeight probes ast with every pubkey in signerPubKeys
// able to sign and every preimage in preimages known, with every
// relative/absolute timelock treated as already satisfied, and returns
// the resulting witness weight as an upper bound for fee estimation.
func MaxSatisfactionWeight(ast *miniscript.AST, signerPubKeys [][]byte,
	preimages []Preimage) (int, error) {

	fakeSig := make([]byte, 64)
	signerSet := make(map[string]struct{}, len(signerPubKeys))
	for _, pk := range signerPubKeys {
		signerSet[hex.EncodeToString(pk)] = struct{}{}
	}
	preTable := preimageTable(preimages)

	satisfier := &miniscript.Satisfier{
		CheckOlder: alwaysTrue,
		CheckAfter: alwaysTrue,
		Sign: func(pubKey []byte) ([]byte, bool) {
			_, ok := signerSet[hex.EncodeToString(pubKey)]
			return fakeSig, ok
		},
		Preimage: func(hashFunc string, hash []byte) ([]byte, bool) {
			pre, ok := preTable[hashFunc+":"+hex.EncodeToString(hash)]
			return pre, ok
		},
	}
	witness, err := ast.Satisfy(satisfier)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnresolvable, err)
	}
	return WitnessWeight(witness), nil
}

func dedupeU32(vals []uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(vals))
	out := make([]uint32, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
