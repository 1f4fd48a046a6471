// Package descriptor parses Bitcoin output descriptors that embed
// Miniscript policy fragments and resolves them to a scriptPubKey,
// witness/redeem script, script satisfaction, and the consensus-level
// spending constraints (nLockTime, nSequence) the chosen satisfaction
// requires.
package descriptor

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript/miniscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/AreaLayer/descriptors/checksum"
	"github.com/AreaLayer/descriptors/engine"
	"github.com/AreaLayer/descriptors/expand"
	"github.com/AreaLayer/descriptors/grammar"
	"github.com/AreaLayer/descriptors/keyexpr"
	"github.com/AreaLayer/descriptors/payment"
)

// Descriptor is the immutable result of parsing and resolving a
// descriptor expression. It is safe to share across goroutines for read
// operations (the Get* methods and Expand); UpdatePsbt/FinalizePsbtInput
// mutate the caller-supplied packet, so concurrency discipline on that
// object is the caller's responsibility.
type Descriptor struct {
	expression string
	shape      grammar.Shape
	network    *chaincfg.Params

	payment *payment.Payment

	miniscript         string
	expandedMiniscript string
	vars               *expand.Map
	ast                *miniscript.AST

	lockTime *uint32
	sequence *uint32

	preimages       []engine.Preimage
	maxSatWeight    int
	maxSatWeightErr error
}

// New constructs a Descriptor from expression, resolving any "*"
// wildcard against index. hasIndex distinguishes "no index supplied"
// from "index 0 supplied": it must be true whenever the caller intends
// the descriptor to be evaluated at a specific child, even index 0.
func New(expression string, index int, hasIndex bool, opts Options) (*Descriptor, error) {
	net := opts.network()

	isolated, err := grammar.Isolate(expression, index, hasIndex, opts.ChecksumRequired)
	if err != nil {
		return nil, classifyGrammarErr(err)
	}

	match, err := grammar.Recognize(isolated)
	if err != nil {
		return nil, classifyGrammarErr(err)
	}

	d := &Descriptor{expression: isolated, shape: match.Shape, network: net}

	preimages, err := resolvePreimages(opts)
	if err != nil {
		return nil, err
	}
	d.preimages = preimages

	switch match.Shape {
	case grammar.Addr:
		pay, err := payment.FromAddress(match.Inner, net)
		if err != nil {
			return nil, makeError(ErrInvalidAddress, err.Error())
		}
		d.payment = pay
		return d, nil

	case grammar.Pk:
		return d.buildSingleKey(match.Inner, false, payment.PK)

	case grammar.Pkh:
		return d.buildSingleKey(match.Inner, false, func(pub []byte) (*payment.Payment, error) {
			return payment.PKH(pub, net)
		})

	case grammar.Wpkh:
		return d.buildSingleKey(match.Inner, true, func(pub []byte) (*payment.Payment, error) {
			return payment.WPKH(pub, net)
		})

	case grammar.ShWpkh:
		return d.buildSingleKey(match.Inner, true, func(pub []byte) (*payment.Payment, error) {
			return payment.NestedWPKH(pub, net)
		})

	case grammar.Wsh:
		return d.buildMiniscriptPayment(match.Inner, true, opts, func(script []byte) (*payment.Payment, error) {
			if err := engine.CheckSize(script, engine.MaxP2WSHScriptSize); err != nil {
				return nil, err
			}
			return payment.WSH(script, net)
		})

	case grammar.ShWsh:
		return d.buildMiniscriptPayment(match.Inner, true, opts, func(script []byte) (*payment.Payment, error) {
			if err := engine.CheckSize(script, engine.MaxP2WSHScriptSize); err != nil {
				return nil, err
			}
			return payment.NestedWSH(script, net)
		})

	case grammar.Sh:
		if !opts.AllowMiniscriptInP2SH && !grammar.IsP2SHTemplate(match.Inner) {
			return nil, makeError(ErrMiniscriptInP2SHDisallowed, fmt.Sprintf(
				"sh(%s) is not one of the allowed P2SH templates", match.Inner))
		}
		return d.buildMiniscriptPayment(match.Inner, false, opts, func(script []byte) (*payment.Payment, error) {
			if err := engine.CheckSize(script, engine.MaxP2SHScriptSize); err != nil {
				return nil, err
			}
			return payment.SH(script, net)
		})

	default:
		return nil, makeError(ErrInvalidExpression, "unrecognized descriptor shape")
	}
}

// buildSingleKey resolves a key-only shape's one key expression into a
// Payment, and stashes it in a one-entry expansion map so updatePsbt can
// populate bip32Derivation the same way it does for miniscript shapes.
func (d *Descriptor) buildSingleKey(token string, isSegwit bool,
	build func(pubKey []byte) (*payment.Payment, error)) (*Descriptor, error) {

	key, err := keyexpr.Parse(token, d.network, isSegwit)
	if err != nil {
		return nil, classifyKeyErr(err)
	}
	pay, err := build(key.PubKey)
	if err != nil {
		return nil, makeError(ErrInvalidAddress, err.Error())
	}
	d.payment = pay
	d.vars = &expand.Map{Order: []string{"@0"}, Exprs: map[string]*keyexpr.Expression{"@0": key}}
	return d, nil
}

// buildMiniscriptPayment runs the §4.4-4.6 miniscript pipeline: expand,
// compile, gate on resource limits, build the Payment, then (unless
// AddressOnly) extract and cache the spending constraints.
func (d *Descriptor) buildMiniscriptPayment(ms string, isSegwit bool, opts Options,
	build func(script []byte) (*payment.Payment, error)) (*Descriptor, error) {

	expanded, vars, err := expand.Expand(ms, d.network, isSegwit)
	if err != nil {
		return nil, classifyExpandErr(err)
	}

	ast, script, err := engine.Compile(expanded, vars)
	if err != nil {
		return nil, classifyEngineErr(err)
	}
	if err := engine.CheckOpCount(script); err != nil {
		return nil, classifyEngineErr(err)
	}

	pay, err := build(script)
	if err != nil {
		return nil, classifyEngineErr(err)
	}

	d.miniscript = ms
	d.expandedMiniscript = expanded
	d.vars = vars
	d.ast = ast
	d.payment = pay

	if opts.AddressOnly {
		d.maxSatWeightErr = fmt.Errorf("%w: weight was not computed for an "+
			"address-only descriptor", engine.ErrUnresolvable)
		return d, nil
	}

	signers, err := resolveSigners(opts.SignersKeyExpressions, vars, d.network, isSegwit)
	if err != nil {
		return nil, err
	}

	probePreimages, err := d.probePreimageSet(opts)
	if err != nil {
		return nil, err
	}

	older, after, err := engine.ProbeConstraints(ast, signers, probePreimages)
	if err != nil {
		return nil, classifyEngineErr(err)
	}
	d.lockTime = after
	d.sequence = older

	d.maxSatWeight, d.maxSatWeightErr = engine.MaxSatisfactionWeight(ast, signers, probePreimages)

	return d, nil
}

// MaxSatisfactionWeight returns an upper bound, in bytes, on the witness
// weight of a satisfaction for this descriptor, computed once at
// construction by probing the satisfier with the assumed signer set and
// the known preimages. It fails for non-miniscript shapes and for
// descriptors constructed with AddressOnly.
func (d *Descriptor) MaxSatisfactionWeight() (int, error) {
	if d.ast == nil {
		return 0, makeError(ErrUnresolvable, "this descriptor has no miniscript to size")
	}
	if d.maxSatWeightErr != nil {
		return 0, classifyEngineErr(d.maxSatWeightErr)
	}
	return d.maxSatWeight, nil
}

// resolveSigners returns the pubkeys of the assumed signer set used for
// the fake-signature probe.
func resolveSigners(tokens []string, vars *expand.Map, net *chaincfg.Params,
	isSegwit bool) ([][]byte, error) {

	if len(tokens) == 0 {
		out := make([][]byte, 0, len(vars.Order))
		for _, v := range vars.Order {
			out = append(out, vars.Exprs[v].PubKey)
		}
		return out, nil
	}
	out := make([][]byte, 0, len(tokens))
	for _, tok := range tokens {
		key, err := keyexpr.Parse(tok, net, isSegwit)
		if err != nil {
			return nil, classifyKeyErr(err)
		}
		out = append(out, key.PubKey)
	}
	return out, nil
}

// probePreimageSet merges the real preimages supplied for construction
// with the KnownPreimageDigests probing set (Open Question 2), so the
// probe can consider a branch reachable without the caller already
// holding the preimage bytes.
func (d *Descriptor) probePreimageSet(opts Options) ([]engine.Preimage, error) {
	out := append([]engine.Preimage{}, d.preimages...)
	known := make(map[string]struct{}, len(d.preimages))
	for _, p := range d.preimages {
		known[digestKey(p.HashFunc, p.Hash)] = struct{}{}
	}
	for digest := range opts.KnownPreimageDigests {
		p, err := parseKnownDigest(digest)
		if err != nil {
			return nil, err
		}
		if _, ok := known[digestKey(p.HashFunc, p.Hash)]; ok {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func digestKey(hashFunc string, hash []byte) string {
	return hashFunc + ":" + fmt.Sprintf("%x", hash)
}

func resolvePreimages(opts Options) ([]engine.Preimage, error) {
	out := make([]engine.Preimage, 0, len(opts.Preimages))
	for _, p := range opts.Preimages {
		resolved, err := parsePreimage(p.Digest, p.Preimage)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

// GetAddress returns the Payment's address, failing ErrNoAddress for
// shapes like pk(...) that have none.
func (d *Descriptor) GetAddress() (string, error) {
	if d.payment.Address == "" {
		return "", makeError(ErrNoAddress, "this descriptor shape has no address")
	}
	return d.payment.Address, nil
}

// GetScriptPubKey returns the output script bytes.
func (d *Descriptor) GetScriptPubKey() []byte {
	return d.payment.ScriptPubKey
}

// GetWitnessScript returns the compiled witness script for wsh-backed
// shapes, or nil.
func (d *Descriptor) GetWitnessScript() []byte {
	return d.payment.WitnessScript
}

// GetRedeemScript returns the inner redeem script for sh-backed shapes,
// or nil.
func (d *Descriptor) GetRedeemScript() []byte {
	return d.payment.RedeemScript
}

// IsSegwit reports whether spending this descriptor requires a witness.
func (d *Descriptor) IsSegwit() bool {
	return d.payment.IsSegwit()
}

// GetLockTime returns the cached nLockTime, or nil if absent (no
// miniscript, AddressOnly construction, or no absolute timelock in the
// chosen satisfaction branch).
func (d *Descriptor) GetLockTime() *uint32 {
	return d.lockTime
}

// GetSequence returns the cached nSequence, or nil if absent.
func (d *Descriptor) GetSequence() *uint32 {
	return d.sequence
}

// Expand returns the expanded expression's constituent parts for
// introspection: the raw miniscript (if any), the expanded form with
// "@k" variables, and the expansion map.
func (d *Descriptor) Expand() (ms, expanded string, vars *expand.Map) {
	return d.miniscript, d.expandedMiniscript, d.vars
}

// String returns the canonical, checksum-free form of the descriptor.
func (d *Descriptor) String() string {
	return d.expression
}

// ChecksumString returns the descriptor suffixed with "#<checksum>".
func (d *Descriptor) ChecksumString() string {
	return d.expression + "#" + checksum.Compute(d.expression)
}

// Checksum returns the 8-character checksum of expr.
func Checksum(expr string) string {
	return checksum.Compute(expr)
}

// Signature is a single ECDSA/Schnorr signature known to the satisfier,
// bound to the pubkey it was produced against.
type Signature struct {
	PubKey    []byte
	Signature []byte
}

// GetScriptSatisfaction runs the satisfier (§4.6) against sigs and the
// descriptor's construction-time preimages, pinned to the cached
// (nLockTime, nSequence), and returns the resulting witness stack.
func (d *Descriptor) GetScriptSatisfaction(sigs []Signature) (wire.TxWitness, error) {
	if d.ast == nil {
		return nil, makeError(ErrUnresolvable, "this descriptor has no miniscript to satisfy")
	}

	engineSigs := make([]engine.Signature, 0, len(sigs))
	for _, s := range sigs {
		engineSigs = append(engineSigs, engine.Signature{PubKey: s.PubKey, Sig: s.Signature})
	}

	checkOlder := constraintCheck(d.sequence)
	checkAfter := constraintCheck(d.lockTime)

	witness, err := engine.Satisfy(d.ast, engineSigs, d.preimages, checkOlder, checkAfter)
	if err != nil {
		if d.lockTime != nil || d.sequence != nil {
			return nil, makeError(ErrConstraintsUnmet, err.Error())
		}
		return nil, makeError(ErrUnresolvable, err.Error())
	}
	return witness, nil
}

// constraintCheck builds a CheckOlder/CheckAfter predicate that accepts
// only the cached constraint value, or accepts nothing if want is nil
// (the satisfier must then find a branch that needs no such lock at
// all).
func constraintCheck(want *uint32) func(uint32) (bool, error) {
	if want == nil {
		return func(uint32) (bool, error) { return false, nil }
	}
	return func(v uint32) (bool, error) { return v == *want, nil }
}

func classifyGrammarErr(err error) error {
	switch {
	case errors.Is(err, grammar.ErrBadChecksum):
		return makeError(ErrBadChecksum, err.Error())
	case errors.Is(err, grammar.ErrMissingChecksum):
		return makeError(ErrMissingChecksum, err.Error())
	case errors.Is(err, grammar.ErrInvalidIndex):
		return makeError(ErrInvalidIndex, err.Error())
	default:
		return makeError(ErrInvalidExpression, err.Error())
	}
}

func classifyKeyErr(err error) error {
	switch {
	case errors.Is(err, keyexpr.ErrSegwitRequiresCompressed):
		return makeError(ErrSegwitRequiresCompressed, err.Error())
	case errors.Is(err, keyexpr.ErrHardenedFromXpub):
		return makeError(ErrHardenedFromXpub, err.Error())
	default:
		return makeError(ErrInvalidKey, err.Error())
	}
}

func classifyExpandErr(err error) error {
	if errors.Is(err, expand.ErrDuplicatePubkey) {
		return makeError(ErrDuplicatePubkey, err.Error())
	}
	return classifyKeyErr(err)
}

func classifyEngineErr(err error) error {
	switch {
	case errors.Is(err, engine.ErrInsaneMiniscript):
		return makeError(ErrInsaneMiniscript, err.Error())
	case errors.Is(err, engine.ErrScriptTooLarge):
		return makeError(ErrScriptTooLarge, err.Error())
	case errors.Is(err, engine.ErrTooManyOps):
		return makeError(ErrTooManyOps, err.Error())
	case errors.Is(err, engine.ErrUnresolvable):
		return makeError(ErrUnresolvable, err.Error())
	case errors.Is(err, engine.ErrConstraintsUnmet):
		return makeError(ErrConstraintsUnmet, err.Error())
	default:
		return makeError(ErrInsaneMiniscript, err.Error())
	}
}
