// Package payment builds and classifies the output-script templates a
// descriptor can resolve to: P2PK, P2PKH, P2WPKH, P2SH, P2WSH, the two
// nested-segwit combinations, and P2TR (recognized from an address
// literal only).
package payment

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// ErrInvalidAddress is returned when an addr(...) payload cannot be
// decoded for the target network, or decodes to a template this library
// does not classify.
var ErrInvalidAddress = errors.New("invalid address")

// Kind discriminates the payment template a Payment was built from.
type Kind int

const (
	P2PK Kind = iota
	P2PKH
	P2WPKH
	P2SH
	P2WSH
	P2SH_P2WPKH
	P2SH_P2WSH
	P2TR
)

func (k Kind) String() string {
	switch k {
	case P2PK:
		return "P2PK"
	case P2PKH:
		return "P2PKH"
	case P2WPKH:
		return "P2WPKH"
	case P2SH:
		return "P2SH"
	case P2WSH:
		return "P2WSH"
	case P2SH_P2WPKH:
		return "P2SH_P2WPKH"
	case P2SH_P2WSH:
		return "P2SH_P2WSH"
	case P2TR:
		return "P2TR"
	default:
		return "UNKNOWN"
	}
}

// Payment is a discriminated output-script template. RedeemScript is the
// inner sh(...) script (a witness-program push for the two nested-segwit
// kinds, or the inner template/miniscript script for bare P2SH).
// WitnessScript is the inner wsh(...) miniscript script.
type Payment struct {
	Kind          Kind
	ScriptPubKey  []byte
	RedeemScript  []byte
	WitnessScript []byte
	Address       string
}

// IsSegwit reports whether spending this payment requires a witness.
func (p *Payment) IsSegwit() bool {
	switch p.Kind {
	case P2WPKH, P2WSH, P2SH_P2WPKH, P2SH_P2WSH:
		return true
	default:
		return false
	}
}

// PK builds a bare pk(KEY) payment. It has no address.
func PK(pubKey []byte) (*Payment, error) {
	b := txscript.NewScriptBuilder()
	b.AddData(pubKey)
	b.AddOp(txscript.OP_CHECKSIG)
	script, err := b.Script()
	if err != nil {
		return nil, err
	}
	return &Payment{Kind: P2PK, ScriptPubKey: script}, nil
}

// PKH builds a pkh(KEY) payment.
func PKH(pubKey []byte, net *chaincfg.Params) (*Payment, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubKey), net)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	return &Payment{Kind: P2PKH, ScriptPubKey: script, Address: addr.EncodeAddress()}, nil
}

// WPKH builds a wpkh(KEY) payment.
func WPKH(pubKey []byte, net *chaincfg.Params) (*Payment, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pubKey), net)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	return &Payment{Kind: P2WPKH, ScriptPubKey: script, Address: addr.EncodeAddress()}, nil
}

// NestedWPKH builds a sh(wpkh(KEY)) payment: a P2SH output wrapping a
// P2WPKH witness program.
func NestedWPKH(pubKey []byte, net *chaincfg.Params) (*Payment, error) {
	inner, err := WPKH(pubKey, net)
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressScriptHash(inner.ScriptPubKey, net)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	return &Payment{
		Kind:         P2SH_P2WPKH,
		ScriptPubKey: script,
		RedeemScript: inner.ScriptPubKey,
		Address:      addr.EncodeAddress(),
	}, nil
}

// WSH builds a wsh(MS) payment from the already-compiled witness
// script.
func WSH(witnessScript []byte, net *chaincfg.Params) (*Payment, error) {
	hash := chainhash.HashB(witnessScript)
	addr, err := btcutil.NewAddressWitnessScriptHash(hash, net)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	return &Payment{
		Kind:          P2WSH,
		ScriptPubKey:  script,
		WitnessScript: witnessScript,
		Address:       addr.EncodeAddress(),
	}, nil
}

// NestedWSH builds a sh(wsh(MS)) payment: a P2SH output wrapping a
// P2WSH witness program.
func NestedWSH(witnessScript []byte, net *chaincfg.Params) (*Payment, error) {
	inner, err := WSH(witnessScript, net)
	if err != nil {
		return nil, err
	}
	addr, err := btcutil.NewAddressScriptHash(inner.ScriptPubKey, net)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	return &Payment{
		Kind:          P2SH_P2WSH,
		ScriptPubKey:  script,
		RedeemScript:  inner.ScriptPubKey,
		WitnessScript: witnessScript,
		Address:       addr.EncodeAddress(),
	}, nil
}

// SH builds a bare sh(...) payment from the already-compiled redeem
// script (a template or, when allowed, a miniscript script).
func SH(redeemScript []byte, net *chaincfg.Params) (*Payment, error) {
	addr, err := btcutil.NewAddressScriptHash(redeemScript, net)
	if err != nil {
		return nil, err
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, err
	}
	return &Payment{
		Kind:         P2SH,
		ScriptPubKey: script,
		RedeemScript: redeemScript,
		Address:      addr.EncodeAddress(),
	}, nil
}

// FromAddress decodes an addr(...) literal and classifies it into one of
// the recognized payment templates.
func FromAddress(addr string, net *chaincfg.Params) (*Payment, error) {
	decoded, err := btcutil.DecodeAddress(addr, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	kind, err := classify(script, net)
	if err != nil {
		return nil, err
	}
	return &Payment{Kind: kind, ScriptPubKey: script, Address: decoded.EncodeAddress()}, nil
}

func classify(script []byte, net *chaincfg.Params) (Kind, error) {
	class, _, _, err := txscript.ExtractPkScriptAddrs(script, net)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	switch class {
	case txscript.PubKeyHashTy:
		return P2PKH, nil
	case txscript.ScriptHashTy:
		return P2SH, nil
	case txscript.WitnessV0PubKeyHashTy:
		return P2WPKH, nil
	case txscript.WitnessV0ScriptHashTy:
		return P2WSH, nil
	case txscript.WitnessV1TaprootTy:
		return P2TR, nil
	case txscript.PubKeyTy:
		return P2PK, nil
	default:
		return 0, fmt.Errorf("%w: unrecognized script template", ErrInvalidAddress)
	}
}
