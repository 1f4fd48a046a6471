// Package psbtutil glues a resolved descriptor (its Payment and
// ExpansionMap) onto a PSBT packet: populating a new input from a
// previous transaction and finalizing an input once signatures are
// available, on top of github.com/btcsuite/btcd/btcutil/psbt.
package psbtutil

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"

	"github.com/AreaLayer/descriptors/expand"
	"github.com/AreaLayer/descriptors/payment"
)

var (
	ErrNoSuchOutput     = errors.New("referenced transaction has no such output")
	ErrLocktimeConflict = errors.New("psbt already carries a conflicting nLockTime")
	ErrNoSignatures     = errors.New("psbt input carries no partial signatures to finalize with")
)

// noLockTimeSequence disables relative-locktime interpretation of the
// sequence field while leaving CHECKLOCKTIMEVERIFY enabled, per BIP65.
const noLockTimeSequence = wire.MaxTxInSequenceNum - 1

// UpdateInput implements the updatePsbt(txHex, vout, psbt) contract: it
// parses txHex, locates its vout'th output, and appends a new input to
// packet spending it. lockTime/sequence are the descriptor's cached
// spending constraints, or nil if absent.
func UpdateInput(packet *psbt.Packet, txHex string, vout uint32,
	pay *payment.Payment, vars *expand.Map, lockTime, sequence *uint32) (int, error) {

	rawTx, err := hex.DecodeString(txHex)
	if err != nil {
		return 0, fmt.Errorf("bad transaction hex: %w", err)
	}
	var prevTx wire.MsgTx
	if err := prevTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return 0, fmt.Errorf("bad transaction: %w", err)
	}
	if int(vout) >= len(prevTx.TxOut) {
		return 0, ErrNoSuchOutput
	}
	out := prevTx.TxOut[vout]

	if lockTime != nil {
		if packet.UnsignedTx.LockTime != 0 {
			return 0, ErrLocktimeConflict
		}
		packet.UnsignedTx.LockTime = *lockTime
	}

	seq := wire.MaxTxInSequenceNum
	switch {
	case sequence != nil:
		seq = *sequence
	case lockTime != nil:
		seq = noLockTimeSequence
	}

	prevHash := prevTx.TxHash()
	txIn := wire.NewTxIn(wire.NewOutPoint(&prevHash, vout), nil, nil)
	txIn.Sequence = seq

	idx := len(packet.UnsignedTx.TxIn)
	packet.UnsignedTx.TxIn = append(packet.UnsignedTx.TxIn, txIn)

	pin := psbt.PInput{}
	if pay.IsSegwit() {
		pin.WitnessUtxo = out
	} else {
		pin.NonWitnessUtxo = &prevTx
	}
	if len(pay.WitnessScript) > 0 {
		pin.WitnessScript = pay.WitnessScript
	}
	if len(pay.RedeemScript) > 0 {
		pin.RedeemScript = pay.RedeemScript
	}
	pin.Bip32Derivation = bip32Derivations(vars)

	packet.Inputs = append(packet.Inputs, pin)
	return idx, nil
}

// bip32Derivations builds the PSBT bip32Derivation records for every
// expansion-map entry that carries a master fingerprint, combining the
// "[fpr/path]" origin path with the extended key's own trailing
// derivation path.
func bip32Derivations(vars *expand.Map) []*psbt.Bip32Derivation {
	var out []*psbt.Bip32Derivation
	for _, v := range vars.Order {
		expr := vars.Exprs[v]
		if len(expr.OriginFingerprint) != 4 {
			continue
		}
		fullPath := make([]uint32, 0, len(expr.OriginPath)+len(expr.DerivationPath))
		fullPath = append(fullPath, expr.OriginPath...)
		fullPath = append(fullPath, expr.DerivationPath...)
		out = append(out, &psbt.Bip32Derivation{
			PubKey:               expr.PubKey,
			MasterKeyFingerprint: binary.LittleEndian.Uint32(expr.OriginFingerprint),
			Bip32Path:            fullPath,
		})
	}
	return out
}
