package psbtutil

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/AreaLayer/descriptors/payment"
)

// FinalizeInput implements the finalizePsbtInput(index, psbt) contract.
// satisfaction is nil for key-only payment shapes, which fall through to
// the default signature+pubkey finalizer; for miniscript shapes it is
// the witness stack returned by the satisfier (without the trailing
// witness/redeem script, which is appended here).
func FinalizeInput(packet *psbt.Packet, index int, pay *payment.Payment,
	satisfaction wire.TxWitness) error {

	in := &packet.Inputs[index]
	if len(in.PartialSigs) == 0 {
		return ErrNoSignatures
	}

	if satisfaction == nil {
		return finalizeKeyOnly(packet, index, pay)
	}
	return finalizeMiniscript(packet, index, pay, satisfaction)
}

// finalizeKeyOnly assembles the standard scriptSig/witness for the
// non-miniscript payment templates directly from the single partial
// signature recorded for the input.
func finalizeKeyOnly(packet *psbt.Packet, index int, pay *payment.Payment) error {
	in := &packet.Inputs[index]
	sig := in.PartialSigs[0]

	switch pay.Kind {
	case payment.P2PK:
		b := txscript.NewScriptBuilder()
		b.AddData(sig.Signature)
		script, err := b.Script()
		if err != nil {
			return err
		}
		in.FinalScriptSig = script

	case payment.P2PKH:
		b := txscript.NewScriptBuilder()
		b.AddData(sig.Signature)
		b.AddData(sig.PubKey)
		script, err := b.Script()
		if err != nil {
			return err
		}
		in.FinalScriptSig = script

	case payment.P2WPKH:
		witness, err := serializeWitness(wire.TxWitness{sig.Signature, sig.PubKey})
		if err != nil {
			return err
		}
		in.FinalScriptWitness = witness

	case payment.P2SH_P2WPKH:
		witness, err := serializeWitness(wire.TxWitness{sig.Signature, sig.PubKey})
		if err != nil {
			return err
		}
		in.FinalScriptWitness = witness
		b := txscript.NewScriptBuilder()
		b.AddData(pay.RedeemScript)
		script, err := b.Script()
		if err != nil {
			return err
		}
		in.FinalScriptSig = script

	default:
		return ErrNoSignatures
	}

	clearAfterFinalize(in)
	return nil
}

// finalizeMiniscript assembles the final scriptSig/witness for a
// miniscript-backed payment from a satisfaction witness stack, appending
// the redeem/witness script the satisfaction was compiled against.
func finalizeMiniscript(packet *psbt.Packet, index int, pay *payment.Payment,
	satisfaction wire.TxWitness) error {

	in := &packet.Inputs[index]

	switch pay.Kind {
	case payment.P2WSH:
		full := append(append(wire.TxWitness{}, satisfaction...), pay.WitnessScript)
		witness, err := serializeWitness(full)
		if err != nil {
			return err
		}
		in.FinalScriptWitness = witness

	case payment.P2SH_P2WSH:
		full := append(append(wire.TxWitness{}, satisfaction...), pay.WitnessScript)
		witness, err := serializeWitness(full)
		if err != nil {
			return err
		}
		in.FinalScriptWitness = witness
		b := txscript.NewScriptBuilder()
		b.AddData(pay.RedeemScript)
		script, err := b.Script()
		if err != nil {
			return err
		}
		in.FinalScriptSig = script

	case payment.P2SH:
		b := txscript.NewScriptBuilder()
		for _, elem := range satisfaction {
			b.AddData(elem)
		}
		b.AddData(pay.RedeemScript)
		script, err := b.Script()
		if err != nil {
			return err
		}
		in.FinalScriptSig = script

	default:
		return ErrNoSignatures
	}

	clearAfterFinalize(in)
	return nil
}

// clearAfterFinalize drops the now-redundant PSBT fields BIP174 requires
// a finalizer to remove once FinalScriptSig/FinalScriptWitness are set.
func clearAfterFinalize(in *psbt.PInput) {
	in.PartialSigs = nil
	in.Bip32Derivation = nil
	in.RedeemScript = nil
	in.WitnessScript = nil
}

// serializeWitness encodes a witness stack in the wire format used by
// the PSBT FinalScriptWitness field: a compact-size element count
// followed by each element as a compact-size-prefixed byte string.
func serializeWitness(w wire.TxWitness) ([]byte, error) {
	var buf bytes.Buffer
	if err := wire.WriteVarInt(&buf, 0, uint64(len(w))); err != nil {
		return nil, err
	}
	for _, item := range w {
		if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
