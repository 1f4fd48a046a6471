package descriptor

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/AreaLayer/descriptors/psbtutil"
)

// UpdatePsbt implements the §6 updatePsbt(txHex, vout, psbt) contract:
// it parses txHex, locates outs[vout], and appends a new input to
// packet spending it, populated with this descriptor's witness/redeem
// script, bip32Derivation records, and cached spending constraints. It
// returns the new input's index.
func (d *Descriptor) UpdatePsbt(txHex string, vout uint32, packet *psbt.Packet) (int, error) {
	idx, err := psbtutil.UpdateInput(packet, txHex, vout, d.payment, d.vars, d.lockTime, d.sequence)
	if err != nil {
		return 0, classifyPsbtErr(err)
	}
	return idx, nil
}

// FinalizePsbtInput implements the §6 finalizePsbtInput(index, psbt)
// contract: it reads the input's partialSig, computes a satisfaction
// via GetScriptSatisfaction, and finalizes the input.
func (d *Descriptor) FinalizePsbtInput(index int, packet *psbt.Packet) error {
	if len(packet.Inputs[index].PartialSigs) == 0 {
		return makeError(ErrNoSignatures, "psbt input carries no partial signatures to finalize with")
	}

	if d.ast == nil {
		return psbtutil.FinalizeInput(packet, index, d.payment, nil)
	}

	sigs := make([]Signature, 0, len(packet.Inputs[index].PartialSigs))
	for _, sig := range packet.Inputs[index].PartialSigs {
		sigs = append(sigs, Signature{PubKey: sig.PubKey, Signature: sig.Signature})
	}
	satisfaction, err := d.GetScriptSatisfaction(sigs)
	if err != nil {
		return err
	}

	if err := psbtutil.FinalizeInput(packet, index, d.payment, satisfaction); err != nil {
		return classifyPsbtErr(err)
	}
	return nil
}

func classifyPsbtErr(err error) error {
	switch {
	case errors.Is(err, psbtutil.ErrNoSuchOutput):
		return makeError(ErrNoSuchOutput, err.Error())
	case errors.Is(err, psbtutil.ErrLocktimeConflict):
		return makeError(ErrLocktimeConflict, err.Error())
	case errors.Is(err, psbtutil.ErrNoSignatures):
		return makeError(ErrNoSignatures, err.Error())
	default:
		return err
	}
}
