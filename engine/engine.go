// Package engine drives the external miniscript compiler/satisfier
// (github.com/btcsuite/btcd/txscript/miniscript) against an already
// key-expanded miniscript string, and enforces the consensus resource
// limits a compiled script must stay under.
package engine

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/txscript/miniscript"

	"github.com/AreaLayer/descriptors/expand"
)

// Sentinel errors surfaced to the façade, which re-classifies them into
// its own ErrorCode taxonomy.
var (
	ErrInsaneMiniscript = errors.New("miniscript compiler rejected the expanded form")
	ErrScriptTooLarge   = errors.New("script exceeds the consensus size limit for its context")
	ErrTooManyOps       = errors.New("script exceeds the consensus non-push opcode limit")
	ErrUnresolvable     = errors.New("no satisfaction could be found for the given knowns")
	ErrConstraintsUnmet = errors.New("no satisfaction matches the required nLockTime/nSequence")
)

// Consensus/standardness limits from the descriptor specification this
// library follows; see miniscript.go's own identical constants, which
// are unexported there.
const (
	MaxP2SHScriptSize  = 520
	MaxP2WSHScriptSize = 3600
	MaxNonPushOps      = 201
)

// Compile parses expandedMiniscript, binds its "@k" variables to the
// pubkeys in vars, checks that the result is sane (unambiguous, not
// malleable, needs a signature), and assembles it to Bitcoin Script
// bytes.
func Compile(expandedMiniscript string, vars *expand.Map) (*miniscript.AST, []byte, error) {
	ast, err := miniscript.Parse(expandedMiniscript)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInsaneMiniscript, err)
	}
	if err := ast.ApplyVars(vars.Lookup); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInsaneMiniscript, err)
	}
	if err := ast.IsSane(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInsaneMiniscript, err)
	}
	script, err := ast.Script()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInsaneMiniscript, err)
	}
	return ast, script, nil
}

// CountNonPushOps walks script the same way the consensus interpreter's
// tokenizer does and counts the opcodes that count against the 201-op
// budget (everything above OP_16; small pushes and OP_1..OP_16 are
// free).
func CountNonPushOps(script []byte) (int, error) {
	count := 0
	tok := txscript.MakeScriptTokenizer(txscript.DefaultScriptVersion, script)
	for tok.Next() {
		if tok.Opcode() > txscript.OP_16 {
			count++
		}
	}
	return count, tok.Err()
}

// CheckSize enforces a maximum script length, failing ErrScriptTooLarge.
// limit is MaxP2SHScriptSize for a bare P2SH redeem script or
// MaxP2WSHScriptSize for a P2WSH witness script.
func CheckSize(script []byte, limit int) error {
	if len(script) > limit {
		return fmt.Errorf("%w: %d bytes, limit %d",
			ErrScriptTooLarge, len(script), limit)
	}
	return nil
}

// CheckOpCount enforces the 201 non-push opcode consensus limit, failing
// ErrTooManyOps.
func CheckOpCount(script []byte) error {
	n, err := CountNonPushOps(script)
	if err != nil {
		return err
	}
	if n > MaxNonPushOps {
		return fmt.Errorf("%w: %d ops, limit %d", ErrTooManyOps, n, MaxNonPushOps)
	}
	return nil
}
