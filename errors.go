package descriptor

import "fmt"

// ErrorCode identifies a kind of descriptor failure.
type ErrorCode int

const (
	// ErrInvalidExpression indicates the expression matched none of the
	// recognized top-level descriptor forms.
	ErrInvalidExpression ErrorCode = iota

	// ErrBadChecksum indicates a supplied "#checksum" suffix does not
	// match the checksum of the expression it is attached to.
	ErrBadChecksum

	// ErrMissingChecksum indicates checksumRequired was set but no
	// "#checksum" suffix was present.
	ErrMissingChecksum

	// ErrInvalidIndex indicates a wildcard is present but index was not
	// supplied as a non-negative integer.
	ErrInvalidIndex

	// ErrInvalidAddress indicates an addr(...) payload could not be
	// decoded for the target network.
	ErrInvalidAddress

	// ErrInvalidKey indicates a key expression is malformed.
	ErrInvalidKey

	// ErrSegwitRequiresCompressed indicates an uncompressed pubkey or
	// WIF key was used in a segwit context.
	ErrSegwitRequiresCompressed

	// ErrHardenedFromXpub indicates an extended public key was asked to
	// derive through a hardened step.
	ErrHardenedFromXpub

	// ErrDuplicatePubkey indicates two key tokens in a miniscript
	// resolve to the same compressed public key.
	ErrDuplicatePubkey

	// ErrInsaneMiniscript indicates the miniscript compiler rejected the
	// expanded form.
	ErrInsaneMiniscript

	// ErrScriptTooLarge indicates a compiled script exceeds its
	// context's consensus size limit.
	ErrScriptTooLarge

	// ErrTooManyOps indicates a compiled script exceeds the 201 non-push
	// opcode consensus limit.
	ErrTooManyOps

	// ErrMiniscriptInP2SHDisallowed indicates a bare sh(...) contains
	// miniscript outside the allowed template keywords, without
	// allowMiniscriptInP2SH set.
	ErrMiniscriptInP2SHDisallowed

	// ErrUnresolvable indicates the satisfier found no non-malleable
	// solution for the given knowns.
	ErrUnresolvable

	// ErrConstraintsUnmet indicates no satisfaction matches the required
	// (nLockTime, nSequence).
	ErrConstraintsUnmet

	// ErrNoAddress indicates getAddress() was called on a Payment with
	// no address form (e.g. pk(...)).
	ErrNoAddress

	// ErrNoSignatures indicates finalizePsbtInput was called on an input
	// with no partial signatures.
	ErrNoSignatures

	// ErrNoSuchOutput indicates updatePsbt referenced a vout beyond the
	// bounds of the parsed transaction.
	ErrNoSuchOutput

	// ErrLocktimeConflict indicates updatePsbt would need to set
	// nLockTime on a packet that already carries a nonzero one.
	ErrLocktimeConflict
)

var errorCodeStrings = map[ErrorCode]string{
	ErrInvalidExpression:          "ErrInvalidExpression",
	ErrBadChecksum:                "ErrBadChecksum",
	ErrMissingChecksum:            "ErrMissingChecksum",
	ErrInvalidIndex:               "ErrInvalidIndex",
	ErrInvalidAddress:             "ErrInvalidAddress",
	ErrInvalidKey:                 "ErrInvalidKey",
	ErrSegwitRequiresCompressed:   "ErrSegwitRequiresCompressed",
	ErrHardenedFromXpub:           "ErrHardenedFromXpub",
	ErrDuplicatePubkey:            "ErrDuplicatePubkey",
	ErrInsaneMiniscript:           "ErrInsaneMiniscript",
	ErrScriptTooLarge:             "ErrScriptTooLarge",
	ErrTooManyOps:                 "ErrTooManyOps",
	ErrMiniscriptInP2SHDisallowed: "ErrMiniscriptInP2SHDisallowed",
	ErrUnresolvable:               "ErrUnresolvable",
	ErrConstraintsUnmet:           "ErrConstraintsUnmet",
	ErrNoAddress:                  "ErrNoAddress",
	ErrNoSignatures:               "ErrNoSignatures",
	ErrNoSuchOutput:               "ErrNoSuchOutput",
	ErrLocktimeConflict:           "ErrLocktimeConflict",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a descriptor-level failure. Callers can type-assert
// to Error and inspect ErrorCode to branch on the specific failure mode
// rather than matching error strings.
type Error struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface.
func (e Error) Error() string {
	return e.Description
}

// makeError creates an Error given a code and a formatted description.
func makeError(c ErrorCode, desc string) Error {
	return Error{ErrorCode: c, Description: desc}
}

// IsErrorCode reports whether err is an Error carrying the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	dErr, ok := err.(Error)
	return ok && dErr.ErrorCode == c
}
