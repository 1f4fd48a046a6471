// Package grammar recognizes the top-level shape of a descriptor
// string and performs the isolation step (checksum verification and
// wildcard substitution) that must run before shape dispatch.
package grammar

import (
	"errors"
	"strconv"
	"strings"

	"github.com/AreaLayer/descriptors/checksum"
)

var (
	ErrNoMatch         = errors.New("expression does not match any recognized descriptor form")
	ErrBadChecksum     = errors.New("descriptor checksum does not match its expression")
	ErrMissingChecksum = errors.New("descriptor checksum required but absent")
	ErrInvalidIndex    = errors.New("descriptor contains a wildcard but no valid index was supplied")
)

// Shape identifies one of the anchored top-level forms §4.1 recognizes.
type Shape int

const (
	Addr Shape = iota
	Pk
	Pkh
	Wpkh
	ShWpkh
	ShWsh
	Wsh
	Sh
)

func (s Shape) String() string {
	switch s {
	case Addr:
		return "addr"
	case Pk:
		return "pk"
	case Pkh:
		return "pkh"
	case Wpkh:
		return "wpkh"
	case ShWpkh:
		return "sh(wpkh)"
	case ShWsh:
		return "sh(wsh)"
	case Wsh:
		return "wsh"
	case Sh:
		return "sh"
	default:
		return "unknown"
	}
}

// Match is the result of recognizing a descriptor's top-level shape.
// Inner is the content between the outermost (possibly doubled) parens:
// an address literal for Addr, a key token for Pk/Pkh/Wpkh/ShWpkh, and a
// miniscript (or, for Sh, a miniscript or template call) otherwise.
type Match struct {
	Shape Shape
	Inner string
}

// p2shTemplateKeywords are the call names §4.1 permits as the inner
// expression of a bare sh(...) unless the caller explicitly allows
// arbitrary miniscript there.
var p2shTemplateKeywords = []string{
	"pk", "pkh", "wpkh", "combo", "multi", "sortedmulti", "multi_a", "sortedmulti_a",
}

// IsP2SHTemplate reports whether inner begins with one of the template
// keywords allowed in a bare P2SH without allowMiniscriptInP2SH.
func IsP2SHTemplate(inner string) bool {
	for _, kw := range p2shTemplateKeywords {
		if strings.HasPrefix(inner, kw+"(") {
			return true
		}
	}
	return false
}

// matchCall checks whether expr is exactly "name(...)" — name followed
// by a parenthesized group that closes at the very end of the string —
// and returns the content of that group. This both recognizes the call
// and rejects any trailing text after the matching close paren, since a
// match only succeeds when the close paren found by depth-counting is
// the final character.
func matchCall(expr, name string) (inner string, ok bool) {
	prefix := name + "("
	if !strings.HasPrefix(expr, prefix) {
		return "", false
	}
	depth := 1
	for i := len(prefix); i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				if i != len(expr)-1 {
					return "", false
				}
				return expr[len(prefix):i], true
			}
		}
	}
	return "", false
}

// Recognize dispatches on the first matching top-level form, as listed
// in §4.1's table.
func Recognize(expr string) (*Match, error) {
	if inner, ok := matchCall(expr, "addr"); ok {
		return &Match{Addr, inner}, nil
	}
	if inner, ok := matchCall(expr, "pk"); ok {
		return &Match{Pk, inner}, nil
	}
	if inner, ok := matchCall(expr, "pkh"); ok {
		return &Match{Pkh, inner}, nil
	}
	if inner, ok := matchCall(expr, "wpkh"); ok {
		return &Match{Wpkh, inner}, nil
	}
	if inner, ok := matchCall(expr, "sh"); ok {
		if wpkhInner, ok2 := matchCall(inner, "wpkh"); ok2 {
			return &Match{ShWpkh, wpkhInner}, nil
		}
		if wshInner, ok2 := matchCall(inner, "wsh"); ok2 {
			return &Match{ShWsh, wshInner}, nil
		}
		return &Match{Sh, inner}, nil
	}
	if inner, ok := matchCall(expr, "wsh"); ok {
		return &Match{Wsh, inner}, nil
	}
	return nil, ErrNoMatch
}

// Isolate runs the §4.1 isolation step: verify (or require) the
// "#checksum" suffix, strip it, then substitute every "*" wildcard with
// the decimal form of index. hasIndex distinguishes "no index supplied"
// from "index 0 supplied".
func Isolate(raw string, index int, hasIndex, checksumRequired bool) (string, error) {
	expr := raw
	if hashPos := strings.LastIndexByte(raw, '#'); hashPos >= 0 {
		prefix, sum := raw[:hashPos], raw[hashPos+1:]
		if !checksum.Validate(prefix, sum) {
			return "", ErrBadChecksum
		}
		expr = prefix
	} else if checksumRequired {
		return "", ErrMissingChecksum
	}

	if strings.ContainsRune(expr, '*') {
		if !hasIndex || index < 0 {
			return "", ErrInvalidIndex
		}
		expr = strings.ReplaceAll(expr, "*", strconv.Itoa(index))
	}
	return expr, nil
}
