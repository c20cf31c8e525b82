// Package sizeval parses the human-sized integers, percentages, cache-size
// aliases, and time units that populate the settings store (internal/settings).
//
// Every function here is pure: no I/O, no process-global state, and no
// panics on malformed input. Errors always carry the offending substring and
// the subject name (the option being parsed) so a caller can report a
// useful message without the parser knowing about CLI plumbing.
package sizeval

import (
	"strconv"
	"strings"

	"github.com/stressgo/stressgo/internal/errs"
)

// byteScale maps a single trailing letter to a power-of-two byte multiplier.
var byteScale = map[byte]uint64{
	'b': 1,
	'k': 1 << 10,
	'm': 1 << 20,
	'g': 1 << 30,
	't': 1 << 40,
	'p': 1 << 50,
	'e': 1 << 60,
}

// timeScale maps a single trailing letter to a seconds multiplier.
var timeScale = map[byte]uint64{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
	'y': 31_536_000,
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseUint parses an unsigned decimal integer of bitSize width (8, 16, 32,
// or 64), optionally preceded by '+'. No whitespace, no trailing garbage.
func ParseUint(subject, s string, bitSize int) (uint64, error) {
	body := s
	if strings.HasPrefix(body, "+") {
		body = body[1:]
	}
	if !isDigits(body) {
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: strconv.ErrSyntax}
	}
	v, err := strconv.ParseUint(body, 10, bitSize)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrTooLarge}
		}
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: err}
	}
	return v, nil
}

// ParseInt parses a signed decimal integer of bitSize width, optionally
// preceded by '+' or '-'.
func ParseInt(subject, s string, bitSize int) (int64, error) {
	body := s
	if strings.HasPrefix(body, "+") || strings.HasPrefix(body, "-") {
		body = body[1:]
	}
	if !isDigits(body) {
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: strconv.ErrSyntax}
	}
	v, err := strconv.ParseInt(s, 10, bitSize)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrTooLarge}
		}
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: err}
	}
	return v, nil
}

// ParseScaled reads a leading decimal integer; if the last character of s is
// a letter, it is matched case-insensitively against scale and the decimal
// value is multiplied by the matched entry. No trailing letter means no
// scaling. A single scale letter only — multi-suffix strings such as
// "2m30s" are rejected with ErrBadSuffix, by design (see spec §8).
func ParseScaled(subject, s string, scale map[byte]uint64) (uint64, error) {
	if s == "" {
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: strconv.ErrSyntax}
	}
	last := s[len(s)-1]
	if last >= '0' && last <= '9' {
		return ParseUint(subject, s, 64)
	}

	digits := s[:len(s)-1]
	if !isDigits(strings.TrimPrefix(digits, "+")) {
		// A second letter embedded before the trailing suffix (e.g. the "m"
		// in "2m30s") means this is multi-suffix input, not a malformed
		// decimal — spec §8 requires BadSuffix for that case specifically.
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrBadSuffix}
	}
	n, err := ParseUint(subject, digits, 64)
	if err != nil {
		return 0, err
	}

	mult, ok := scale[lower(last)]
	if !ok {
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrBadSuffix}
	}
	if mult != 0 && n > (^uint64(0))/mult {
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrTooLarge}
	}
	return n * mult, nil
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}

// ParseBytes parses a byte count with the b/k/m/g/t/p/e suffix table.
func ParseBytes(subject, s string) (uint64, error) {
	return ParseScaled(subject, s, byteScale)
}

// ParseTime parses a duration in seconds with the s/m/h/d/w/y suffix table.
// Multi-suffix input (e.g. "2m30s") is not supported: the trailing letter is
// taken as the sole scale and everything before it must be digits, so
// "2m30s" fails because "2m30" is not a valid decimal integer.
func ParseTime(subject, s string) (uint64, error) {
	return ParseScaled(subject, s, timeScale)
}

// CacheLevel identifies a CPU cache for ParseBytesOrCache.
type CacheLevel struct {
	IsLLC bool
	Level int // 0..5, valid only when !IsLLC
}

// ParseBytesOrCache parses a literal byte size, or, if the string begins
// with 'L'/'l', a cache-size alias: "LLC" selects the last-level cache, and
// "L<n>" with n in [0,5] selects that level. resolve is supplied by
// the platform-probe collaborator (out of scope here); it converts a
// CacheLevel into a concrete byte count.
func ParseBytesOrCache(subject, s string, resolve func(CacheLevel) (uint64, bool)) (uint64, error) {
	if s == "" {
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrUnknownCache}
	}
	if s[0] != 'L' && s[0] != 'l' {
		return ParseBytes(subject, s)
	}

	rest := s[1:]
	var cl CacheLevel
	switch {
	case strings.EqualFold(rest, "LC"):
		cl = CacheLevel{IsLLC: true}
	case len(rest) == 1 && rest[0] >= '0' && rest[0] <= '5':
		cl = CacheLevel{Level: int(rest[0] - '0')}
	default:
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrUnknownCache}
	}

	if resolve == nil {
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrUnknownCache}
	}
	v, ok := resolve(cl)
	if !ok {
		return 0, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrUnknownCache}
	}
	return v, nil
}

// ParseBytesPercent interprets a trailing '%' as a percentage of max spread
// evenly over instances: result = max * v / (100 * instances). Without a
// trailing '%' it falls through to ParseBytes. Returns (value, isPercent).
func ParseBytesPercent(subject, s string, instances int, max uint64) (uint64, bool, error) {
	if !strings.HasSuffix(s, "%") {
		v, err := ParseBytes(subject, s)
		return v, false, err
	}

	digits := strings.TrimSuffix(s, "%")
	v, err := ParseUint(subject, digits, 64)
	if err != nil {
		return 0, false, err
	}
	if instances <= 0 {
		return 0, false, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrDivByZero}
	}
	// max == 0 is a valid degenerate case (nothing to apportion); the caller
	// still receives an explicit error because a percentage of a zero
	// quota signals a misconfigured caller, per spec §8.
	if max == 0 {
		return 0, false, &errs.ParseError{Subject: subject, Input: s, Cause: errs.ErrDivByZero}
	}

	result := max * v / (100 * uint64(instances))
	return result, true, nil
}

// ParseInstancesPercent parses an instance count, or, with a trailing '%',
// rounds cpus*v/100 to the nearest integer. A non-zero v always yields a
// result > 0, and the result never exceeds math.MaxInt32.
func ParseInstancesPercent(subject, s string, cpus int) (int32, error) {
	if !strings.HasSuffix(s, "%") {
		v, err := ParseInt(subject, s, 32)
		if err != nil {
			return 0, err
		}
		return int32(v), nil
	}

	digits := strings.TrimSuffix(s, "%")
	v, err := ParseUint(subject, digits, 64)
	if err != nil {
		return 0, err
	}

	num := uint64(cpus) * v
	result := (num + 50) / 100 // round to nearest
	if result == 0 && v > 0 {
		result = 1
	}
	const maxInt32 = uint64(1<<31 - 1)
	if result > maxInt32 {
		result = maxInt32
	}
	return int32(result), nil
}
