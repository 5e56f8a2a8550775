package tx

import (
	"fmt"
	"strings"
)

// NativeDecimals is the decimal count of the native coin (1 SOL = 1e9 lamports).
const NativeDecimals = 9

// ToBaseUnits converts a human-readable decimal amount (e.g. "1.5") into
// base units for an asset with the given decimal count. The conversion is
// exact: amounts with more fractional digits than the asset supports are
// rejected rather than rounded.
func ToBaseUnits(human string, decimals uint8) (uint64, error) {
	human = strings.TrimSpace(human)
	if human == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(human, "-") {
		return 0, fmt.Errorf("amount must not be negative")
	}

	whole, frac := human, ""
	if i := strings.IndexByte(human, '.'); i >= 0 {
		whole, frac = human[:i], human[i+1:]
	}
	if whole == "" {
		whole = "0"
	}

	if len(frac) > int(decimals) {
		// Trailing zeros beyond the supported precision are harmless.
		excess := frac[decimals:]
		if strings.Trim(excess, "0") != "" {
			return 0, fmt.Errorf("amount %q has more than %d decimal places", human, decimals)
		}
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", int(decimals)-len(frac))

	var out uint64
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("invalid amount %q", human)
		}
		d := uint64(r - '0')
		if out > (^uint64(0)-d)/10 {
			return 0, fmt.Errorf("amount %q overflows", human)
		}
		out = out*10 + d
	}
	return out, nil
}

// FromBaseUnits renders a base-unit amount as a human-readable decimal
// string, trimming trailing fractional zeros.
func FromBaseUnits(amount uint64, decimals uint8) string {
	if decimals == 0 {
		return fmt.Sprintf("%d", amount)
	}
	s := fmt.Sprintf("%0*d", int(decimals)+1, amount)
	whole, frac := s[:len(s)-int(decimals)], s[len(s)-int(decimals):]
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
