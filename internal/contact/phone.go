package contact

import (
	"regexp"
	"strings"
)

// CountryCode is prepended to national mobile numbers.
const CountryCode = "+218"

// mobilePrefix matches a national mobile number: optional trunk 0, then the
// mobile 9 and an operator digit 1-5.
var mobilePrefix = regexp.MustCompile(`^0?9[1-5]`)

// NormalizePhone rewrites national mobile numbers into international form:
// "0912345678" and "912345678" both become "+218912345678". Anything else,
// including numbers that already start with "+", is returned trimmed and
// otherwise unchanged. NormalizePhone(NormalizePhone(s)) == NormalizePhone(s).
func NormalizePhone(phone string) string {
	trimmed := strings.TrimSpace(phone)
	if !mobilePrefix.MatchString(trimmed) {
		return trimmed
	}
	return CountryCode + strings.TrimPrefix(trimmed, "0")
}
