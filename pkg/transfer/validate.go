package transfer

import (
	"math"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsValidAmount reports whether s is a plain decimal number greater than
// zero, the same notation ParseUnits accepts.
func IsValidAmount(s string) bool {
	if !isDecimal(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f > 0
}

// IsValidRecipient reports whether s is "0x" followed by 40 hex digits.
// The EIP-55 checksum is not enforced.
func IsValidRecipient(s string) bool {
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

// ChecksumMismatch reports whether s is a mixed-case address whose EIP-55
// checksum does not match. All-lower and all-upper addresses carry no
// checksum and never mismatch.
func ChecksumMismatch(s string) bool {
	if !IsValidRecipient(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return false
	}
	return common.HexToAddress(s).Hex() != s
}

func IsFormValid(recipient, amount string) bool {
	return IsValidRecipient(recipient) && IsValidAmount(amount)
}

// SubmitDisabled is the enablement rule for the send action.
func SubmitDisabled(recipient, amount string, loading bool) bool {
	return !IsFormValid(recipient, amount) || loading
}
