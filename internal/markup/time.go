package markup

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidTime is returned by ParseTime for strings that are neither plain
// seconds nor a colon-separated clock value.
var ErrInvalidTime = errors.New("invalid time")

// maxTimeFieldDigits bounds each field so the fixed-radix sum cannot overflow.
const maxTimeFieldDigits = 9

// ParseTime converts "90", "1:30" or "00:01:30" to seconds.
//
// Fields are combined with fixed radix 60 and are not range checked, so
// "1:75" is 135 seconds. Empty fields, signs and more than three fields are
// rejected with ErrInvalidTime.
func ParseTime(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q has more than three fields", ErrInvalidTime, s)
	}

	total := 0
	for _, p := range parts {
		if p == "" || len(p) > maxTimeFieldDigits || !allDigits(p) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
		total = total*60 + n
	}
	return total, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
