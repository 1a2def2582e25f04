package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// TimestreamField is the one field every payload must carry.
const TimestreamField = "email_timestream"

// MaxFutureSkew is how far ahead of the validator's clock a timestamp may be.
const MaxFutureSkew = 300 * time.Second

// maxEpochDigits bounds the significant digits parsed from an integer form.
// Anything longer is far past any acceptable epoch.
const maxEpochDigits = 20

var (
	ErrTimestreamMissing     = errors.New("email_timestream is missing")
	ErrTimestreamNotPositive = errors.New("email_timestream must be a positive epoch integer")
	ErrTimestreamInFuture    = errors.New("email_timestream is in the future")
)

// ValidateTimestream checks data[email_timestream] against now and returns
// the parsed epoch seconds.
//
// Accepted forms are a JSON number (fractions truncate toward zero) or a
// string holding a base-10 integer with optional surrounding whitespace.
// JSON null counts as missing; booleans, arrays and objects are rejected.
// Parsing cost is bounded regardless of how large the value is.
func ValidateTimestream(data map[string]json.RawMessage, now time.Time) (*big.Int, error) {
	raw, ok := data[TimestreamField]
	if !ok {
		return nil, ErrTimestreamMissing
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrTimestreamMissing
	}

	limit := now.Unix() + int64(MaxFutureSkew/time.Second)

	var (
		ts  *big.Int
		err error
	)
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, ErrTimestreamNotPositive
		}
		ts, err = parseDecimal(strings.TrimSpace(s))
	case c == '-' || (c >= '0' && c <= '9'):
		text := string(raw)
		if strings.ContainsAny(text, ".eE") {
			ts, err = parseFraction(text, limit)
		} else {
			ts, err = parseDecimal(text)
		}
	default:
		return nil, ErrTimestreamNotPositive
	}
	if err != nil {
		return nil, err
	}

	if ts.Sign() <= 0 {
		return nil, ErrTimestreamNotPositive
	}
	if ts.Cmp(big.NewInt(limit)) > 0 {
		return nil, ErrTimestreamInFuture
	}
	return ts, nil
}

// parseDecimal parses an optionally signed base-10 integer. Values with more
// than maxEpochDigits significant digits are classified by sign without
// being materialised.
func parseDecimal(s string) (*big.Int, error) {
	digits := s
	negative := false
	if digits != "" && (digits[0] == '+' || digits[0] == '-') {
		negative = digits[0] == '-'
		digits = digits[1:]
	}
	if digits == "" {
		return nil, ErrTimestreamNotPositive
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return nil, ErrTimestreamNotPositive
		}
	}

	significant := strings.TrimLeft(digits, "0")
	if len(significant) > maxEpochDigits {
		if negative {
			return nil, ErrTimestreamNotPositive
		}
		return nil, ErrTimestreamInFuture
	}

	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrTimestreamNotPositive
	}
	return n, nil
}

// parseFraction handles number literals with a fraction or exponent. They are
// read as float64, so out-of-range exponents become ±Inf instead of huge
// integers, and are range checked before truncation.
func parseFraction(text string, limit int64) (*big.Int, error) {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, ErrTimestreamNotPositive
	}
	if math.IsNaN(f) || f < 1 {
		return nil, ErrTimestreamNotPositive
	}
	if f >= float64(limit)+1 {
		return nil, ErrTimestreamInFuture
	}
	return big.NewInt(int64(f)), nil
}
