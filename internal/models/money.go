package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Money stores a monetary amount in minor currency units (cents).
type Money int64

// ErrInvalidMoney reports an amount that is not a decimal with at most two fractional digits.
var ErrInvalidMoney = errors.New("invalid money amount")

// ParseMoney parses a decimal string such as "12.5" or "-3.05" into Money.
func ParseMoney(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidMoney
	}
	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return 0, ErrInvalidMoney
	}
	if len(frac) > 2 {
		return 0, ErrInvalidMoney
	}
	if whole == "" {
		whole = "0"
	}
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, ErrInvalidMoney
		}
	}
	units, errParse := strconv.ParseInt(whole, 10, 64)
	if errParse != nil || units > (1<<62)/100 {
		return 0, ErrInvalidMoney
	}
	for len(frac) < 2 {
		frac += "0"
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)
	total := units*100 + cents
	if negative {
		total = -total
	}
	return Money(total), nil
}

// String renders the amount with two fractional digits.
func (m Money) String() string {
	v := int64(m)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float returns the amount in major units; for display and external gateways only.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// MarshalJSON renders the amount as a JSON number with two fractional digits.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or numeric string with at most two fractional digits.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*m = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if errUnmarshal := json.Unmarshal(data, &s); errUnmarshal != nil {
			return ErrInvalidMoney
		}
		raw = s
	}
	if strings.ContainsAny(raw, "eE") {
		return ErrInvalidMoney
	}
	parsed, errParse := ParseMoney(raw)
	if errParse != nil {
		return errParse
	}
	*m = parsed
	return nil
}
