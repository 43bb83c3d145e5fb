package model

import (
	"strconv"

	"main/pkg/exception"
)

// PriceScale and QuantityScale fix the decimal scale of all canonical
// values. Total ordering of Price/Quantity is plain int64 comparison.
const (
	PriceScale    = 8
	QuantityScale = 8
)

// Price is a scaled integer with PriceScale decimal places.
type Price int64

func (p Price) AppendString(buf []byte) []byte {
	return appendScaledInt(buf, int64(p), PriceScale)
}

func (p Price) String() string {
	return string(p.AppendString(nil))
}

// Quantity is a scaled integer with QuantityScale decimal places.
type Quantity int64

func (q Quantity) AppendString(buf []byte) []byte {
	return appendScaledInt(buf, int64(q), QuantityScale)
}

func (q Quantity) String() string {
	return string(q.AppendString(nil))
}

// ParsePrice parses a decimal string into a scaled Price.
func ParsePrice(s string) (Price, error) {
	v, err := parseScaledInt(s, PriceScale)
	return Price(v), err
}

// ParseQuantity parses a decimal string into a scaled Quantity.
func ParseQuantity(s string) (Quantity, error) {
	v, err := parseScaledInt(s, QuantityScale)
	return Quantity(v), err
}

func parseScaledInt(s string, scale int) (int64, error) {
	if len(s) == 0 {
		return 0, exception.ErrBookUnparseable
	}

	neg := false
	i := 0
	switch s[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}
	if i == len(s) {
		return 0, exception.ErrBookUnparseable
	}

	var integer int64
	for ; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			i++
			break
		}
		if c < '0' || c > '9' {
			return 0, exception.ErrBookUnparseable
		}
		integer = integer*10 + int64(c-'0')
	}

	// fraction digits beyond the scale are truncated
	digits := 0
	var frac int64
	for ; i < len(s) && digits < scale; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, exception.ErrBookUnparseable
		}
		frac = frac*10 + int64(c-'0')
		digits++
	}
	for ; i < len(s); i++ {
		if c := s[i]; c < '0' || c > '9' {
			return 0, exception.ErrBookUnparseable
		}
	}
	for ; digits < scale; digits++ {
		frac *= 10
	}

	pow := int64(1)
	for n := 0; n < scale; n++ {
		pow *= 10
	}
	value := integer*pow + frac
	if neg {
		value = -value
	}
	return value, nil
}

func appendScaledInt(buf []byte, value int64, scale int) []byte {
	if scale <= 0 {
		return strconv.AppendInt(buf, value, 10)
	}

	neg := value < 0
	u := uint64(value)
	if neg {
		u = uint64(^value) + 1
	}

	var tmp [32]byte
	digits := strconv.AppendUint(tmp[:0], u, 10)

	if neg {
		buf = append(buf, '-')
	}

	if len(digits) <= scale {
		buf = append(buf, '0', '.')
		for i := 0; i < scale-len(digits); i++ {
			buf = append(buf, '0')
		}
		buf = append(buf, digits...)
		return buf
	}

	idx := len(digits) - scale
	buf = append(buf, digits[:idx]...)
	buf = append(buf, '.')
	buf = append(buf, digits[idx:]...)
	return buf
}
