// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package entries

import (
	"encoding/json"
	"math"
	"math/big"
	"net"
	"reflect"
	"strings"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"inet.af/netaddr"
)

// EncodeValue encodes the given match or parameter value into its canonical byte representation,
// checking that it fits into the specified bitwidth; bitwidth of 0 or less is not checked.
// Supported values are integers, integral floats, JSON numbers and strings holding a decimal or
// 0x-prefixed hexadecimal number, an IP address or a MAC address.
func EncodeValue(v interface{}, bitwidth int32) ([]byte, error) {
	n, err := toBigInt(v)
	if err != nil {
		return nil, err
	}
	if n.Sign() < 0 {
		return nil, errors.NewInvalid("Value %v is negative", v)
	}
	if bitwidth > 0 && n.BitLen() > int(bitwidth) {
		return nil, errors.NewInvalid("Value %v does not fit into %d bits", v, bitwidth)
	}
	b := n.Bytes()
	if len(b) == 0 {
		return []byte{0}, nil
	}
	return b, nil
}

// IntValue returns the given value as an integer, if it holds one
func IntValue(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), uint64(x) <= math.MaxInt64
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		return int64(x), x <= math.MaxInt64
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	}
	return 0, false
}

// Sequence returns the elements of the given value, if it is a slice or an array
func Sequence(v interface{}) ([]interface{}, bool) {
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	s := make([]interface{}, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s = append(s, rv.Index(i).Interface())
	}
	return s, true
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func toBigInt(v interface{}) (*big.Int, error) {
	switch x := v.(type) {
	case string:
		return parseString(x)
	case json.Number:
		return parseString(x.String())
	case uint:
		return new(big.Int).SetUint64(uint64(x)), nil
	case uint64:
		return new(big.Int).SetUint64(x), nil
	}
	if i, ok := IntValue(v); ok {
		return big.NewInt(i), nil
	}
	return nil, errors.NewInvalid("Unsupported value %v of type %T", v, v)
}

func parseString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if ip, err := netaddr.ParseIP(s); err == nil {
		if ip.Is4() {
			b := ip.As4()
			return new(big.Int).SetBytes(b[:]), nil
		}
		b := ip.As16()
		return new(big.Int).SetBytes(b[:]), nil
	}
	if strings.Count(s, ":") == 5 || strings.Count(s, "-") == 5 {
		if mac, err := net.ParseMAC(s); err == nil {
			return new(big.Int).SetBytes(mac), nil
		}
	}
	base := 10
	digits := s
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		base = 16
		digits = s[2:]
	}
	if n, ok := new(big.Int).SetString(digits, base); ok {
		return n, nil
	}
	return nil, errors.NewInvalid("Unable to interpret %q as a number, IP or MAC address", s)
}
