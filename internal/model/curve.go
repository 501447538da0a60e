package model

import (
	"fmt"
	"strings"
)

// CurveKind selects the pricing curve of a pool.
type CurveKind uint8

const (
	ConstantProduct CurveKind = iota
	Stable
)

func (k CurveKind) String() string {
	switch k {
	case ConstantProduct:
		return "xyk"
	case Stable:
		return "stable"
	default:
		return fmt.Sprintf("curve(%d)", uint8(k))
	}
}

// ParseCurveKind accepts the names used on the command line and in stored records.
func ParseCurveKind(input string) (CurveKind, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "xyk", "constant-product", "constant_product":
		return ConstantProduct, nil
	case "stable", "stableswap":
		return Stable, nil
	default:
		return 0, fmt.Errorf("unknown curve kind: %q", input)
	}
}

func (k CurveKind) MarshalText() ([]byte, error) {
	if k != ConstantProduct && k != Stable {
		return nil, fmt.Errorf("unknown curve kind: %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *CurveKind) UnmarshalText(text []byte) error {
	parsed, err := ParseCurveKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
