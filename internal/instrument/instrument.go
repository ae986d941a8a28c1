package instrument

import (
	"errors"
	"fmt"
	"strings"
)

// Type classifies a ticker so that colliding symbols (a bond and an equity
// sharing "YPF", say) live in separate cache partitions.
type Type string

const (
	None     Type = ""
	Acciones Type = "acciones"
	Cedears  Type = "cedears"
	Bonos    Type = "bonos"
	Monedas  Type = "monedas"
)

var ErrUnknownType = errors.New("unknown instrument type")

// All lists every partition in a stable order, None first.
var All = []Type{None, Acciones, Cedears, Bonos, Monedas}

// Parse maps a user supplied classifier onto a Type. The empty string is None.
func Parse(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return None, nil
	}
	for _, t := range All {
		if string(t) == s {
			return t, nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Partition is the namespace name used by stores. None maps to "none".
func (t Type) Partition() string {
	if t == None {
		return "none"
	}
	return string(t)
}

func (t Type) String() string { return t.Partition() }

// NormalizeTicker is applied at every storage and lookup boundary.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
