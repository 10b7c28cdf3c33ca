package objects

import (
	"fmt"
	"sort"
	"sync"

	"pixelcircuits.dev/internal/sim/geom"
	"pixelcircuits.dev/internal/sim/ids"
)

// Kind is the registry tag of an object kind.
type Kind string

const (
	KindButton Kind = "button"
	KindSwitch Kind = "switch"
	KindLED    Kind = "led"
	KindProbe  Kind = "probe"
	KindClock  Kind = "clock"
	KindAnd    Kind = "and"
	KindOr     Kind = "or"
	KindXor    Kind = "xor"
	KindNot    Kind = "not"
)

// Spec describes how to build a kind.
type Spec struct {
	Kind  Kind
	Label string
	Dims  geom.Dimensions
	Nodes []NodeSpec
	Build func(b *Base) Object
}

var (
	registryMu sync.RWMutex
	registry   = map[Kind]Spec{}
)

// Register adds a kind. Registering the same kind twice panics.
func Register(s Spec) {
	if s.Kind == "" || s.Build == nil {
		panic("objects: Register with empty kind or nil Build")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[s.Kind]; dup {
		panic(fmt.Sprintf("objects: kind %q registered twice", s.Kind))
	}
	s.Dims = s.Dims.Checked()
	registry[s.Kind] = s
}

func Lookup(k Kind) (Spec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[k]
	return s, ok
}

// Kinds lists registered kinds in a stable order.
func Kinds() []Spec {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Spec, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// New builds an object of kind k with its default dimensions.
func New(k Kind, id ids.ObjectID, pos geom.CellPos) (Object, error) {
	s, ok := Lookup(k)
	if !ok {
		return nil, fmt.Errorf("unknown object kind %q", k)
	}
	if id == ids.None {
		return nil, fmt.Errorf("object id must be non-zero")
	}
	return s.Build(NewBase(id, k, pos, s.Dims, s.Nodes)), nil
}
