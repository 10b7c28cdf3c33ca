package ids

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ObjectID is a handle to a placed object. Zero means "no object".
type ObjectID uint64

const None ObjectID = 0

func (id ObjectID) String() string { return "obj_" + strconv.FormatUint(uint64(id), 10) }

func ParseObjectID(s string) (ObjectID, bool) {
	n, ok := ParseUintAfterPrefix("obj_", s)
	if !ok || n == 0 {
		return None, false
	}
	return ObjectID(n), true
}

// Allocator hands out monotonically increasing object ids. Ids are never
// reused for the lifetime of the allocator.
type Allocator struct {
	next uint64
}

func NewAllocator() *Allocator { return &Allocator{next: 1} }

func (a *Allocator) Next() ObjectID {
	if a.next == 0 {
		a.next = 1
	}
	id := ObjectID(a.next)
	a.next++
	return id
}

// Observe makes sure future ids are greater than id (used after loading).
func (a *Allocator) Observe(id ObjectID) {
	a.next = MaxU64(a.next, uint64(id)+1)
}

func (a *Allocator) Peek() ObjectID {
	if a.next == 0 {
		return 1
	}
	return ObjectID(a.next)
}

func MaxU64(a, b uint64) uint64 {
	if a >= b {
		return a
	}
	return b
}

func ParseUintAfterPrefix(prefix, id string) (uint64, bool) {
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(id[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DocumentKind is the one-letter prefix of a public document id.
type DocumentKind byte

const (
	KindCircuit   DocumentKind = 'c'
	KindComponent DocumentKind = 'o'
)

const documentIDRandLen = 8

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func (k DocumentKind) Valid() bool { return k == KindCircuit || k == KindComponent }

func (k DocumentKind) String() string { return string(rune(k)) }

func ParseDocumentKind(s string) (DocumentKind, bool) {
	if len(s) != 1 || !DocumentKind(s[0]).Valid() {
		return 0, false
	}
	return DocumentKind(s[0]), true
}

// NewDocumentID returns kind followed by 8 random alphanumerics.
func NewDocumentID(kind DocumentKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown document kind %q", rune(kind))
	}
	var b strings.Builder
	b.Grow(1 + documentIDRandLen)
	b.WriteByte(byte(kind))
	limit := big.NewInt(int64(len(alphanumeric)))
	for i := 0; i < documentIDRandLen; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphanumeric[n.Int64()])
	}
	return b.String(), nil
}

func ParseDocumentID(id string) (kind DocumentKind, ok bool) {
	if len(id) != 1+documentIDRandLen {
		return 0, false
	}
	kind = DocumentKind(id[0])
	if !kind.Valid() {
		return 0, false
	}
	for i := 1; i < len(id); i++ {
		if strings.IndexByte(alphanumeric, id[i]) < 0 {
			return 0, false
		}
	}
	return kind, true
}
