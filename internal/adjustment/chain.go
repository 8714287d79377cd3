package adjustment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
)

type InsertResult int

const (
	Inserted InsertResult = iota
	Replaced
)

func (r InsertResult) String() string {
	if r == Replaced {
		return "replaced"
	}
	return "inserted"
}

// Chain is an ordered list of specs holding at most one spec per kind.
// It is not safe for concurrent use; the owning Variant serializes access.
type Chain struct {
	specs []Spec
}

func NewChain(specs ...Spec) *Chain {
	c := &Chain{specs: make([]Spec, 0, len(specs))}
	for _, s := range specs {
		c.Insert(s)
	}
	return c
}

// Insert merges s by kind. An existing spec of the same kind takes over the new params and keeps
// its position; otherwise s is appended with the next position.
func (c *Chain) Insert(s Spec) InsertResult {
	res := Inserted
	found := false
	for i := range c.specs {
		if c.specs[i].SameKind(s) {
			c.specs[i] = Spec{Position: c.specs[i].Position, Params: s.Params}
			found = true
			res = Replaced
			break
		}
	}

	if !found {
		c.specs = append(c.specs, Spec{Position: c.nextPosition(), Params: s.Params})
	}

	slices.SortStableFunc(c.specs, func(a, b Spec) int { return a.Position - b.Position })
	return res
}

func (c *Chain) nextPosition() int {
	next := 0
	for _, s := range c.specs {
		if s.Position >= next {
			next = s.Position + 1
		}
	}
	return next
}

// Ordered returns a snapshot in application order.
func (c *Chain) Ordered() []Spec {
	if c == nil {
		return nil
	}
	return slices.Clone(c.specs)
}

func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.specs)
}

// Get returns the spec of the given kind, if present.
func (c *Chain) Get(k Kind) (Spec, bool) {
	for _, s := range c.Ordered() {
		if s.Kind() == k {
			return s, true
		}
	}
	return Spec{}, false
}

func (c *Chain) Clone() *Chain {
	return &Chain{specs: c.Ordered()}
}

// Equal compares the ordered (kind, params) lists. Positions only matter through the order.
func (c *Chain) Equal(other *Chain) bool {
	a, b := c.Ordered(), other.Ordered()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind() != b[i].Kind() || a[i].Params != b[i].Params {
			return false
		}
	}
	return true
}

type fingerprintEntry struct {
	Kind   Kind   `json:"k"`
	Params Params `json:"p"`
}

// Fingerprint is a stable digest of the ordered (kind, params) list. Equal chains share it.
func (c *Chain) Fingerprint() string {
	specs := c.Ordered()
	entries := make([]fingerprintEntry, 0, len(specs))
	for _, s := range specs {
		entries = append(entries, fingerprintEntry{Kind: s.Kind(), Params: s.Params})
	}
	// params are flat structs of scalars, marshalling can't fail
	b, _ := json.Marshal(entries)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
