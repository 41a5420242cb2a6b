// Package rpcctx carries per-call metadata across an RPC boundary: a
// mapping from string key to an opaque octet sequence, plus a process-local
// deadline that is never written to the wire.
package rpcctx

import (
	"context"
	"sort"
	"time"

	"github.com/tzrikka/nexrpc/pkg/wire"
)

// Context wraps a standard [context.Context] (for cancellation and
// deadlines, which stay process-local) with the string-keyed metadata
// mapping that travels on the wire alongside every request frame.
type Context struct {
	std    context.Context
	values map[string]string
}

// New wraps std with an empty metadata mapping.
func New(std context.Context) *Context {
	return &Context{std: std, values: make(map[string]string)}
}

// WithTimeout mirrors [context.WithTimeout]: the returned Context's deadline
// is process-local and is never serialized.
func WithTimeout(parent *Context, d time.Duration) (*Context, context.CancelFunc) {
	std, cancel := context.WithTimeout(parent.std, d)
	return &Context{std: std, values: parent.values}, cancel
}

// Deadline, Done, Err, and Value delegate to the wrapped standard context so
// that rpcctx.Context can be passed anywhere a deadline or cancellation
// signal is needed without re-deriving it.
func (c *Context) Deadline() (time.Time, bool) { return c.std.Deadline() }
func (c *Context) Done() <-chan struct{}       { return c.std.Done() }
func (c *Context) Err() error                  { return c.std.Err() }

// Put stores an opaque octet sequence under key, overwriting any previous
// value. Callers encode v themselves (via a wire.Composite or a scalar write
// helper) before calling Put; the inner encoding is opaque to the context.
func (c *Context) Put(key string, v []byte) {
	c.values[key] = string(v)
}

// PutComposite serializes v with its own BitSize/Serialize pair and stores
// the result under key.
func (c *Context) PutComposite(key string, v wire.Composite) error {
	w := wire.NewWriter(v.BitSize())
	if err := v.Serialize(w); err != nil {
		return err
	}
	c.Put(key, w.Bytes())
	return nil
}

// Get returns the raw octets stored under key, if any.
func (c *Context) Get(key string) ([]byte, bool) {
	v, ok := c.values[key]
	if !ok {
		return nil, false
	}
	return []byte(v), true
}

// BitSize returns the wire size of the metadata mapping. The deadline is
// process-local and contributes nothing.
func (c *Context) BitSize() int {
	keys, vals := c.sortedPairs()
	return wire.MapBitSize(keys, vals, wire.StringBitSize, wire.StringBitSize)
}

// Serialize writes the metadata mapping as varuint32(len) ‖ (key ‖ value)*.
func (c *Context) Serialize(w *wire.Writer) error {
	keys, vals := c.sortedPairs()
	return wire.WriteMap(w, keys, vals, wire.WriteString, wire.WriteString)
}

// Deserialize reads a metadata mapping written by Serialize, replacing any
// values already present. The deadline, being process-local, is left
// untouched.
func (c *Context) Deserialize(r *wire.Reader) error {
	m, err := wire.ReadMap[string, string](r, wire.ReadString, wire.ReadString)
	if err != nil {
		return err
	}
	if c.std == nil {
		c.std = context.Background()
	}
	c.values = m
	return nil
}

// sortedPairs returns the metadata as parallel slices in a deterministic key
// order, so repeated Serialize calls over the same values produce identical
// bytes.
func (c *Context) sortedPairs() ([]string, []string) {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = c.values[k]
	}
	return keys, vals
}
