package lcrypto

import (
	"bytes"
	"fmt"
	"reflect"
)

// typePrefixLen is the fixed width of the type name
// written in front of every marshaled public key.
// Shorter names are padded with zero bytes.
const typePrefixLen = 8

// Registry maps public key types to short names,
// so that keys of different types can be marshaled
// into a single self-describing byte format.
//
// The zero value is ready to use.
// A Registry is not safe for concurrent registration,
// but concurrent Marshal and Unmarshal calls are fine
// once all types have been registered.
type Registry struct {
	byPrefix map[string]func([]byte) (PubKey, error)
	byType   map[reflect.Type]string
}

// Register associates name with the concrete type of inst,
// using decode to reconstruct keys of that type.
//
// Register panics if name is empty, longer than 8 bytes,
// or already registered.
func (r *Registry) Register(name string, inst PubKey, decode func([]byte) (PubKey, error)) {
	if name == "" || len(name) > typePrefixLen {
		panic(fmt.Errorf("BUG: key type name %q must be between 1 and %d bytes", name, typePrefixLen))
	}

	if r.byPrefix == nil {
		r.byPrefix = make(map[string]func([]byte) (PubKey, error))
		r.byType = make(map[reflect.Type]string)
	}

	if _, ok := r.byPrefix[name]; ok {
		panic(fmt.Errorf("BUG: key type name %q already registered", name))
	}

	r.byPrefix[name] = decode
	r.byType[reflect.TypeOf(inst)] = name
}

// Marshal returns the type prefix followed by the key bytes.
// It panics if the key's type was never registered.
func (r *Registry) Marshal(k PubKey) []byte {
	name, ok := r.byType[reflect.TypeOf(k)]
	if !ok {
		panic(fmt.Errorf("BUG: attempted to marshal unregistered key type %T", k))
	}

	kb := k.PubKeyBytes()
	out := make([]byte, typePrefixLen, typePrefixLen+len(kb))
	copy(out, name)
	return append(out, kb...)
}

// Unmarshal decodes a key previously produced by [*Registry.Marshal].
func (r *Registry) Unmarshal(b []byte) (PubKey, error) {
	if len(b) < typePrefixLen {
		return nil, fmt.Errorf("marshaled key too short: %d bytes", len(b))
	}

	prefix := string(bytes.TrimRight(b[:typePrefixLen], "\x00"))
	decode, ok := r.byPrefix[prefix]
	if !ok {
		return nil, fmt.Errorf("no registered public key type for prefix %q", prefix)
	}

	return decode(b[typePrefixLen:])
}
