// Package capability defines the opt-in conformance markers a State or
// Action type may carry: equality, hashing, and external encoding. The
// runtime core never depends on these; composition glue inspects them at
// definition time and callers decide what to do with the answer.
package capability

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Equatable marks types carrying domain equality beyond ==.
type Equatable[T any] interface {
	Equal(other T) bool
}

// Hasher marks types that can hash themselves for identity-independent
// deduplication.
type Hasher interface {
	Hash() uint64
}

// Encodable marks types that control their own external encoding.
type Encodable interface {
	EncodeState() ([]byte, error)
}

// Decodable marks types that can restore themselves from an encoding.
type Decodable interface {
	DecodeState(data []byte) error
}

// Report lists which capabilities a type satisfies.
type Report struct {
	Equatable bool
	Hashable  bool
	Encodable bool
	Decodable bool
}

// Conformance inspects v's capabilities. Equatable detection requires the
// concrete type parameter, which is why this is generic rather than an
// any-taking function.
func Conformance[T any](v T) Report {
	var boxed any = v
	_, eq := boxed.(Equatable[T])
	_, hash := boxed.(Hasher)
	_, enc := boxed.(Encodable)
	_, dec := boxed.(Decodable)
	return Report{
		Equatable: eq,
		Hashable:  hash,
		Encodable: enc,
		Decodable: dec,
	}
}

// Equal compares two values, preferring their Equatable conformance and
// falling back to ==.
func Equal[T comparable](a, b T) bool {
	if eq, ok := any(a).(Equatable[T]); ok {
		return eq.Equal(b)
	}
	return a == b
}

// Encode serializes v, honoring its Encodable conformance and otherwise
// falling back to JSON.
func Encode(v any) ([]byte, error) {
	if enc, ok := v.(Encodable); ok {
		return enc.EncodeState()
	}

	data, err := jsoniter.ConfigFastest.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	return data, nil
}

// Decode restores v from data, honoring its Decodable conformance and
// otherwise falling back to JSON. Rejects input that is not valid JSON
// before touching v on the fallback path.
func Decode(data []byte, v any) error {
	if dec, ok := v.(Decodable); ok {
		return dec.DecodeState(data)
	}

	if !jsoniter.ConfigFastest.Valid(data) {
		return fmt.Errorf("refusing to decode into %T: input is not valid JSON", v)
	}
	if err := jsoniter.ConfigFastest.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode into %T: %w", v, err)
	}
	return nil
}
