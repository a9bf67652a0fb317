// Package plist implements bit-exact encode/decode of the binary property
// list v0 format used for every AirPlay 2 control message body.
package plist

// Kind identifies the variant carried by a Value.
type Kind int

// value kinds, one per variant of the binary property list format.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindReal
	KindString
	KindData
	KindDate
	KindArray
	KindDict
	KindUID
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindReal:
		return "real"
	case KindString:
		return "string"
	case KindData:
		return "data"
	case KindDate:
		return "date"
	case KindArray:
		return "array"
	case KindDict:
		return "dict"
	case KindUID:
		return "uid"
	default:
		return "unknown"
	}
}

// Value is a tagged variant representing one node of a property list tree.
// Exactly one of the typed fields is meaningful, selected by Kind; this
// mirrors the sum-type discipline used throughout the corpus instead of a
// raw interface{} / any value.
type Value struct {
	Kind Kind

	Bool   bool
	Int    int64
	Uint   uint64
	Real   float64
	String string
	Data   []byte
	// Date is seconds since 2001-01-01T00:00:00Z, per the Apple epoch.
	Date  float64
	Array []*Value
	// Dict preserves insertion order for deterministic encoding; lookups
	// are O(n) which is fine for the small dictionaries AirPlay exchanges.
	Dict []DictEntry
	UID  uint64
}

// DictEntry is one key/value pair of a Dict value.
type DictEntry struct {
	Key   string
	Value *Value
}

// Null builds a null value.
func Null() *Value { return &Value{Kind: KindNull} }

// Bool builds a boolean value.
func Bool(b bool) *Value { return &Value{Kind: KindBool, Bool: b} }

// Int builds a signed integer value.
func Int(i int64) *Value { return &Value{Kind: KindInt, Int: i} }

// Uint builds an unsigned integer value.
func Uint(u uint64) *Value { return &Value{Kind: KindUint, Uint: u} }

// Real builds a floating point value.
func Real(f float64) *Value { return &Value{Kind: KindReal, Real: f} }

// String builds a string value.
func String(s string) *Value { return &Value{Kind: KindString, String: s} }

// Data builds a binary data value. The slice is not copied.
func Data(d []byte) *Value { return &Value{Kind: KindData, Data: d} }

// Date builds a date value from seconds since the Apple epoch.
func Date(seconds float64) *Value { return &Value{Kind: KindDate, Date: seconds} }

// Array builds an array value.
func Array(items ...*Value) *Value { return &Value{Kind: KindArray, Array: items} }

// Dict builds a dictionary value from a sequence of entries.
func Dict(entries ...DictEntry) *Value { return &Value{Kind: KindDict, Dict: entries} }

// UID builds a UID value.
func UID(u uint64) *Value { return &Value{Kind: KindUID, UID: u} }

// Entry is a convenience constructor for a DictEntry.
func Entry(key string, v *Value) DictEntry { return DictEntry{Key: key, Value: v} }

// Get returns the value for key in a Dict, or nil if absent or v is not a
// dictionary.
func (v *Value) Get(key string) *Value {
	if v == nil || v.Kind != KindDict {
		return nil
	}
	for _, e := range v.Dict {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}

// Equal reports whether two values are structurally equal. Dictionary key
// order is ignored; the binary encoding does not preserve it.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	// The wire format has a single integer object type: an UInteger that
	// fits in int64 is indistinguishable on the wire from an Integer of the
	// same magnitude, so the two kinds compare equal for non-negative
	// values (see DESIGN.md, "Open Question decisions").
	if v.Kind == KindInt && other.Kind == KindUint {
		return v.Int >= 0 && uint64(v.Int) == other.Uint
	}
	if v.Kind == KindUint && other.Kind == KindInt {
		return other.Int >= 0 && uint64(other.Int) == v.Uint
	}
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInt:
		return v.Int == other.Int
	case KindUint:
		return v.Uint == other.Uint
	case KindReal:
		return v.Real == other.Real
	case KindString:
		return v.String == other.String
	case KindData:
		if len(v.Data) != len(other.Data) {
			return false
		}
		for i := range v.Data {
			if v.Data[i] != other.Data[i] {
				return false
			}
		}
		return true
	case KindDate:
		return v.Date == other.Date
	case KindUID:
		return v.UID == other.UID
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.Dict) != len(other.Dict) {
			return false
		}
		for _, e := range v.Dict {
			oe := other.Get(e.Key)
			if oe == nil || !e.Value.Equal(oe) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

