package plist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf16"
)

const maxEncodeObjects = 1 << 24

// Encode serializes v into the binary property list v0 format. The object
// table is built breadth-first from the root, deduplicating hashable atoms
// (strings, small integers, data blobs) to shrink the output.
func Encode(v *Value) ([]byte, error) {
	e := &encoder{
		ptrIndex:  make(map[*Value]uint64),
		atomIndex: make(map[string]uint64),
	}
	if err := e.enumerate(v); err != nil {
		return nil, err
	}
	if len(e.order) > maxEncodeObjects {
		return nil, encodeErr(TooManyObjects, "object count %d exceeds limit", len(e.order))
	}

	refSize := refSizeFor(uint64(len(e.order)))
	e.refSize = refSize

	var objects bytes.Buffer
	offsets := make([]uint64, len(e.order))
	for i, ov := range e.order {
		offsets[i] = uint64(objects.Len()) + headerSize
		if err := e.writeObject(&objects, ov); err != nil {
			return nil, err
		}
	}

	offsetTableStart := headerSize + uint64(objects.Len())
	maxOffset := offsetTableStart
	offsetSize := offsetSizeFor(maxOffset)

	var out bytes.Buffer
	out.WriteString(magic)
	out.Write(objects.Bytes())
	for _, off := range offsets {
		writeUintN(&out, off, offsetSize)
	}

	trailer := make([]byte, trailerSize)
	trailer[6] = byte(offsetSize)
	trailer[7] = byte(refSize)
	binary.BigEndian.PutUint64(trailer[8:16], uint64(len(e.order)))
	binary.BigEndian.PutUint64(trailer[16:24], e.rootIndex)
	binary.BigEndian.PutUint64(trailer[24:32], offsetTableStart)
	out.Write(trailer)

	return out.Bytes(), nil
}

type encoder struct {
	order     []*Value
	ptrIndex  map[*Value]uint64
	atomIndex map[string]uint64
	rootIndex uint64
	refSize   int
}

// enumerate performs a breadth-first walk assigning a dense object index to
// every reachable value, deduplicating atoms by canonical key.
func (e *encoder) enumerate(root *Value) error {
	type queued struct {
		v   *Value
		key string // non-empty for dedup-eligible atoms
	}
	seenRoot := false
	queue := []queued{{v: root}}
	for len(queue) > 0 {
		q := queue[0]
		queue = queue[1:]
		if q.v == nil {
			return encodeErr(ValueTooLarge, "nil value in tree")
		}

		var idx uint64
		var isNew bool
		if key, ok := atomKey(q.v); ok {
			if existing, ok := e.atomIndex[key]; ok {
				idx = existing
			} else {
				idx = uint64(len(e.order))
				e.atomIndex[key] = idx
				e.order = append(e.order, q.v)
				isNew = true
			}
		} else {
			if existing, ok := e.ptrIndex[q.v]; ok {
				idx = existing
			} else {
				idx = uint64(len(e.order))
				e.ptrIndex[q.v] = idx
				e.order = append(e.order, q.v)
				isNew = true
			}
		}
		if !seenRoot {
			e.rootIndex = idx
			seenRoot = true
		}

		if !isNew {
			continue
		}
		switch q.v.Kind {
		case KindArray:
			for _, child := range q.v.Array {
				queue = append(queue, queued{v: child})
			}
		case KindDict:
			for _, entry := range q.v.Dict {
				queue = append(queue, queued{v: String(entry.Key)})
				queue = append(queue, queued{v: entry.Value})
			}
		}
	}
	return nil
}

// atomKey returns a canonical dedup key for hashable leaf kinds, and false
// for container kinds which are never deduplicated.
func atomKey(v *Value) (string, bool) {
	switch v.Kind {
	case KindNull:
		return "n", true
	case KindBool:
		return fmt.Sprintf("b:%v", v.Bool), true
	case KindInt:
		return fmt.Sprintf("i:%d", v.Int), true
	case KindUint:
		return fmt.Sprintf("u:%d", v.Uint), true
	case KindReal:
		return fmt.Sprintf("r:%x", math.Float64bits(v.Real)), true
	case KindString:
		return fmt.Sprintf("s:%s", v.String), true
	case KindData:
		return fmt.Sprintf("d:%x", v.Data), true
	case KindDate:
		return fmt.Sprintf("t:%x", math.Float64bits(v.Date)), true
	case KindUID:
		return fmt.Sprintf("g:%d", v.UID), true
	default:
		return "", false
	}
}

func (e *encoder) indexOf(v *Value) uint64 {
	if key, ok := atomKey(v); ok {
		return e.atomIndex[key]
	}
	return e.ptrIndex[v]
}

func (e *encoder) writeObject(buf *bytes.Buffer, v *Value) error {
	switch v.Kind {
	case KindNull:
		buf.WriteByte(0x00)
	case KindBool:
		if v.Bool {
			buf.WriteByte(0x09)
		} else {
			buf.WriteByte(0x08)
		}
	case KindInt:
		n, width := intWidth(v.Int)
		buf.WriteByte(0x10 | width)
		writeIntN(buf, v.Int, n)
	case KindUint:
		if v.Uint <= math.MaxInt64 {
			n, width := intWidth(int64(v.Uint))
			buf.WriteByte(0x10 | width)
			writeIntN(buf, int64(v.Uint), n)
		} else {
			buf.WriteByte(0x14) // width nibble 4 -> 16 bytes
			buf.Write(make([]byte, 8))
			var b8 [8]byte
			binary.BigEndian.PutUint64(b8[:], v.Uint)
			buf.Write(b8[:])
		}
	case KindReal:
		buf.WriteByte(0x23) // 8-byte real
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Real))
		buf.Write(b[:])
	case KindDate:
		buf.WriteByte(0x33)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.Date))
		buf.Write(b[:])
	case KindData:
		e.writeCountMarker(buf, 0x4, uint64(len(v.Data)))
		buf.Write(v.Data)
	case KindString:
		if isASCII(v.String) {
			e.writeCountMarker(buf, 0x5, uint64(len(v.String)))
			buf.WriteString(v.String)
		} else {
			units := utf16.Encode([]rune(v.String))
			e.writeCountMarker(buf, 0x6, uint64(len(units)))
			for _, u := range units {
				var b [2]byte
				binary.BigEndian.PutUint16(b[:], u)
				buf.Write(b[:])
			}
		}
	case KindUID:
		n, width := uintWidth(v.UID)
		buf.WriteByte(0x80 | byte(width-1))
		writeUintBytes(buf, v.UID, n)
	case KindArray:
		e.writeCountMarker(buf, 0xA, uint64(len(v.Array)))
		for _, child := range v.Array {
			writeUintN(buf, e.indexOf(child), e.refSize)
		}
	case KindDict:
		e.writeCountMarker(buf, 0xD, uint64(len(v.Dict)))
		for _, entry := range v.Dict {
			writeUintN(buf, e.indexOf(String(entry.Key)), e.refSize)
		}
		for _, entry := range v.Dict {
			writeUintN(buf, e.indexOf(entry.Value), e.refSize)
		}
	default:
		return encodeErr(ValueTooLarge, "unsupported kind %s", v.Kind)
	}
	return nil
}

// writeCountMarker writes a marker byte for a type with an element count,
// inlining the count when < 0x0F or emitting an extended int object
// otherwise.
func (e *encoder) writeCountMarker(buf *bytes.Buffer, typeTag byte, count uint64) {
	if count < 0x0F {
		buf.WriteByte(typeTag<<4 | byte(count))
		return
	}
	buf.WriteByte(typeTag<<4 | 0x0F)
	n, width := intWidth(int64(count))
	buf.WriteByte(0x10 | width)
	writeIntN(buf, int64(count), n)
}

func intWidth(v int64) (n int, widthNibble byte) {
	switch {
	case v >= math.MinInt8 && v <= math.MaxInt8:
		return 1, 0
	case v >= math.MinInt16 && v <= math.MaxInt16:
		return 2, 1
	case v >= math.MinInt32 && v <= math.MaxInt32:
		return 4, 2
	default:
		return 8, 3
	}
}

func uintWidth(v uint64) (n int, width int) {
	switch {
	case v <= math.MaxUint8:
		return 1, 1
	case v <= math.MaxUint16:
		return 2, 2
	case v <= math.MaxUint32:
		return 4, 4
	default:
		return 8, 8
	}
}

func writeIntN(buf *bytes.Buffer, v int64, n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[8-n:])
}

func writeUintBytes(buf *bytes.Buffer, v uint64, n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[8-n:])
}

func writeUintN(buf *bytes.Buffer, v uint64, n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[8-n:])
}

func refSizeFor(numObjects uint64) int {
	switch {
	case numObjects <= 1<<8:
		return 1
	case numObjects <= 1<<16:
		return 2
	default:
		return 4
	}
}

func offsetSizeFor(maxOffset uint64) int {
	switch {
	case maxOffset <= 1<<8:
		return 1
	case maxOffset <= 1<<16:
		return 2
	case maxOffset <= 1<<32:
		return 4
	default:
		return 8
	}
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
