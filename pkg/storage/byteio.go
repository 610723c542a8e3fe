package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/chronoshard/chronoshard/pkg/chronoerr"
	"github.com/chronoshard/chronoshard/pkg/prop"
)

// byteReader is a minimal cursor over an in-memory blob, used to decode
// the deterministic per-shard serialisation produced by binary.go.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("storage: decode: truncated blob: %w", chronoerr.ErrGraphCorrupt)
	}
	return nil
}

func (r *byteReader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) boolean() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *byteReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if err := r.need(int(n)); err != nil {
		return "", err
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

// Prop wire tags. Kept separate from prop.Kind's own numbering so the
// on-disk format is decoupled from in-memory representation details.
const (
	tagBool uint8 = iota
	tagI32
	tagI64
	tagU32
	tagU64
	tagF32
	tagF64
	tagStr
	tagList
	tagMap
	tagNone
)

// appendProp serialises a Prop value. PersistentGraph values cannot be
// serialised (they hold an opaque in-process handle) and are encoded as
// tagNone, matching the format's treatment of absent values.
func appendProp(buf []byte, p prop.Prop) []byte {
	switch p.Kind() {
	case prop.KindBool:
		v, _ := p.IntoBool()
		buf = append(buf, tagBool)
		return appendBool(buf, v)
	case prop.KindI32:
		v, _ := p.IntoI32()
		buf = append(buf, tagI32)
		return appendU32(buf, uint32(v))
	case prop.KindI64:
		v, _ := p.IntoI64()
		buf = append(buf, tagI64)
		return appendU64(buf, uint64(v))
	case prop.KindU32:
		v, _ := p.IntoU32()
		buf = append(buf, tagU32)
		return appendU32(buf, v)
	case prop.KindU64:
		v, _ := p.IntoU64()
		buf = append(buf, tagU64)
		return appendU64(buf, v)
	case prop.KindF32:
		v, _ := p.IntoF32()
		buf = append(buf, tagF32)
		return appendU32(buf, math.Float32bits(v))
	case prop.KindF64:
		v, _ := p.IntoF64()
		buf = append(buf, tagF64)
		return appendU64(buf, math.Float64bits(v))
	case prop.KindStr:
		v, _ := p.IntoStr()
		buf = append(buf, tagStr)
		return appendString(buf, v)
	case prop.KindList:
		v, _ := p.IntoList()
		buf = append(buf, tagList)
		buf = appendU32(buf, uint32(len(v)))
		for _, e := range v {
			buf = appendProp(buf, e)
		}
		return buf
	case prop.KindMap:
		v, _ := p.IntoMap()
		buf = append(buf, tagMap)
		buf = appendU32(buf, uint32(len(v)))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			buf = appendString(buf, k)
			buf = appendProp(buf, v[k])
		}
		return buf
	default:
		return append(buf, tagNone)
	}
}

func readProp(r *byteReader) (prop.Prop, error) {
	if err := r.need(1); err != nil {
		return prop.Prop{}, err
	}
	tag := r.buf[r.pos]
	r.pos++
	switch tag {
	case tagBool:
		v, err := r.boolean()
		if err != nil {
			return prop.Prop{}, err
		}
		return prop.Bool(v), nil
	case tagI32:
		v, err := r.u32()
		if err != nil {
			return prop.Prop{}, err
		}
		return prop.I32(int32(v)), nil
	case tagI64:
		v, err := r.u64()
		if err != nil {
			return prop.Prop{}, err
		}
		return prop.I64(int64(v)), nil
	case tagU32:
		v, err := r.u32()
		if err != nil {
			return prop.Prop{}, err
		}
		return prop.U32(v), nil
	case tagU64:
		v, err := r.u64()
		if err != nil {
			return prop.Prop{}, err
		}
		return prop.U64(v), nil
	case tagF32:
		v, err := r.u32()
		if err != nil {
			return prop.Prop{}, err
		}
		return prop.F32(math.Float32frombits(v)), nil
	case tagF64:
		v, err := r.u64()
		if err != nil {
			return prop.Prop{}, err
		}
		return prop.F64(math.Float64frombits(v)), nil
	case tagStr:
		s, err := r.str()
		if err != nil {
			return prop.Prop{}, err
		}
		return prop.Str(s), nil
	case tagList:
		n, err := r.u32()
		if err != nil {
			return prop.Prop{}, err
		}
		list := make([]prop.Prop, n)
		for i := range list {
			e, err := readProp(r)
			if err != nil {
				return prop.Prop{}, err
			}
			list[i] = e
		}
		return prop.List(list), nil
	case tagMap:
		n, err := r.u32()
		if err != nil {
			return prop.Prop{}, err
		}
		m := make(map[string]prop.Prop, n)
		for i := uint32(0); i < n; i++ {
			k, err := r.str()
			if err != nil {
				return prop.Prop{}, err
			}
			v, err := readProp(r)
			if err != nil {
				return prop.Prop{}, err
			}
			m[k] = v
		}
		return prop.Map(m), nil
	default:
		return prop.Prop{}, nil
	}
}
