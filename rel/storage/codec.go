package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/rowmill/rowmill/rel"
)

// Row and schema records are hand-encoded with encoding/binary: a 1-byte
// type tag and null flag per cell, fixed 8-byte integers, length-prefixed
// bytes for VARCHAR.

func encodeSchema(s *rel.Schema) []byte {
	var buf bytes.Buffer
	var scratch [8]byte
	binary.BigEndian.PutUint32(scratch[:4], uint32(s.Len()))
	buf.Write(scratch[:4])
	for i := 0; i < s.Len(); i++ {
		col := s.Column(i)
		binary.BigEndian.PutUint32(scratch[:4], uint32(len(col.Name)))
		buf.Write(scratch[:4])
		buf.WriteString(col.Name)
		buf.WriteByte(byte(col.Type))
	}
	return buf.Bytes()
}

func decodeSchema(b []byte) (*rel.Schema, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("schema record too short")
	}
	n := int(binary.BigEndian.Uint32(b[:4]))
	b = b[4:]
	cols := make([]rel.Column, 0, n)
	for i := 0; i < n; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("schema record truncated at column %d", i)
		}
		nameLen := int(binary.BigEndian.Uint32(b[:4]))
		b = b[4:]
		if len(b) < nameLen+1 {
			return nil, fmt.Errorf("schema record truncated at column %d", i)
		}
		name := string(b[:nameLen])
		typ := rel.ColumnType(b[nameLen])
		b = b[nameLen+1:]
		cols = append(cols, rel.Column{Name: name, Type: typ})
	}
	return rel.NewSchema(cols...), nil
}

func encodeRow(row *rel.Tuple) []byte {
	var buf bytes.Buffer
	var scratch [8]byte
	for i := 0; i < row.Len(); i++ {
		v := row.Value(i)
		buf.WriteByte(byte(v.Type()))
		if v.IsNull() {
			buf.WriteByte(1)
			continue
		}
		buf.WriteByte(0)
		switch {
		case v.Type().IsInteger() || v.Type() == rel.Boolean:
			binary.BigEndian.PutUint64(scratch[:], uint64(v.AsInt()))
			buf.Write(scratch[:])
		case v.Type() == rel.Double:
			binary.BigEndian.PutUint64(scratch[:], math.Float64bits(v.AsFloat()))
			buf.Write(scratch[:])
		case v.Type() == rel.Varchar:
			b := v.Bytes()
			binary.BigEndian.PutUint32(scratch[:4], uint32(len(b)))
			buf.Write(scratch[:4])
			buf.Write(b)
		}
	}
	return buf.Bytes()
}

func decodeRow(schema *rel.Schema, b []byte) ([]rel.Value, error) {
	values := make([]rel.Value, 0, schema.Len())
	for i := 0; i < schema.Len(); i++ {
		if len(b) < 2 {
			return nil, fmt.Errorf("row record truncated at column %d", i)
		}
		typ := rel.ColumnType(b[0])
		isNull := b[1] == 1
		b = b[2:]
		if isNull {
			values = append(values, rel.NullValue(typ))
			continue
		}
		switch {
		case typ.IsInteger() || typ == rel.Boolean:
			if len(b) < 8 {
				return nil, fmt.Errorf("row record truncated at column %d", i)
			}
			raw := int64(binary.BigEndian.Uint64(b[:8]))
			b = b[8:]
			switch typ {
			case rel.TinyInt:
				values = append(values, rel.NewTinyInt(raw))
			case rel.SmallInt:
				values = append(values, rel.NewSmallInt(raw))
			case rel.Integer:
				values = append(values, rel.NewInteger(raw))
			case rel.BigInt:
				values = append(values, rel.NewBigInt(raw))
			default:
				values = append(values, rel.NewBoolean(raw != 0))
			}
		case typ == rel.Double:
			if len(b) < 8 {
				return nil, fmt.Errorf("row record truncated at column %d", i)
			}
			values = append(values, rel.NewDouble(math.Float64frombits(binary.BigEndian.Uint64(b[:8]))))
			b = b[8:]
		case typ == rel.Varchar:
			if len(b) < 4 {
				return nil, fmt.Errorf("row record truncated at column %d", i)
			}
			n := int(binary.BigEndian.Uint32(b[:4]))
			b = b[4:]
			if len(b) < n {
				return nil, fmt.Errorf("row record truncated at column %d", i)
			}
			values = append(values, rel.NewVarcharBytes(append([]byte(nil), b[:n]...)))
			b = b[n:]
		default:
			return nil, fmt.Errorf("row record has unknown type tag %d at column %d", typ, i)
		}
	}
	return values, nil
}
