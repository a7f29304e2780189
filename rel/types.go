package rel

import (
	"fmt"
	"math"
)

// ColumnType identifies the storage type of a column or value.
type ColumnType uint8

const (
	Invalid ColumnType = iota
	TinyInt
	SmallInt
	Integer
	BigInt
	Double
	Varchar
	Boolean
)

// String returns the SQL name of the type
func (t ColumnType) String() string {
	switch t {
	case TinyInt:
		return "TINYINT"
	case SmallInt:
		return "SMALLINT"
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Double:
		return "DOUBLE"
	case Varchar:
		return "VARCHAR"
	case Boolean:
		return "BOOLEAN"
	default:
		return fmt.Sprintf("INVALID(%d)", uint8(t))
	}
}

// IsInteger reports whether the type belongs to the integer family
func (t ColumnType) IsInteger() bool {
	switch t {
	case TinyInt, SmallInt, Integer, BigInt:
		return true
	}
	return false
}

// The most negative value of each integer type is reserved as the NULL
// sentinel, so the usable range starts one above the machine minimum.
func (t ColumnType) intRange() (min, max int64) {
	switch t {
	case TinyInt:
		return math.MinInt8 + 1, math.MaxInt8
	case SmallInt:
		return math.MinInt16 + 1, math.MaxInt16
	case Integer:
		return math.MinInt32 + 1, math.MaxInt32
	case BigInt:
		return math.MinInt64 + 1, math.MaxInt64
	}
	panic(fmt.Sprintf("intRange on non-integer type %s", t))
}

func (t ColumnType) nullSentinel() int64 {
	switch t {
	case TinyInt:
		return math.MinInt8
	case SmallInt:
		return math.MinInt16
	case Integer:
		return math.MinInt32
	case BigInt:
		return math.MinInt64
	}
	panic(fmt.Sprintf("nullSentinel on non-integer type %s", t))
}

// nullDouble is the reserved NULL sentinel for DOUBLE columns.
const nullDouble = -math.MaxFloat64
