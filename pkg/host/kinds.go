package host

import "fmt"

// FieldKind is the value type of a field.
type FieldKind int

const (
	KindNone FieldKind = iota // text label without a value
	KindProtocol
	KindBoolean
	KindChar // 1-octet character
	KindUint8
	KindUint16
	KindUint24
	KindUint32
	KindUint40
	KindUint48
	KindUint56
	KindUint64
	KindInt8
	KindInt16
	KindInt24
	KindInt32
	KindInt40
	KindInt48
	KindInt56
	KindInt64
	KindString
	KindBytes
)

var kindNames = [...]string{
	KindNone:     "FT_NONE",
	KindProtocol: "FT_PROTOCOL",
	KindBoolean:  "FT_BOOLEAN",
	KindChar:     "FT_CHAR",
	KindUint8:    "FT_UINT8",
	KindUint16:   "FT_UINT16",
	KindUint24:   "FT_UINT24",
	KindUint32:   "FT_UINT32",
	KindUint40:   "FT_UINT40",
	KindUint48:   "FT_UINT48",
	KindUint56:   "FT_UINT56",
	KindUint64:   "FT_UINT64",
	KindInt8:     "FT_INT8",
	KindInt16:    "FT_INT16",
	KindInt24:    "FT_INT24",
	KindInt32:    "FT_INT32",
	KindInt40:    "FT_INT40",
	KindInt48:    "FT_INT48",
	KindInt56:    "FT_INT56",
	KindInt64:    "FT_INT64",
	KindString:   "FT_STRING",
	KindBytes:    "FT_BYTES",
}

func (k FieldKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k FieldKind) Valid() bool {
	return k >= KindNone && k <= KindBytes
}

// Width returns the size in bytes of an integer kind, or 0 for other kinds.
func (k FieldKind) Width() int {
	switch k {
	case KindChar, KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindUint24, KindInt24:
		return 3
	case KindUint32, KindInt32:
		return 4
	case KindUint40, KindInt40:
		return 5
	case KindUint48, KindInt48:
		return 6
	case KindUint56, KindInt56:
		return 7
	case KindUint64, KindInt64:
		return 8
	default:
		return 0
	}
}

// Unsigned reports whether k is an unsigned integer kind.
func (k FieldKind) Unsigned() bool {
	return k >= KindUint8 && k <= KindUint64
}

// Signed reports whether k is a signed integer kind.
func (k FieldKind) Signed() bool {
	return k >= KindInt8 && k <= KindInt64
}

// Integer reports whether k carries an integer value.
func (k FieldKind) Integer() bool {
	return k.Unsigned() || k.Signed() || k == KindChar || k == KindBoolean
}

// Display selects how integer values are presented.
type Display int

const (
	BaseNone Display = iota
	BaseDec
	BaseHex
	BaseOct
	BaseDecHex
	BaseHexDec
)

func (d Display) String() string {
	switch d {
	case BaseNone:
		return "BASE_NONE"
	case BaseDec:
		return "BASE_DEC"
	case BaseHex:
		return "BASE_HEX"
	case BaseOct:
		return "BASE_OCT"
	case BaseDecHex:
		return "BASE_DEC_HEX"
	case BaseHexDec:
		return "BASE_HEX_DEC"
	default:
		return fmt.Sprintf("Display(%d)", int(d))
	}
}

// Encoding describes byte order and string form of a value.
type Encoding uint32

const (
	EncodingBigEndian    Encoding = 0x00000000
	EncodingLittleEndian Encoding = 0x80000000
	EncodingASCII        Encoding = 0x00000000
	EncodingUTF8         Encoding = 0x00000002
	EncodingNA           Encoding = 0x00000000
)

// LittleEndian reports whether the little-endian flag is set.
func (e Encoding) LittleEndian() bool {
	return e&EncodingLittleEndian != 0
}
