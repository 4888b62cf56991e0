package engine

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"firestige.xyz/dissect/internal/core"
	"firestige.xyz/dissect/pkg/host"
)

// value is a decoded field value.
type value struct {
	u   uint64 // raw unsigned value, after bitmask
	i   int64  // sign-extended value for signed kinds
	s   string
	raw []byte
}

func (v value) export(kind host.FieldKind) any {
	switch {
	case kind == host.KindBoolean:
		return v.u != 0
	case kind == host.KindChar:
		return string(rune(v.u))
	case kind.Unsigned():
		return v.u
	case kind.Signed():
		return v.i
	case kind == host.KindString:
		return v.s
	case kind == host.KindBytes:
		return hex.EncodeToString(v.raw)
	default:
		return nil
	}
}

// maxLen is the longest encoding accepted for an integer kind.
func maxLen(kind host.FieldKind) int {
	switch kind {
	case host.KindBoolean:
		return 8
	case host.KindChar:
		return 1
	default:
		return kind.Width()
	}
}

func readUint(data []byte, littleEndian bool) uint64 {
	var p [8]byte
	if littleEndian {
		copy(p[:], data)
		return binary.LittleEndian.Uint64(p[:])
	}
	copy(p[8-len(data):], data)
	return binary.BigEndian.Uint64(p[:])
}

func signExtend(u uint64, width int) int64 {
	if width <= 0 || width >= 64 {
		return int64(u)
	}
	shift := 64 - width
	return int64(u<<shift) >> shift
}

func decode(hf host.HeaderField, data []byte, enc host.Encoding) (value, error) {
	switch {
	case hf.Kind == host.KindNone || hf.Kind == host.KindProtocol:
		return value{}, nil
	case hf.Kind.Integer():
		if len(data) < 1 || len(data) > maxLen(hf.Kind) {
			return value{}, fmt.Errorf("%d bytes for %v field %s: %w", len(data), hf.Kind, hf.Abbrev, core.ErrFieldKind)
		}
		u := readUint(data, enc.LittleEndian())
		width := 8 * len(data)
		if hf.Bitmask != 0 {
			shift := bits.TrailingZeros64(hf.Bitmask)
			u = (u & hf.Bitmask) >> shift
			width = bits.Len64(hf.Bitmask >> shift)
		}
		v := value{u: u, i: int64(u)}
		if hf.Kind.Signed() {
			v.i = signExtend(u, width)
		}
		return v, nil
	case hf.Kind == host.KindString:
		s := strings.TrimRight(string(data), "\x00")
		return value{s: strings.ToValidUTF8(s, "\uFFFD")}, nil
	case hf.Kind == host.KindBytes:
		return value{raw: append([]byte(nil), data...)}, nil
	default:
		panic(fmt.Errorf("decode %v: %w", hf.Kind, core.ErrFieldKind))
	}
}

// label renders the display text of an item.
func label(hf host.HeaderField, v value) string {
	switch {
	case hf.Kind == host.KindNone || hf.Kind == host.KindProtocol:
		return hf.Name
	case hf.Kind.Integer():
		digits := 2 * hf.Kind.Width()
		text := hf.Name + ": " + formatInt(hf, v, digits)
		if hf.Bitmask != 0 {
			total := 8 * hf.Kind.Width()
			if total == 0 {
				total = (bits.Len64(hf.Bitmask) + 7) / 8 * 8
			}
			shifted := v.u << uint(bits.TrailingZeros64(hf.Bitmask))
			text = maskPattern(total, hf.Bitmask, shifted) + " = " + text
		}
		return text
	case hf.Kind == host.KindString:
		return fmt.Sprintf("%s: %s", hf.Name, v.s)
	case hf.Kind == host.KindBytes:
		if len(v.raw) == 0 {
			return hf.Name + ": <empty>"
		}
		return hf.Name + ": " + hex.EncodeToString(v.raw)
	default:
		return hf.Name
	}
}

// formatInt renders an integer value with its label mapping, if any.
func formatInt(hf host.HeaderField, v value, hexDigits int) string {
	switch hf.Kind {
	case host.KindBoolean:
		if v.u != 0 {
			return "True"
		}
		return "False"
	case host.KindChar:
		if v.u >= 0x20 && v.u < 0x7f {
			return fmt.Sprintf("'%c'", rune(v.u))
		}
		return fmt.Sprintf(`'\x%02x'`, v.u)
	}

	raw := formatNumber(hf.Display, v, hf.Kind.Signed(), hexDigits)
	if hf.Strings == nil {
		return raw
	}
	key := v.u
	switch {
	case hf.Kind.Signed() && hf.Kind.Width() <= 4:
		// 32-bit label tables hold negative values in two's complement
		key = uint64(uint32(v.i))
	case hf.Kind.Signed():
		key = uint64(v.i)
	}
	if l, ok := hf.Strings.Label(key); ok {
		return fmt.Sprintf("%s (%s)", l, raw)
	}
	return fmt.Sprintf("Unknown (%s)", raw)
}

func formatNumber(display host.Display, v value, signed bool, hexDigits int) string {
	dec := strconv.FormatUint(v.u, 10)
	if signed {
		dec = strconv.FormatInt(v.i, 10)
	}
	if hexDigits <= 0 {
		hexDigits = 1
	}
	hexs := fmt.Sprintf("0x%0*x", hexDigits, v.u)

	switch display {
	case host.BaseHex:
		return hexs
	case host.BaseOct:
		if v.u == 0 {
			return "0"
		}
		return fmt.Sprintf("0%o", v.u)
	case host.BaseDecHex:
		return dec + " (" + hexs + ")"
	case host.BaseHexDec:
		return hexs + " (" + dec + ")"
	default:
		return dec
	}
}

// bitPattern draws the bits of data, most significant first, showing only
// the run [offset, offset+count) and dots elsewhere, grouped by nibble.
// With lsbFirst, bits are numbered from the least significant bit of each
// octet, octets in order.
func bitPattern(data []byte, offset, count int, lsbFirst bool) string {
	var sb strings.Builder
	for i := 0; i < 8*len(data); i++ {
		if i > 0 && i%4 == 0 {
			sb.WriteByte(' ')
		}
		pos := i
		if lsbFirst {
			pos = i - i%8 + 7 - i%8
		}
		if pos < offset || pos >= offset+count {
			sb.WriteByte('.')
			continue
		}
		sb.WriteByte('0' + (data[i/8]>>(7-i%8))&1)
	}
	return sb.String()
}

// maskPattern draws the low total bits of raw, showing only the bits set in
// mask.
func maskPattern(total int, mask, raw uint64) string {
	var sb strings.Builder
	for i := 0; i < total; i++ {
		if i > 0 && i%4 == 0 {
			sb.WriteByte(' ')
		}
		bit := uint64(1) << uint(total-1-i)
		switch {
		case mask&bit == 0:
			sb.WriteByte('.')
		case raw&bit != 0:
			sb.WriteByte('1')
		default:
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// bitsValue extracts count bits starting offset bits into data. Big-endian
// runs are read most significant bit first. Little-endian runs number bits
// from the least significant bit of the first octet, and the first bit read
// is the least significant bit of the value.
func bitsValue(kind host.FieldKind, data []byte, offset, count int, lsbFirst bool) value {
	var u uint64
	for i := 0; i < count; i++ {
		pos := offset + i
		if lsbFirst {
			u |= uint64((data[pos/8]>>(pos%8))&1) << uint(i)
			continue
		}
		bit := (data[pos/8] >> (7 - pos%8)) & 1
		u = u<<1 | uint64(bit)
	}
	v := value{u: u, i: int64(u)}
	if kind.Signed() {
		v.i = signExtend(u, count)
	}
	return v
}
