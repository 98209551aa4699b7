// Package vm implements the OVM execution engine: opcode dispatch, the
// bytecode codec, and the paged heap.
package vm

import "encoding/binary"

// Width is one of the four first-class integer widths. Every width-parameterized
// stack, register, and heap operation carries one of these.
type Width uint8

const (
	Byte  Width = 1
	Short Width = 2
	HWord Width = 4
	Word  Width = 8
)

// IsValid reports whether w is one of {1,2,4,8}.
func (w Width) IsValid() bool {
	switch w {
	case Byte, Short, HWord, Word:
		return true
	default:
		return false
	}
}

func (w Width) String() string {
	switch w {
	case Byte:
		return "BYTE"
	case Short:
		return "SHORT"
	case HWord:
		return "HWORD"
	case Word:
		return "WORD"
	default:
		return "INVALID_WIDTH"
	}
}

// putWord writes v as 8 little-endian bytes into dst.
func putWord(dst []byte, v uint64) {
	binary.LittleEndian.PutUint64(dst, v)
}

// getWord reads 8 little-endian bytes from src.
func getWord(src []byte) uint64 {
	return binary.LittleEndian.Uint64(src)
}

// putWidth writes the low w bytes of v, little-endian, into dst.
func putWidth(dst []byte, w Width, v uint64) {
	switch w {
	case Byte:
		dst[0] = byte(v)
	case Short:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case HWord:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case Word:
		binary.LittleEndian.PutUint64(dst, v)
	}
}

// getWidth reads w little-endian bytes from src, zero-extended to 64 bits.
func getWidth(src []byte, w Width) uint64 {
	switch w {
	case Byte:
		return uint64(src[0])
	case Short:
		return uint64(binary.LittleEndian.Uint16(src))
	case HWord:
		return uint64(binary.LittleEndian.Uint32(src))
	case Word:
		return binary.LittleEndian.Uint64(src)
	default:
		return 0
	}
}

// signExtend widens the low w bytes of v, interpreted as two's-complement,
// to a signed 64-bit value.
func signExtend(v uint64, w Width) int64 {
	switch w {
	case Byte:
		return int64(int8(v))
	case Short:
		return int64(int16(v))
	case HWord:
		return int64(int32(v))
	case Word:
		return int64(v)
	default:
		return 0
	}
}
