package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"slices"
)

// ErrCorrupt is returned when a chunk blob does not decode to a known
// encoding with consistent dimensions and checksum. It signals a defect
// (or external tampering), not a recoverable condition.
var ErrCorrupt = errors.New("corrupt chunk blob")

// Blob format:
//
//	[0:4]   magic "RGCK"
//	[4]     format version (1)
//	[5]     encoding Kind
//	[6]     value kind (width + integer/float class of T)
//	[7]     Compression
//	[8:12]  rows  (uint32, little endian)
//	[12:16] cols
//	[16:20] CRC32-Castagnoli of the uncompressed body
//	[20:]   body block (see compress.go)
//
// Body layouts:
//
//	uniform: value
//	dense:   rows*cols values, row-major
//	sparse:  default value, count uint32, count x (offset uint32, value),
//	         offsets ascending
//
// Values are stored at their native width, little endian; floats as IEEE 754
// bits, so a decode reproduces bit-identical cell values.
const (
	codecVersion = 1
	headerSize   = 20
)

var codecMagic = [4]byte{'R', 'G', 'C', 'K'}

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

type valueKind uint8

const (
	valueInt8 valueKind = iota + 1
	valueInt16
	valueInt32
	valueInt64
	valueFloat32
	valueFloat64
)

// kindOfValue derives the value kind of T from its width and arithmetic
// class. It avoids a dynamic type switch so named types (~int32 etc.) map
// the same as their underlying type.
func kindOfValue[T Number]() valueKind {
	isFloat := T(1)/T(2) != T(0)
	switch valueSize[T]() {
	case 1:
		return valueInt8
	case 2:
		return valueInt16
	case 4:
		if isFloat {
			return valueFloat32
		}
		return valueInt32
	default:
		if isFloat {
			return valueFloat64
		}
		return valueInt64
	}
}

func putValue[T Number](buf []byte, k valueKind, v T) {
	switch k {
	case valueInt8:
		buf[0] = byte(int8(v))
	case valueInt16:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v)))
	case valueInt32:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v)))
	case valueInt64:
		binary.LittleEndian.PutUint64(buf, uint64(int64(v)))
	case valueFloat32:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v)))
	case valueFloat64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(float64(v)))
	}
}

func getValue[T Number](buf []byte, k valueKind) T {
	switch k {
	case valueInt8:
		return T(int8(buf[0]))
	case valueInt16:
		return T(int16(binary.LittleEndian.Uint16(buf)))
	case valueInt32:
		return T(int32(binary.LittleEndian.Uint32(buf)))
	case valueInt64:
		return T(int64(binary.LittleEndian.Uint64(buf)))
	case valueFloat32:
		return T(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	default:
		return T(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
	}
}

// Encode serializes a chunk to a self-describing blob suitable for the blob
// store. The encoding (Uniform/Dense/Sparse) and dimensions round-trip
// exactly.
func Encode[T Number](ch Chunk[T], comp Compression) ([]byte, error) {
	vk := kindOfValue[T]()
	vs := int(valueSize[T]())

	var body []byte
	switch c := ch.(type) {
	case *Uniform[T]:
		body = make([]byte, vs)
		putValue(body, vk, c.v)
	case *Dense[T]:
		body = make([]byte, len(c.cells)*vs)
		for i, v := range c.cells {
			putValue(body[i*vs:], vk, v)
		}
	case *Sparse[T]:
		offsets := make([]uint32, 0, len(c.cells))
		for off := range c.cells {
			offsets = append(offsets, off)
		}
		slices.Sort(offsets)

		body = make([]byte, vs+4+len(offsets)*(4+vs))
		putValue(body, vk, c.def)
		binary.LittleEndian.PutUint32(body[vs:], uint32(len(offsets)))
		p := vs + 4
		for _, off := range offsets {
			binary.LittleEndian.PutUint32(body[p:], off)
			putValue(body[p+4:], vk, c.cells[off])
			p += 4 + vs
		}
	default:
		return nil, fmt.Errorf("chunk: cannot encode kind %s", ch.Kind())
	}

	block, err := compressBlock(body, comp)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerSize+len(block))
	copy(out, codecMagic[:])
	out[4] = codecVersion
	out[5] = byte(ch.Kind())
	out[6] = byte(vk)
	out[7] = byte(comp)
	binary.LittleEndian.PutUint32(out[8:], uint32(ch.Rows()))
	binary.LittleEndian.PutUint32(out[12:], uint32(ch.Cols()))
	binary.LittleEndian.PutUint32(out[16:], crc32.Checksum(body, crc32cTable))
	copy(out[headerSize:], block)
	return out, nil
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// Decode reverses Encode. Any structural inconsistency (unknown encoding,
// value kind mismatch, dimension/payload disagreement, checksum failure)
// is reported as ErrCorrupt.
func Decode[T Number](data []byte) (Chunk[T], error) {
	if len(data) < headerSize {
		return nil, corrupt("blob of %d bytes is shorter than the header", len(data))
	}
	if [4]byte(data[0:4]) != codecMagic {
		return nil, corrupt("bad magic %q", data[0:4])
	}
	if data[4] != codecVersion {
		return nil, corrupt("unsupported version %d", data[4])
	}
	kind := Kind(data[5])
	vk := kindOfValue[T]()
	if valueKind(data[6]) != vk {
		return nil, corrupt("value kind %d does not match cell type (want %d)", data[6], vk)
	}
	rows := int(binary.LittleEndian.Uint32(data[8:]))
	cols := int(binary.LittleEndian.Uint32(data[12:]))
	if rows <= 0 || cols <= 0 {
		return nil, corrupt("non-positive dimensions %dx%d", rows, cols)
	}

	body, err := decompressBlock(data[headerSize:], Compression(data[7]))
	if err != nil {
		return nil, corrupt("decompress: %v", err)
	}
	if sum := crc32.Checksum(body, crc32cTable); sum != binary.LittleEndian.Uint32(data[16:]) {
		return nil, corrupt("checksum mismatch")
	}

	vs := int(valueSize[T]())
	cells := rows * cols

	switch kind {
	case KindUniform:
		if len(body) != vs {
			return nil, corrupt("uniform body of %d bytes, want %d", len(body), vs)
		}
		return NewUniform(rows, cols, getValue[T](body, vk)), nil

	case KindDense:
		if len(body) != cells*vs {
			return nil, corrupt("dense body of %d bytes, want %d", len(body), cells*vs)
		}
		d := &Dense[T]{rows: rows, cols: cols, cells: make([]T, cells)}
		for i := range d.cells {
			d.cells[i] = getValue[T](body[i*vs:], vk)
		}
		return d, nil

	case KindSparse:
		if len(body) < vs+4 {
			return nil, corrupt("sparse body of %d bytes is shorter than its prologue", len(body))
		}
		def := getValue[T](body, vk)
		n := int(binary.LittleEndian.Uint32(body[vs:]))
		if len(body) != vs+4+n*(4+vs) {
			return nil, corrupt("sparse body of %d bytes, want %d for %d entries", len(body), vs+4+n*(4+vs), n)
		}
		s := NewSparse(rows, cols, def)
		p := vs + 4
		for range n {
			off := binary.LittleEndian.Uint32(body[p:])
			if int(off) >= cells {
				return nil, corrupt("sparse offset %d outside %dx%d chunk", off, rows, cols)
			}
			s.cells[off] = getValue[T](body[p+4:], vk)
			p += 4 + vs
		}
		return s, nil

	default:
		return nil, corrupt("unknown encoding kind %d", data[5])
	}
}
