package vm

import "fmt"

// CodecKind enumerates the bytecode-codec-level failures of spec §7 — distinct
// from the VM execution errors in errors.go.
type CodecKind uint8

const (
	ShortRead CodecKind = iota
	ShortWrite
	InvalidOpcodeInStream
	InvalidProgramHeader
)

func (k CodecKind) String() string {
	switch k {
	case ShortRead:
		return "short read"
	case ShortWrite:
		return "short write"
	case InvalidOpcodeInStream:
		return "invalid opcode in stream"
	case InvalidProgramHeader:
		return "invalid program header"
	default:
		return "unknown codec error"
	}
}

// CodecError is returned by Reader/Writer methods.
type CodecError struct {
	Kind CodecKind
}

func (e *CodecError) Error() string {
	return e.Kind.String()
}

func codecErr(k CodecKind) *CodecError {
	return &CodecError{Kind: k}
}

const programHeaderSize = 16 // two little-endian words: start_address, count

// Reader reads the OVM bytecode wire format (spec §4.1) from a fixed buffer.
// Binary/n-ary operand slices returned by ReadInstruction are borrowed views
// into buf and must not outlive it; use ReadInstructionOwned for a copy.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for reading starting at offset 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// ReadBytes returns a borrowed slice of the next k bytes and advances the cursor.
func (r *Reader) ReadBytes(k int) ([]byte, error) {
	if r.Remaining() < k {
		return nil, codecErr(ShortRead)
	}
	b := r.buf[r.pos : r.pos+k]
	r.pos += k
	return b, nil
}

// ReadWord reads 8 little-endian bytes and converts to a host uint64.
func (r *Reader) ReadWord() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return getWord(b), nil
}

// ReadProgramHeader reads start_address then count, validating start < count.
func (r *Reader) ReadProgramHeader() (start, count uint64, err error) {
	start, err = r.ReadWord()
	if err != nil {
		return 0, 0, err
	}
	count, err = r.ReadWord()
	if err != nil {
		return 0, 0, err
	}
	if start >= count {
		return 0, 0, codecErr(InvalidProgramHeader)
	}
	return start, count, nil
}

// ReadInstruction reads the opcode byte and the arity-dictated operand bytes.
// Binary and n-ary operand slices are borrowed from the reader's backing buffer.
func (r *Reader) ReadInstruction() (Instruction, error) {
	opByte, err := r.ReadBytes(1)
	if err != nil {
		return Instruction{}, err
	}
	op := Opcode(opByte[0])
	if !op.IsValid() {
		return Instruction{}, codecErr(InvalidOpcodeInStream)
	}

	switch op.Arity() {
	case Nullary:
		return Instruction{Opcode: op}, nil
	case Unary:
		n, err := r.ReadWord()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Opcode: op, N: n}, nil
	case Binary:
		n, err := r.ReadWord()
		if err != nil {
			return Instruction{}, err
		}
		operand, err := r.ReadBytes(8)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Opcode: op, N: n, Operands: operand}, nil
	case Nary:
		n, err := r.ReadWord()
		if err != nil {
			return Instruction{}, err
		}
		payload, err := r.ReadBytes(int(n))
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Opcode: op, N: n, Operands: payload}, nil
	default:
		return Instruction{}, codecErr(InvalidOpcodeInStream)
	}
}

// ReadInstructionOwned is ReadInstruction but with Operands copied into a
// freshly allocated slice, safe to keep past the reader's backing buffer.
func (r *Reader) ReadInstructionOwned() (Instruction, error) {
	in, err := r.ReadInstruction()
	if err != nil {
		return Instruction{}, err
	}
	if in.Operands != nil {
		owned := make([]byte, len(in.Operands))
		copy(owned, in.Operands)
		in.Operands = owned
	}
	return in, nil
}

// ReadProgram reads a full program: header then exactly count instructions.
// Trailing bytes are ignored, per spec §6.
func ReadProgram(buf []byte) (*Program, error) {
	r := NewReader(buf)
	start, count, err := r.ReadProgramHeader()
	if err != nil {
		return nil, err
	}
	instrs := make([]Instruction, 0, count)
	for i := uint64(0); i < count; i++ {
		in, err := r.ReadInstructionOwned()
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, in)
	}
	return &Program{StartAddress: start, Instructions: instrs}, nil
}

// Writer writes the OVM bytecode wire format into a fixed, pre-sized buffer.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter wraps dst for writing starting at offset 0.
func NewWriter(dst []byte) *Writer {
	return &Writer{buf: dst}
}

// Bytes returns the portion of the destination buffer written so far.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}

func (w *Writer) remaining() int {
	return len(w.buf) - w.pos
}

// WriteBytes appends raw bytes, failing with short write if capacity is exhausted.
func (w *Writer) WriteBytes(b []byte) error {
	if w.remaining() < len(b) {
		return codecErr(ShortWrite)
	}
	copy(w.buf[w.pos:], b)
	w.pos += len(b)
	return nil
}

// WriteWord writes v as 8 little-endian bytes.
func (w *Writer) WriteWord(v uint64) error {
	if w.remaining() < 8 {
		return codecErr(ShortWrite)
	}
	putWord(w.buf[w.pos:w.pos+8], v)
	w.pos += 8
	return nil
}

// WriteProgramHeader writes start_address then count.
func (w *Writer) WriteProgramHeader(start, count uint64) error {
	if err := w.WriteWord(start); err != nil {
		return err
	}
	return w.WriteWord(count)
}

// WriteInstruction writes the opcode byte followed by the arity-dictated operand bytes.
func (w *Writer) WriteInstruction(in Instruction) error {
	if w.remaining() < 1 {
		return codecErr(ShortWrite)
	}
	w.buf[w.pos] = byte(in.Opcode)
	w.pos++

	switch in.Opcode.Arity() {
	case Nullary:
		return nil
	case Unary:
		return w.WriteWord(in.N)
	case Binary:
		if err := w.WriteWord(in.N); err != nil {
			return err
		}
		return w.WriteBytes(in.Operands[:8])
	case Nary:
		if err := w.WriteWord(in.N); err != nil {
			return err
		}
		return w.WriteBytes(in.Operands[:in.N])
	default:
		return fmt.Errorf("unknown arity for opcode %v", in.Opcode)
	}
}

// WriteProgram writes the header then every instruction in order.
func WriteProgram(dst []byte, p *Program) error {
	w := NewWriter(dst)
	if err := w.WriteProgramHeader(p.StartAddress, p.Count()); err != nil {
		return err
	}
	for _, in := range p.Instructions {
		if err := w.WriteInstruction(in); err != nil {
			return err
		}
	}
	return nil
}

// ProgramSize returns the exact encoded size, in bytes, of p.
func ProgramSize(p *Program) int {
	size := programHeaderSize
	for _, in := range p.Instructions {
		size++ // opcode byte
		switch in.Opcode.Arity() {
		case Unary:
			size += 8
		case Binary:
			size += 16
		case Nary:
			size += 8 + int(in.N)
		}
	}
	return size
}
