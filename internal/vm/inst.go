package vm

import "fmt"

// Instruction is the in-memory record for one fetched or assembled opcode.
// Operands may be a borrowed slice into a codec buffer (see codec.go) — callers
// that need an Instruction to outlive that buffer must copy Operands themselves
// or use Reader.ReadInstructionOwned.
type Instruction struct {
	Opcode   Opcode
	N        uint64
	Operands []byte
}

// String renders a disassembly-style line for the instruction, adapted from
// KTStephano-GVM's Instruction.String() dual signed/unsigned rendering of
// negative immediates.
func (in Instruction) String() string {
	switch in.Opcode.Arity() {
	case Nullary:
		return in.Opcode.String()
	case Unary:
		return fmt.Sprintf("%s %s", in.Opcode.String(), formatImmediate(in.N))
	case Binary:
		operand := getWord(in.Operands)
		return fmt.Sprintf("%s %s %s", in.Opcode.String(), formatImmediate(in.N), formatImmediate(operand))
	case Nary:
		return fmt.Sprintf("%s %d %x", in.Opcode.String(), in.N, in.Operands)
	default:
		return in.Opcode.String()
	}
}

func formatImmediate(v uint64) string {
	s := int64(v)
	if s < 0 {
		return fmt.Sprintf("%d (%d)", s, v)
	}
	return fmt.Sprintf("%d", v)
}

// Program is a loaded OVM program: the entry address and the instruction array.
type Program struct {
	StartAddress uint64
	Instructions []Instruction
}

// Count is the number of instructions in the program.
func (p *Program) Count() uint64 {
	return uint64(len(p.Instructions))
}

// Valid reports whether the program satisfies spec §3's well-formedness rule.
func (p *Program) Valid() bool {
	return p.StartAddress < p.Count()
}
