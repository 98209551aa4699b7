package vm

import (
	"fmt"
	"io"
)

func maskFor(w Width) uint64 {
	if w == Word {
		return ^uint64(0)
	}
	return (uint64(1) << (uint64(w) * 8)) - 1
}

// Step fetches, decodes, and executes exactly one instruction, advancing the
// program counter. It mirrors KTStephano-GVM's execInstructions dispatch
// loop, generalized to width-parameterized handlers per spec §9's design note
// (a single flat opcode per operation rather than the original's per-width
// macro-generated opcode variants).
func (m *Machine) Step(out io.Writer) (err error) {
	if m.halted {
		return newErr(EndOfProgram, m.pc)
	}
	if m.pc >= m.program.Count() {
		m.halted = true
		return newErr(EndOfProgram, m.pc)
	}

	in := m.program.Instructions[m.pc]
	nextPC := m.pc + 1

	// A handler that fails may already have popped some operands; restore the
	// stack cursor so a failed step leaves the stack as it found it.
	savedStackPtr := m.stackPtr
	defer func() {
		if err != nil {
			m.stackPtr = savedStackPtr
		}
	}()

	switch in.Opcode {
	case NOOP:
		// nothing

	case HALT:
		m.halted = true
		return nil

	case JUMP_ABS:
		target := in.N
		if target >= m.program.Count() {
			return newErr(InvalidProgramAddress, m.pc)
		}
		nextPC = target

	case JUMP_IF:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		cond, err := m.pop(w)
		if err != nil {
			return err
		}
		if cond != 0 {
			target := getWord(in.Operands)
			if target >= m.program.Count() {
				return newErr(InvalidProgramAddress, m.pc)
			}
			nextPC = target
		}

	case CALL:
		target := in.N
		if target >= m.program.Count() {
			return newErr(InvalidProgramAddress, m.pc)
		}
		if err := m.pushCall(m.pc + 1); err != nil {
			return err
		}
		nextPC = target

	case RET:
		target, err := m.popCall()
		if err != nil {
			return err
		}
		// Corrected per spec §9: RET jumps directly to the popped return
		// address, no further dereference.
		nextPC = target

	case PUSH:
		if err := m.pushBytes(in.Operands); err != nil {
			return err
		}

	case POP:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		if _, err := m.pop(w); err != nil {
			return err
		}

	case PUSH_REGISTER:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		addr := getWord(in.Operands)
		v, err := m.readRegister(addr, w)
		if err != nil {
			return err
		}
		if err := m.push(w, v); err != nil {
			return err
		}

	case MOV:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		addr := getWord(in.Operands)
		v, err := m.pop(w)
		if err != nil {
			return err
		}
		if err := m.writeRegister(addr, w, v); err != nil {
			return err
		}

	case DUP:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		k, err := m.pop(Word)
		if err != nil {
			return err
		}
		v, err := m.peekAt(w, k)
		if err != nil {
			return err
		}
		if err := m.push(w, v); err != nil {
			return err
		}

	case NOT:
		if err := m.unaryBitwise(in.N, func(a uint64) uint64 { return ^a }); err != nil {
			return err
		}
	case OR:
		if err := m.binaryOp(in.N, func(a, b uint64) uint64 { return a | b }); err != nil {
			return err
		}
	case AND:
		if err := m.binaryOp(in.N, func(a, b uint64) uint64 { return a & b }); err != nil {
			return err
		}
	case XOR:
		if err := m.binaryOp(in.N, func(a, b uint64) uint64 { return a ^ b }); err != nil {
			return err
		}
	case EQ:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return ua == ub }); err != nil {
			return err
		}

	case PLUS, PLUS_UNSIGNED:
		if err := m.binaryOp(in.N, func(a, b uint64) uint64 { return a + b }); err != nil {
			return err
		}
	case SUB, SUB_UNSIGNED:
		if err := m.binaryOp(in.N, func(a, b uint64) uint64 { return a - b }); err != nil {
			return err
		}
	case MULT, MULT_UNSIGNED:
		if err := m.binaryOp(in.N, func(a, b uint64) uint64 { return a * b }); err != nil {
			return err
		}

	case LT:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return a < b }); err != nil {
			return err
		}
	case LTE:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return a <= b }); err != nil {
			return err
		}
	case GT:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return a > b }); err != nil {
			return err
		}
	case GTE:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return a >= b }); err != nil {
			return err
		}
	case LT_UNSIGNED:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return ua < ub }); err != nil {
			return err
		}
	case LTE_UNSIGNED:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return ua <= ub }); err != nil {
			return err
		}
	case GT_UNSIGNED:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return ua > ub }); err != nil {
			return err
		}
	case GTE_UNSIGNED:
		if err := m.compare(in.N, func(a, b int64, ua, ub uint64) bool { return ua >= ub }); err != nil {
			return err
		}

	case MALLOC:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		if m.stackPtr+int(Word) > len(m.stack) {
			return newErr(StackOverflow, m.pc)
		}
		count := getWord(in.Operands)
		handle := m.heap.Alloc(count * uint64(w))
		if err := m.push(Word, handle); err != nil {
			return err
		}

	case MALLOC_STACK:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		count, err := m.pop(Word)
		if err != nil {
			return err
		}
		handle := m.heap.Alloc(count * uint64(w))
		if err := m.push(Word, handle); err != nil {
			return err
		}

	case MSET:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		index := getWord(in.Operands)
		v, err := m.pop(w)
		if err != nil {
			return err
		}
		handle, err := m.pop(Word)
		if err != nil {
			return err
		}
		if err := m.heap.Set(handle, index*uint64(w), w, v); err != nil {
			if he, ok := err.(*Error); ok {
				he.At = m.pc
			}
			return err
		}

	case MSET_STACK:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		index, err := m.pop(Word)
		if err != nil {
			return err
		}
		v, err := m.pop(w)
		if err != nil {
			return err
		}
		handle, err := m.pop(Word)
		if err != nil {
			return err
		}
		if err := m.heap.Set(handle, index*uint64(w), w, v); err != nil {
			if he, ok := err.(*Error); ok {
				he.At = m.pc
			}
			return err
		}

	case MGET:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		index := getWord(in.Operands)
		handle, err := m.pop(Word)
		if err != nil {
			return err
		}
		v, err := m.heap.Get(handle, index*uint64(w), w)
		if err != nil {
			if he, ok := err.(*Error); ok {
				he.At = m.pc
			}
			return err
		}
		if err := m.push(w, v); err != nil {
			return err
		}

	case MGET_STACK:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		index, err := m.pop(Word)
		if err != nil {
			return err
		}
		handle, err := m.pop(Word)
		if err != nil {
			return err
		}
		v, err := m.heap.Get(handle, index*uint64(w), w)
		if err != nil {
			if he, ok := err.(*Error); ok {
				he.At = m.pc
			}
			return err
		}
		if err := m.push(w, v); err != nil {
			return err
		}

	case MDELETE:
		handle, err := m.pop(Word)
		if err != nil {
			return err
		}
		if err := m.heap.Free(handle); err != nil {
			if he, ok := err.(*Error); ok {
				he.At = m.pc
			}
			return err
		}

	case MSIZE:
		handle, err := m.pop(Word)
		if err != nil {
			return err
		}
		size, err := m.heap.Size(handle)
		if err != nil {
			if he, ok := err.(*Error); ok {
				he.At = m.pc
			}
			return err
		}
		if err := m.push(Word, size); err != nil {
			return err
		}

	case PRINT_SIGNED:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		v, err := m.pop(w)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d", signExtend(v, w))

	case PRINT_UNSIGNED:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		v, err := m.pop(w)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d", v)

	case PRINT_CHAR:
		w := Width(in.N)
		if !w.IsValid() {
			return newErr(InvalidOpcode, m.pc)
		}
		v, err := m.pop(w)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%c", rune(v))

	default:
		return newErr(InvalidOpcode, m.pc)
	}

	m.pc = nextPC
	return nil
}

func (m *Machine) pushBytes(b []byte) error {
	if m.stackPtr+len(b) > len(m.stack) {
		return newErr(StackOverflow, m.pc)
	}
	copy(m.stack[m.stackPtr:], b)
	m.stackPtr += len(b)
	return nil
}

func (m *Machine) unaryBitwise(n uint64, f func(uint64) uint64) error {
	w := Width(n)
	if !w.IsValid() {
		return newErr(InvalidOpcode, m.pc)
	}
	a, err := m.pop(w)
	if err != nil {
		return err
	}
	return m.push(w, f(a)&maskFor(w))
}

func (m *Machine) binaryOp(n uint64, f func(a, b uint64) uint64) error {
	w := Width(n)
	if !w.IsValid() {
		return newErr(InvalidOpcode, m.pc)
	}
	b, err := m.pop(w)
	if err != nil {
		return err
	}
	a, err := m.pop(w)
	if err != nil {
		return err
	}
	return m.push(w, f(a, b)&maskFor(w))
}

func (m *Machine) compare(n uint64, f func(a, b int64, ua, ub uint64) bool) error {
	w := Width(n)
	if !w.IsValid() {
		return newErr(InvalidOpcode, m.pc)
	}
	b, err := m.pop(w)
	if err != nil {
		return err
	}
	a, err := m.pop(w)
	if err != nil {
		return err
	}
	result := f(signExtend(a, w), signExtend(b, w), a, b)
	var v uint64
	if result {
		v = 1
	}
	return m.push(Byte, v)
}

// Run executes instructions until the machine halts or an error occurs.
// Output from PRINT_* opcodes is written to out.
func (m *Machine) Run(out io.Writer) error {
	for !m.halted {
		if err := m.Step(out); err != nil {
			return err
		}
	}
	return nil
}
