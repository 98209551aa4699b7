package vm

// Default capacities, grounded on KTStephano-GVM's stackSize/numRegisters
// constant pattern in vm/vm.go.
const (
	DefaultStackSize     = 256
	DefaultCallStackSize = 256
	DefaultRegisterWords = 8
)

// Machine is the complete mutable state of one OVM execution: stack, register
// file, heap, call stack, and the loaded program with its program counter.
// Mirrors KTStephano-GVM's VM struct, generalized to spec §3's data model.
type Machine struct {
	stack    []byte
	stackPtr int

	registers []byte

	heap *Heap

	callStack    []uint64
	callStackPtr int

	program *Program
	pc      uint64
	halted  bool
}

// NewMachine constructs a Machine with the given buffer sizes, per spec §3's
// lifecycle rule that stack, call-stack, and register sizes are fixed at
// construction and never grow.
func NewMachine(stackSize, callStackSize, registerWords int) *Machine {
	return &Machine{
		stack:     make([]byte, stackSize),
		registers: make([]byte, registerWords*8),
		heap:      NewHeap(),
		callStack: make([]uint64, callStackSize),
	}
}

// Load installs p as the program to execute and resets the program counter
// to its start address.
func (m *Machine) Load(p *Program) error {
	if !p.Valid() {
		return &Error{Kind: InvalidProgramAddress}
	}
	m.program = p
	m.pc = p.StartAddress
	m.halted = false
	return nil
}

// Halted reports whether the machine has executed a HALT or run off the end
// of the program.
func (m *Machine) Halted() bool {
	return m.halted
}

// PC returns the current program counter.
func (m *Machine) PC() uint64 {
	return m.pc
}

func (m *Machine) push(w Width, v uint64) error {
	if m.stackPtr+int(w) > len(m.stack) {
		return newErr(StackOverflow, m.pc)
	}
	putWidth(m.stack[m.stackPtr:], w, v)
	m.stackPtr += int(w)
	return nil
}

func (m *Machine) pop(w Width) (uint64, error) {
	if m.stackPtr-int(w) < 0 {
		return 0, newErr(StackUnderflow, m.pc)
	}
	m.stackPtr -= int(w)
	return getWidth(m.stack[m.stackPtr:], w), nil
}

// peekAt reads the W bytes at depth k below the top of the stack (k=0 is the
// topmost value), without popping anything.
func (m *Machine) peekAt(w Width, k uint64) (uint64, error) {
	start := m.stackPtr - int(w)*(int(k)+1)
	if start < 0 {
		return 0, newErr(StackUnderflow, m.pc)
	}
	return getWidth(m.stack[start:], w), nil
}

func (m *Machine) pushCall(addr uint64) error {
	if m.callStackPtr >= len(m.callStack) {
		return newErr(CallStackOverflow, m.pc)
	}
	m.callStack[m.callStackPtr] = addr
	m.callStackPtr++
	return nil
}

func (m *Machine) popCall() (uint64, error) {
	if m.callStackPtr == 0 {
		return 0, newErr(CallStackUnderflow, m.pc)
	}
	m.callStackPtr--
	return m.callStack[m.callStackPtr], nil
}

func (m *Machine) readRegister(addr uint64, w Width) (uint64, error) {
	if addr+uint64(w) > uint64(len(m.registers)) {
		return 0, newRegErr(m.pc, w)
	}
	return getWidth(m.registers[addr:], w), nil
}

func (m *Machine) writeRegister(addr uint64, w Width, v uint64) error {
	if addr+uint64(w) > uint64(len(m.registers)) {
		return newRegErr(m.pc, w)
	}
	putWidth(m.registers[addr:], w, v)
	return nil
}
