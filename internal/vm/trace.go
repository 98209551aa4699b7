package vm

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
)

// dumpConfig mirrors KTStephano-GVM's printCurrentState, replacing its
// hand-rolled fmt.Println state dump with go-spew's structured output.
var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// registerSnapshot and heapSnapshot exist only to give spew friendly field
// names; Machine's own fields stay unexported.
type registerSnapshot struct {
	Words []uint64
}

type heapSnapshot struct {
	Pages []PageInfo
}

// Dump writes a structured snapshot of the machine's registers, stack depth,
// call-stack depth, heap, and program counter to w.
func (m *Machine) Dump(w io.Writer) {
	fmt.Fprintf(w, "pc=%d halted=%v stack_ptr=%d call_depth=%d\n", m.pc, m.halted, m.stackPtr, m.callStackPtr)

	regs := registerSnapshot{Words: make([]uint64, len(m.registers)/8)}
	for i := range regs.Words {
		regs.Words[i] = getWord(m.registers[i*8:])
	}
	dumpConfig.Fdump(w, regs)

	dumpConfig.Fdump(w, heapSnapshot{Pages: m.heap.Pages()})
}

// CurrentInstruction returns the instruction at the program counter, for
// debugger display. ok is false once the machine has run off the program.
func (m *Machine) CurrentInstruction() (in Instruction, ok bool) {
	if m.program == nil || m.pc >= m.program.Count() {
		return Instruction{}, false
	}
	return m.program.Instructions[m.pc], true
}
