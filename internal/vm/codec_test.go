package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadProgram(t *testing.T) {
	prog := &Program{
		StartAddress: 0,
		Instructions: []Instruction{
			{Opcode: PUSH, N: 2, Operands: []byte{0x2a, 0x00}},
			{Opcode: PRINT_UNSIGNED, N: uint64(Short)},
			{Opcode: HALT},
		},
	}

	buf := make([]byte, ProgramSize(prog))
	require.NoError(t, WriteProgram(buf, prog))

	decoded, err := ReadProgram(buf)
	require.NoError(t, err)
	assert.Equal(t, prog.StartAddress, decoded.StartAddress)
	require.Len(t, decoded.Instructions, 3)
	assert.Equal(t, PUSH, decoded.Instructions[0].Opcode)
	assert.Equal(t, []byte{0x2a, 0x00}, decoded.Instructions[0].Operands)
	assert.Equal(t, HALT, decoded.Instructions[2].Opcode)
}

func TestReadProgramShortBuffer(t *testing.T) {
	_, err := ReadProgram([]byte{1, 2, 3})
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ShortRead, ce.Kind)
}

func TestReadProgramInvalidHeader(t *testing.T) {
	buf := make([]byte, 16)
	putWord(buf[0:8], 5) // start_address
	putWord(buf[8:16], 2) // count, start >= count
	_, err := ReadProgram(buf)
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, InvalidProgramHeader, ce.Kind)
}

func TestReadInstructionInvalidOpcode(t *testing.T) {
	r := NewReader([]byte{0xFF})
	_, err := r.ReadInstruction()
	require.Error(t, err)
	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, InvalidOpcodeInStream, ce.Kind)
}

func TestReadInstructionBorrowsBuffer(t *testing.T) {
	buf := make([]byte, 17)
	buf[0] = byte(MOV)
	putWord(buf[1:9], uint64(Word))
	putWord(buf[9:17], 3)

	r := NewReader(buf)
	in, err := r.ReadInstruction()
	require.NoError(t, err)
	// Mutating the source buffer mutates the borrowed operand slice.
	buf[9] = 0xFF
	assert.Equal(t, byte(0xFF), in.Operands[0])
}

func TestReadInstructionOwnedCopiesBuffer(t *testing.T) {
	buf := make([]byte, 17)
	buf[0] = byte(MOV)
	putWord(buf[1:9], uint64(Word))
	putWord(buf[9:17], 3)

	r := NewReader(buf)
	in, err := r.ReadInstructionOwned()
	require.NoError(t, err)
	buf[9] = 0xFF
	assert.NotEqual(t, byte(0xFF), in.Operands[0])
}
