package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocSetGet(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(8)

	require.NoError(t, h.Set(handle, 0, Word, 0x1122334455667788))
	v, err := h.Get(handle, 0, Word)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1122334455667788), v)
}

func TestHeapFreeInvalidatesHandle(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(8)
	require.NoError(t, h.Free(handle))

	_, err := h.Get(handle, 0, Byte)
	require.Error(t, err)
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, InvalidPageAddress, ve.Kind)
}

func TestHeapReusedSlotGetsNewGeneration(t *testing.T) {
	h := NewHeap()
	first := h.Alloc(4)
	require.NoError(t, h.Free(first))

	second := h.Alloc(4)
	idxFirst, genFirst := unpackHandle(first)
	idxSecond, genSecond := unpackHandle(second)
	assert.Equal(t, idxFirst, idxSecond)
	assert.NotEqual(t, genFirst, genSecond)

	// The stale handle must not alias the reused slot.
	_, err := h.Get(first, 0, Byte)
	require.Error(t, err)
}

func TestHeapOutOfBounds(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(4)
	_, err := h.Get(handle, 2, Word)
	require.Error(t, err)
	var ve *Error
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, OutOfBounds, ve.Kind)
}

func TestHeapSize(t *testing.T) {
	h := NewHeap()
	handle := h.Alloc(16)
	size, err := h.Size(handle)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), size)
}
