package vm

// Page is one allocated heap region, grounded on original_source/lib/heap.h's
// page struct (capacity + backing storage).
type Page struct {
	data  []byte
	alive bool
	gen   uint32
}

// PageInfo is a read-only snapshot of a page, exposed for the debug TUI and
// PRINT-style inspection (spec §9 supplemented feature).
type PageInfo struct {
	Handle   uint64
	Capacity int
	Alive    bool
}

// Heap is a paged, generation-indexed heap. Addresses handed back to the VM
// are opaque 64-bit handles (index in the low 32 bits, generation in the high
// 32 bits) rather than raw pointers, so a freed-and-reused slot can never be
// aliased by a stale handle: spec §9's design note, grounded on
// original_source/lib/heap.h's handle table.
type Heap struct {
	pages []Page
	free  []uint32
}

// NewHeap constructs an empty heap.
func NewHeap() *Heap {
	return &Heap{}
}

func packHandle(index, gen uint32) uint64 {
	return uint64(gen)<<32 | uint64(index)
}

func unpackHandle(h uint64) (index, gen uint32) {
	return uint32(h), uint32(h >> 32)
}

// Alloc reserves a page of size bytes and returns its opaque handle.
func (h *Heap) Alloc(size uint64) uint64 {
	data := make([]byte, size)
	if len(h.free) > 0 {
		idx := h.free[len(h.free)-1]
		h.free = h.free[:len(h.free)-1]
		h.pages[idx].data = data
		h.pages[idx].alive = true
		h.pages[idx].gen++
		return packHandle(idx, h.pages[idx].gen)
	}
	h.pages = append(h.pages, Page{data: data, alive: true, gen: 1})
	return packHandle(uint32(len(h.pages)-1), 1)
}

func (h *Heap) lookup(handle uint64) (*Page, bool) {
	idx, gen := unpackHandle(handle)
	if int(idx) >= len(h.pages) {
		return nil, false
	}
	p := &h.pages[idx]
	if !p.alive || p.gen != gen {
		return nil, false
	}
	return p, true
}

// Free tombstones the page referenced by handle, making the index available
// for reuse under a new generation.
func (h *Heap) Free(handle uint64) error {
	p, ok := h.lookup(handle)
	if !ok {
		return &Error{Kind: InvalidPageAddress}
	}
	idx, _ := unpackHandle(handle)
	p.alive = false
	p.data = nil
	h.free = append(h.free, idx)
	return nil
}

// Size returns the capacity, in bytes, of the page referenced by handle.
func (h *Heap) Size(handle uint64) (uint64, error) {
	p, ok := h.lookup(handle)
	if !ok {
		return 0, &Error{Kind: InvalidPageAddress}
	}
	return uint64(len(p.data)), nil
}

// Set writes width bytes of v at byte offset off within the page, little-endian.
func (h *Heap) Set(handle uint64, off uint64, w Width, v uint64) error {
	p, ok := h.lookup(handle)
	if !ok {
		return &Error{Kind: InvalidPageAddress}
	}
	if off+uint64(w) > uint64(len(p.data)) {
		return &Error{Kind: OutOfBounds}
	}
	putWidth(p.data[off:], w, v)
	return nil
}

// Get reads width bytes at byte offset off within the page, zero-extended.
func (h *Heap) Get(handle uint64, off uint64, w Width) (uint64, error) {
	p, ok := h.lookup(handle)
	if !ok {
		return 0, &Error{Kind: InvalidPageAddress}
	}
	if off+uint64(w) > uint64(len(p.data)) {
		return 0, &Error{Kind: OutOfBounds}
	}
	return getWidth(p.data[off:], w), nil
}

// Pages reports every page, live or tombstoned, for diagnostic dumps.
func (h *Heap) Pages() []PageInfo {
	infos := make([]PageInfo, len(h.pages))
	for i, p := range h.pages {
		infos[i] = PageInfo{
			Handle:   packHandle(uint32(i), p.gen),
			Capacity: len(p.data),
			Alive:    p.alive,
		}
	}
	return infos
}
