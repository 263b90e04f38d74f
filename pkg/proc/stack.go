package proc

// Stack unwinding over the frame-pointer chain: the word at the current
// frame pointer is the previous frame pointer, the word above it is the
// return address. The chain terminates at a frame pointer of zero.

// maxFrameArgs is how many words above the return address are shown as the
// caller's visible arguments.
const maxFrameArgs = 5

// Stackframe is one frame of the suspended domain's call stack.
type Stackframe struct {
	// FP is the frame pointer of this frame.
	FP uint32
	// Ret is the address the function above this one will return to.
	Ret uint32
	// Args holds the words immediately above the return address.
	Args [maxFrameArgs]uint32
	// SymInfo describes the function containing Ret.
	SymInfo
}

// StackIterator walks the frame-pointer chain lazily. A corrupted chain that
// never reaches zero is cut off by the depth guard; resolver and memory
// failures surface through Err, and the failing frame is not yielded.
type StackIterator struct {
	tgt      *Target
	root     *PageTable
	fp       uint32
	depth    int
	maxDepth int
	atend    bool
	frame    Stackframe
	err      error
}

// NewStackIterator returns an iterator over the chain starting at frame
// pointer fp in the address space root. maxDepth bounds the walk; zero or
// negative means no bound.
func (t *Target) NewStackIterator(root *PageTable, fp uint32, maxDepth int) *StackIterator {
	return &StackIterator{tgt: t, root: root, fp: fp, maxDepth: maxDepth}
}

// Next advances to the next frame. It returns false when the chain
// terminates, the depth guard is reached, or an error occurs.
func (it *StackIterator) Next() bool {
	if it.err != nil || it.atend {
		return false
	}
	if it.fp == 0 {
		it.atend = true
		return false
	}
	if it.maxDepth > 0 && it.depth >= it.maxDepth {
		it.atend = true
		return false
	}

	ret, err := it.tgt.ReadVirt(it.root, it.fp+4)
	if err != nil {
		it.err = err
		return false
	}
	var args [maxFrameArgs]uint32
	for i := range args {
		args[i], err = it.tgt.ReadVirt(it.root, it.fp+8+uint32(i)*4)
		if err != nil {
			it.err = err
			return false
		}
	}
	// Resolve before yielding: an unresolvable return address fails the
	// walk without producing a half-rendered frame.
	info, err := it.tgt.Syms.PCToLine(ret)
	if err != nil {
		it.err = err
		return false
	}
	prev, err := it.tgt.ReadVirt(it.root, it.fp)
	if err != nil {
		it.err = err
		return false
	}

	it.frame = Stackframe{FP: it.fp, Ret: ret, Args: args, SymInfo: info}
	it.fp = prev
	it.depth++
	return true
}

// Frame returns the frame the iterator is positioned at.
func (it *StackIterator) Frame() Stackframe { return it.frame }

// Err returns the error that stopped the walk, if any.
func (it *StackIterator) Err() error { return it.err }

// Stacktrace collects up to maxDepth frames starting at fp. The frames
// walked before a failure are returned together with the error.
func (t *Target) Stacktrace(root *PageTable, fp uint32, maxDepth int) ([]Stackframe, error) {
	it := t.NewStackIterator(root, fp, maxDepth)
	var frames []Stackframe
	for it.Next() {
		frames = append(frames, it.Frame())
	}
	return frames, it.Err()
}
