package proc

// Scheduler resumes a suspended domain. Resume transfers the processor to
// the given saved state: on success it does not return to the caller. A
// Resume call that returns at all, error or not, is a fatal condition for
// the monitor.
type Scheduler interface {
	Resume(tf *TrapFrame) error
}

// KernelLayout holds the linker-provided kernel image symbols displayed by
// the kerninfo command.
type KernelLayout struct {
	Start uint32 // physical load address
	Entry uint32
	Etext uint32
	Edata uint32
	End   uint32
}

// Target bundles the collaborators the monitor core works against. The
// PageRoot accessor is called on every command invocation, never cached,
// because the active address space can change between invocations.
type Target struct {
	PageRoot func() *PageTable
	Mem      *RAM
	Syms     Symbolizer
	Sched    Scheduler
	Layout   *KernelLayout
}

// ReadPhys reads the word at physical address pa through the direct map.
func (t *Target) ReadPhys(pa uint32) (uint32, error) {
	return t.Mem.ReadWord(pa)
}

// ReadVirt reads the word at virtual address va, translating through root.
// A missing translation entry is ErrNoEntry; the address is never
// dereferenced in that case.
func (t *Target) ReadVirt(root *PageTable, va uint32) (uint32, error) {
	e, ok := root.Walk(va, false)
	if !ok {
		return 0, ErrNoEntry
	}
	return t.Mem.ReadWord(e.Frame() | PageOff(va))
}

// Resume hands the suspended context back to the scheduler.
func (t *Target) Resume(tf *TrapFrame) error {
	return t.Sched.Resume(tf)
}
