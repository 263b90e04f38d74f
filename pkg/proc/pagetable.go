// Package proc defines the monitor's view of the machine it inspects: the
// paged address space, physical memory, the suspended context and the kernel
// symbol table.
package proc

import (
	"errors"
	"strings"
)

const (
	PageSize  = 0x1000
	PageShift = 12

	// KernBase is the base of the kernel direct map: every physical
	// address p is also reachable at virtual address KernBase+p.
	KernBase = 0xf0000000
)

// Entry is one translation entry: a physical frame address in the upper bits
// and permission flags in the low twelve.
type Entry uint32

const (
	EntryPresent  Entry = 0x001
	EntryWritable Entry = 0x002
	EntryUser     Entry = 0x004

	entryFlagMask Entry = 0xfff
)

// Present reports whether the mapping may be dereferenced.
func (e Entry) Present() bool { return e&EntryPresent != 0 }

// Writable reports whether the mapping allows writes.
func (e Entry) Writable() bool { return e&EntryWritable != 0 }

// User reports whether the mapping is accessible from user mode.
func (e Entry) User() bool { return e&EntryUser != 0 }

// Frame returns the physical frame address of the entry.
func (e Entry) Frame() uint32 { return uint32(e &^ entryFlagMask) }

// FlagString renders the set permission flags the way the page-table
// inspection commands display them.
func (e Entry) FlagString() string {
	var flags []string
	if e.Present() {
		flags = append(flags, "PTE_P")
	}
	if e.Writable() {
		flags = append(flags, "PTE_W")
	}
	if e.User() {
		flags = append(flags, "PTE_U")
	}
	return strings.Join(flags, " ")
}

// PageNum returns the page number of va.
func PageNum(va uint32) uint32 { return va >> PageShift }

// PageOff returns the offset of va within its page.
func PageOff(va uint32) uint32 { return va & (PageSize - 1) }

// PageRoundDown returns va rounded down to its page boundary.
func PageRoundDown(va uint32) uint32 { return va &^ (PageSize - 1) }

var (
	// ErrNoEntry is returned when a virtual address has no translation
	// entry at all.
	ErrNoEntry = errors.New("page not found")
	// ErrBadPerm is returned for a permission string containing letters
	// other than 'w' and 'u'.
	ErrBadPerm = errors.New("invalid permissions")
)

// PageTable is one address space: a page-granular map from virtual page to
// translation entry. All permission edits go through it so that the frame
// bits of an entry can never change once mapped.
type PageTable struct {
	entries map[uint32]Entry
}

// NewPageTable returns an empty address space.
func NewPageTable() *PageTable {
	return &PageTable{entries: make(map[uint32]Entry)}
}

// Map installs a translation from the page containing va to the frame
// containing pa, with the given flags.
func (pt *PageTable) Map(va, pa uint32, flags Entry) {
	pt.entries[PageNum(va)] = Entry(PageRoundDown(pa)) | (flags & entryFlagMask)
}

// Walk looks up the translation entry covering va. With create set a zero
// entry is installed when none exists; a read-only walk never mutates the
// table.
func (pt *PageTable) Walk(va uint32, create bool) (Entry, bool) {
	e, ok := pt.entries[PageNum(va)]
	if !ok && create {
		pt.entries[PageNum(va)] = 0
		return 0, true
	}
	return e, ok
}

// SetPerm replaces the permission bits of the entry covering va with perm,
// keeping the frame bits and the present bit as they were.
func (pt *PageTable) SetPerm(va uint32, perm Entry) error {
	e, ok := pt.entries[PageNum(va)]
	if !ok {
		return ErrNoEntry
	}
	pt.entries[PageNum(va)] = Entry(e.Frame()) | (e & EntryPresent) | (perm & entryFlagMask)
	return nil
}

// ClearPerm strips all permission bits from the entry covering va. The
// present bit is re-asserted only if the page was present before, so that
// permissions staged on a not-yet-present page can be cleared without making
// it reachable.
func (pt *PageTable) ClearPerm(va uint32) error {
	e, ok := pt.entries[PageNum(va)]
	if !ok {
		return ErrNoEntry
	}
	pt.entries[PageNum(va)] = Entry(e.Frame()) | (e & EntryPresent)
	return nil
}

// TogglePerm flips the given permission bits of the entry covering va.
func (pt *PageTable) TogglePerm(va uint32, perm Entry) error {
	e, ok := pt.entries[PageNum(va)]
	if !ok {
		return ErrNoEntry
	}
	pt.entries[PageNum(va)] = e ^ (perm & entryFlagMask)
	return nil
}

// ParsePerm parses a permission string of 'w' and 'u' letters. The present
// bit is not expressible here; it is managed by the mutation operations.
func ParsePerm(s string) (Entry, error) {
	var perm Entry
	for _, c := range s {
		switch c {
		case 'w':
			perm |= EntryWritable
		case 'u':
			perm |= EntryUser
		default:
			return 0, ErrBadPerm
		}
	}
	return perm, nil
}
