package proc

import "testing"

func TestWalkIdempotent(t *testing.T) {
	pt := NewPageTable()
	pt.Map(0x10000000, 0x00400000, EntryPresent|EntryWritable)

	e1, ok1 := pt.Walk(0x10000000, false)
	e2, ok2 := pt.Walk(0x10000000, false)
	if !ok1 || !ok2 {
		t.Fatalf("expected entry to be found on both lookups")
	}
	if e1 != e2 {
		t.Errorf("lookup not idempotent: %#x then %#x", e1, e2)
	}
	if e1.Frame() != 0x00400000 {
		t.Errorf("frame = %#x, want %#x", e1.Frame(), 0x00400000)
	}
	if !e1.Present() || !e1.Writable() || e1.User() {
		t.Errorf("flags wrong: %s", e1.FlagString())
	}
}

func TestWalkReadOnlyDoesNotCreate(t *testing.T) {
	pt := NewPageTable()
	if _, ok := pt.Walk(0x10000000, false); ok {
		t.Fatal("read-only walk created an entry")
	}
	if _, ok := pt.Walk(0x10000000, false); ok {
		t.Fatal("entry appeared after read-only walk")
	}
}

func TestSetClearSetRestoresFlags(t *testing.T) {
	pt := NewPageTable()
	pt.Map(0x10000000, 0x00400000, EntryPresent)

	perm, err := ParsePerm("wu")
	if err != nil {
		t.Fatal(err)
	}

	if err := pt.SetPerm(0x10000000, perm); err != nil {
		t.Fatal(err)
	}
	first, _ := pt.Walk(0x10000000, false)

	if err := pt.ClearPerm(0x10000000); err != nil {
		t.Fatal(err)
	}
	cleared, _ := pt.Walk(0x10000000, false)
	if cleared != EntryPresent|Entry(0x00400000) {
		t.Errorf("after clear entry = %#x, want frame plus present only", cleared)
	}

	if err := pt.SetPerm(0x10000000, perm); err != nil {
		t.Fatal(err)
	}
	second, _ := pt.Walk(0x10000000, false)

	if first != second {
		t.Errorf("set/clear/set did not restore entry: %#x vs %#x", first, second)
	}
	if first.Frame() != 0x00400000 || cleared.Frame() != 0x00400000 {
		t.Error("frame bits changed across permission edits")
	}
}

func TestToggleTwiceIsNoop(t *testing.T) {
	pt := NewPageTable()
	pt.Map(0x10000000, 0x00400000, EntryPresent|EntryUser)

	before, _ := pt.Walk(0x10000000, false)
	perm, _ := ParsePerm("wu")

	if err := pt.TogglePerm(0x10000000, perm); err != nil {
		t.Fatal(err)
	}
	mid, _ := pt.Walk(0x10000000, false)
	if mid == before {
		t.Fatal("toggle had no effect")
	}
	if err := pt.TogglePerm(0x10000000, perm); err != nil {
		t.Fatal(err)
	}
	after, _ := pt.Walk(0x10000000, false)

	if after != before {
		t.Errorf("double toggle changed entry: %#x vs %#x", before, after)
	}
}

func TestClearPreservesAbsence(t *testing.T) {
	pt := NewPageTable()
	// Entry exists but the page is not present: permissions can be staged
	// before the page is made present.
	pt.Map(0x10000000, 0x00400000, EntryWritable)

	if err := pt.ClearPerm(0x10000000); err != nil {
		t.Fatal(err)
	}
	e, _ := pt.Walk(0x10000000, false)
	if e.Present() {
		t.Error("clear asserted the present bit on an absent entry")
	}
	if e.Frame() != 0x00400000 {
		t.Error("clear changed the frame bits")
	}
}

func TestMutationsOnMissingEntry(t *testing.T) {
	pt := NewPageTable()
	perm, _ := ParsePerm("wu")

	if err := pt.SetPerm(0x10000000, perm); err != ErrNoEntry {
		t.Errorf("SetPerm error = %v, want ErrNoEntry", err)
	}
	if err := pt.ClearPerm(0x10000000); err != ErrNoEntry {
		t.Errorf("ClearPerm error = %v, want ErrNoEntry", err)
	}
	if err := pt.TogglePerm(0x10000000, perm); err != ErrNoEntry {
		t.Errorf("TogglePerm error = %v, want ErrNoEntry", err)
	}
	if _, ok := pt.Walk(0x10000000, false); ok {
		t.Error("failed mutation created an entry")
	}
}

func TestParsePerm(t *testing.T) {
	for _, tc := range []struct {
		in   string
		perm Entry
		err  error
	}{
		{"", 0, nil},
		{"w", EntryWritable, nil},
		{"u", EntryUser, nil},
		{"wu", EntryWritable | EntryUser, nil},
		{"uw", EntryWritable | EntryUser, nil},
		{"x", 0, ErrBadPerm},
		{"wux", 0, ErrBadPerm},
	} {
		perm, err := ParsePerm(tc.in)
		if err != tc.err {
			t.Errorf("ParsePerm(%q) error = %v, want %v", tc.in, err, tc.err)
			continue
		}
		if err == nil && perm != tc.perm {
			t.Errorf("ParsePerm(%q) = %#x, want %#x", tc.in, perm, tc.perm)
		}
	}
}

func TestFlagString(t *testing.T) {
	e := Entry(0x00400000) | EntryPresent | EntryWritable
	if got := e.FlagString(); got != "PTE_P PTE_W" {
		t.Errorf("FlagString = %q, want %q", got, "PTE_P PTE_W")
	}
	e |= EntryUser
	if got := e.FlagString(); got != "PTE_P PTE_W PTE_U" {
		t.Errorf("FlagString = %q, want %q", got, "PTE_P PTE_W PTE_U")
	}
}
