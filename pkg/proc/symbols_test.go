package proc

import "testing"

func testSyms() *SymTable {
	return NewSymTable([]FuncSym{
		{Name: "beta", Entry: 0x2000, End: 0x2100, File: "kern/b.c", Line: 20},
		{Name: "alpha", Entry: 0x1000, End: 0x1100, File: "kern/a.c", Line: 10},
		{Name: "alnum", Entry: 0x3000, End: 0x3080, File: "kern/a.c", Line: 90},
	})
}

func TestPCToLine(t *testing.T) {
	syms := testSyms()

	info, err := syms.PCToLine(0x1010)
	if err != nil {
		t.Fatal(err)
	}
	if info.Fn != "alpha" || info.Entry != 0x1000 || info.File != "kern/a.c" || info.Line != 10 {
		t.Errorf("resolved %+v", info)
	}

	// Entry address itself resolves.
	info, err = syms.PCToLine(0x2000)
	if err != nil || info.Fn != "beta" {
		t.Errorf("entry address resolved to %+v, err %v", info, err)
	}
}

func TestPCToLineMiss(t *testing.T) {
	syms := testSyms()

	for _, pc := range []uint32{0x0, 0x0fff, 0x1100, 0x2fff, 0x9000} {
		_, err := syms.PCToLine(pc)
		nserr, ok := err.(*NoSymbolError)
		if !ok {
			t.Errorf("PCToLine(%#x) error = %v, want NoSymbolError", pc, err)
			continue
		}
		if nserr.PC != pc {
			t.Errorf("NoSymbolError.PC = %#x, want %#x", nserr.PC, pc)
		}
	}
}

func TestPCToLineCached(t *testing.T) {
	syms := testSyms()
	first, err := syms.PCToLine(0x1042)
	if err != nil {
		t.Fatal(err)
	}
	second, err := syms.PCToLine(0x1042)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("cached resolution differs: %+v vs %+v", first, second)
	}
}

func TestFuncsMatching(t *testing.T) {
	syms := testSyms()

	got := syms.FuncsMatching("al")
	if len(got) != 2 || got[0].Name != "alpha" || got[1].Name != "alnum" {
		t.Errorf("FuncsMatching(al) = %+v", got)
	}

	if got := syms.FuncsMatching(""); len(got) != 3 {
		t.Errorf("FuncsMatching(\"\") returned %d functions, want 3", len(got))
	}

	if got := syms.FuncsMatching("zeta"); len(got) != 0 {
		t.Errorf("FuncsMatching(zeta) = %+v, want none", got)
	}
}
