package proc

import "testing"

const (
	testStackVA uint32 = 0x00010000
	testStackPA uint32 = 0x4000
)

func stackTarget(t *testing.T) (*Target, func(va, v uint32)) {
	t.Helper()
	ram := NewRAM(1 << 16)
	pt := NewPageTable()
	pt.Map(testStackVA, testStackPA, EntryPresent|EntryWritable)
	tgt := &Target{
		PageRoot: func() *PageTable { return pt },
		Mem:      ram,
		Syms:     testSyms(),
	}
	write := func(va, v uint32) {
		if err := ram.WriteWord(testStackPA+(va-testStackVA), v); err != nil {
			t.Fatal(err)
		}
	}
	return tgt, write
}

// writeFrame lays down one stack frame: saved previous frame pointer, return
// address, and five argument words.
func writeFrame(write func(va, v uint32), fp, prev, ret uint32, args [5]uint32) {
	write(fp, prev)
	write(fp+4, ret)
	for i, a := range args {
		write(fp+8+uint32(i)*4, a)
	}
}

func TestStacktraceWalksChain(t *testing.T) {
	tgt, write := stackTarget(t)

	fp1 := testStackVA + 0xf00
	fp2 := testStackVA + 0xf40
	fp3 := testStackVA + 0xf80
	writeFrame(write, fp1, fp2, 0x1010, [5]uint32{1, 2, 3, 4, 5})
	writeFrame(write, fp2, fp3, 0x2020, [5]uint32{6, 7, 8, 9, 10})
	writeFrame(write, fp3, 0, 0x3004, [5]uint32{11, 12, 13, 14, 15})

	frames, err := tgt.Stacktrace(tgt.PageRoot(), fp1, 64)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}

	want := []struct {
		fp, ret uint32
		fn      string
	}{
		{fp1, 0x1010, "alpha"},
		{fp2, 0x2020, "beta"},
		{fp3, 0x3004, "alnum"},
	}
	for i, w := range want {
		f := frames[i]
		if f.FP != w.fp || f.Ret != w.ret || f.Fn != w.fn {
			t.Errorf("frame %d = {FP %#x Ret %#x Fn %s}, want {%#x %#x %s}",
				i, f.FP, f.Ret, f.Fn, w.fp, w.ret, w.fn)
		}
	}
	if frames[0].Args != [5]uint32{1, 2, 3, 4, 5} {
		t.Errorf("innermost args = %v", frames[0].Args)
	}
	if off := frames[1].Ret - frames[1].Entry; off != 0x20 {
		t.Errorf("frame 1 offset = %#x, want 0x20", off)
	}
}

func TestStacktraceStopsAtUnresolvable(t *testing.T) {
	tgt, write := stackTarget(t)

	fp1 := testStackVA + 0xf00
	fp2 := testStackVA + 0xf40
	fp3 := testStackVA + 0xf80
	writeFrame(write, fp1, fp2, 0x1010, [5]uint32{})
	writeFrame(write, fp2, fp3, 0x9999, [5]uint32{}) // off the known code range
	writeFrame(write, fp3, 0, 0x3004, [5]uint32{})

	frames, err := tgt.Stacktrace(tgt.PageRoot(), fp1, 64)
	if len(frames) != 1 {
		t.Fatalf("got %d frames before failure, want exactly the innermost", len(frames))
	}
	nserr, ok := err.(*NoSymbolError)
	if !ok {
		t.Fatalf("error = %v, want NoSymbolError", err)
	}
	if nserr.PC != 0x9999 {
		t.Errorf("failing pc = %#x, want 0x9999", nserr.PC)
	}
}

func TestStacktraceDepthGuard(t *testing.T) {
	tgt, write := stackTarget(t)

	// A corrupted chain that points back at itself never reaches zero.
	fp := testStackVA + 0xf00
	writeFrame(write, fp, fp, 0x1010, [5]uint32{})

	frames, err := tgt.Stacktrace(tgt.PageRoot(), fp, 8)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 8 {
		t.Errorf("got %d frames, want the depth guard's 8", len(frames))
	}
}

func TestStacktraceUnmappedStack(t *testing.T) {
	tgt, _ := stackTarget(t)

	frames, err := tgt.Stacktrace(tgt.PageRoot(), 0x00020000, 64)
	if len(frames) != 0 {
		t.Errorf("got %d frames from an unmapped stack", len(frames))
	}
	if err != ErrNoEntry {
		t.Errorf("error = %v, want ErrNoEntry", err)
	}
}

func TestStacktraceZeroFramePointer(t *testing.T) {
	tgt, _ := stackTarget(t)

	frames, err := tgt.Stacktrace(tgt.PageRoot(), 0, 64)
	if err != nil || len(frames) != 0 {
		t.Errorf("walk from zero: %d frames, err %v", len(frames), err)
	}
}
