package sim

import "github.com/go-kmon/kmon/pkg/proc"

// The demo machine boots a synthetic kernel with one user program loaded,
// its stack laid out with a real frame-pointer chain, and a breakpoint set
// shortly after the program's entry point so the first resume drops back
// into the monitor.

const (
	userTextVA  uint32 = 0x00800000
	userStackVA uint32 = 0xeebfd000 // one page below USTACKTOP
	scratchVA   uint32 = 0x10000000

	userTextPhys  uint32 = 0x00400000
	userStackPhys uint32 = 0x00401000
	scratchPhys   uint32 = 0x00402000

	startEntry uint32 = 0x00800000
	mainEntry  uint32 = 0x00800020
	umainEntry uint32 = 0x00800080
	umainEnd   uint32 = 0x00800200
)

func demoSymbols() *proc.SymTable {
	return proc.NewSymTable([]proc.FuncSym{
		{Name: "entry", Entry: 0xf010000c, End: 0xf0100040, File: "kern/entry.S", Line: 44},
		{Name: "i386_init", Entry: 0xf0100040, End: 0xf01000b0, File: "kern/init.c", Line: 24},
		{Name: "cons_getc", Entry: 0xf01000b0, End: 0xf0100130, File: "kern/console.c", Line: 369},
		{Name: "monitor", Entry: 0xf0100130, End: 0xf01001e0, File: "kern/monitor.c", Line: 385},
		{Name: "sched_yield", Entry: 0xf01001e0, End: 0xf0100260, File: "kern/sched.c", Line: 9},
		{Name: "env_run", Entry: 0xf0100260, End: 0xf0100310, File: "kern/env.c", Line: 533},
		{Name: "_start", Entry: startEntry, End: mainEntry, File: "lib/entry.S", Line: 7},
		{Name: "libmain", Entry: mainEntry, End: umainEntry, File: "lib/libmain.c", Line: 21},
		{Name: "umain", Entry: umainEntry, End: umainEnd, File: "user/hello.c", Line: 4},
	})
}

func demoLayout() proc.KernelLayout {
	return proc.KernelLayout{
		Start: 0x0010000c,
		Entry: 0xf010000c,
		Etext: 0xf0101a75,
		Edata: 0xf0112300,
		End:   0xf0112960,
	}
}

// NewDemo builds the machine the kmon binary runs: a synthetic kernel image
// plus a user program suspended-to-be at a breakpoint just past umain.
func NewDemo(memSize uint32) *Machine {
	m := New(memSize, demoSymbols(), demoLayout())

	m.MapPage(userTextVA, userTextPhys, proc.EntryPresent|proc.EntryUser)
	m.MapPage(userStackVA, userStackPhys, proc.EntryPresent|proc.EntryWritable|proc.EntryUser)
	m.MapPage(scratchVA, scratchPhys, proc.EntryPresent|proc.EntryWritable)

	// Frame-pointer chain on the user stack: umain's frame links to
	// libmain's, which terminates the chain at zero.
	fp1 := userStackVA + 0xf40
	fp2 := userStackVA + 0xf80
	stackWord := func(va, v uint32) {
		m.ram.WriteWord(userStackPhys+(va-userStackVA), v)
	}
	stackWord(fp1, fp2)
	stackWord(fp1+4, mainEntry+0x26) // return into libmain
	for i := uint32(0); i < 5; i++ {
		stackWord(fp1+8+i*4, i+1)
	}
	stackWord(fp2, 0)
	stackWord(fp2+4, startEntry+0x14) // return into _start
	for i := uint32(0); i < 5; i++ {
		stackWord(fp2+8+i*4, 0xeebf0000+i)
	}

	m.SetProgram(umainEntry, umainEnd)
	m.SetBreakpoint(umainEntry + 0xc)
	m.SetStack(fp1-0x10, fp1)

	return m
}
