// Package sim implements a small simulated paged machine for the monitor to
// run against. The instruction stream is abstract: the program counter
// advances by one instruction-sized step at a time, trapping on breakpoints
// and, while the single-step flag is set, after every instruction.
package sim

import (
	"errors"

	"github.com/go-kmon/kmon/pkg/logflags"
	"github.com/go-kmon/kmon/pkg/proc"
)

// instrSize is the size of one simulated instruction.
const instrSize = 4

// ErrHalted is returned by Resume when the program counter runs past the end
// of the program.
var ErrHalted = errors.New("machine halted")

// ErrMonitorExited is returned by Resume when the trap handler returned
// instead of resuming or exiting. Outside of tests this does not happen.
var ErrMonitorExited = errors.New("trap handler returned")

const (
	segKernCode uint16 = 0x08
	segKernData uint16 = 0x10
)

// Machine is a simulated machine: physical memory, one address space, a
// synthetic kernel symbol table and an abstract instruction stream.
type Machine struct {
	ram  *proc.RAM
	pt   *proc.PageTable
	syms *proc.SymTable

	pc     uint32
	esp    uint32
	eflags uint32
	regs   proc.PushRegs

	progStart   uint32
	progEnd     uint32
	breakpoints map[uint32]bool
	layout      proc.KernelLayout

	// OnTrap is invoked with a fresh trap frame whenever the machine traps.
	// The handler is expected not to return: it re-enters the monitor, and
	// leaving the monitor ends the process.
	OnTrap func(*proc.TrapFrame)
}

// New builds a machine with memSize bytes of RAM, the kernel direct map
// installed (KernBase+p -> p, present and writable), and the given symbol
// table and layout.
func New(memSize uint32, syms *proc.SymTable, layout proc.KernelLayout) *Machine {
	m := &Machine{
		ram:         proc.NewRAM(memSize),
		pt:          proc.NewPageTable(),
		syms:        syms,
		breakpoints: make(map[uint32]bool),
		layout:      layout,
	}
	for pa := uint32(0); pa < m.ram.Size(); pa += proc.PageSize {
		m.pt.Map(proc.KernBase+pa, pa, proc.EntryPresent|proc.EntryWritable)
	}
	return m
}

// Target returns the collaborator bundle the monitor consumes.
func (m *Machine) Target() *proc.Target {
	return &proc.Target{
		PageRoot: func() *proc.PageTable { return m.pt },
		Mem:      m.ram,
		Syms:     m.syms,
		Sched:    m,
		Layout:   &m.layout,
	}
}

// PageTable exposes the machine's address space for test and demo setup.
func (m *Machine) PageTable() *proc.PageTable { return m.pt }

// RAM exposes physical memory for test and demo setup.
func (m *Machine) RAM() *proc.RAM { return m.ram }

// MapPage installs a mapping in the machine's address space.
func (m *Machine) MapPage(va, pa uint32, perm proc.Entry) {
	m.pt.Map(va, pa, perm)
}

// SetBreakpoint arranges for a breakpoint trap when the program counter
// reaches pc.
func (m *Machine) SetBreakpoint(pc uint32) {
	m.breakpoints[pc] = true
}

// SetProgram defines the executable range [start, end) and places the
// program counter at start.
func (m *Machine) SetProgram(start, end uint32) {
	m.progStart = start
	m.progEnd = end
	m.pc = start
}

// SetStack sets the stack and frame pointers of the initial context.
func (m *Machine) SetStack(esp, ebp uint32) {
	m.esp = esp
	m.regs.Ebp = ebp
}

// Start runs the machine from its initial state until the first trap or
// until it halts. Like Resume, it does not return while the trap handler
// keeps control.
func (m *Machine) Start() error {
	return m.run()
}

// Resume implements proc.Scheduler: it restores the saved context and runs
// until the next trap. On a trap the registered handler takes over and
// Resume does not return; it returns only when the machine halts or the
// handler gives up control.
func (m *Machine) Resume(tf *proc.TrapFrame) error {
	m.regs = tf.Regs
	m.pc = tf.Eip
	m.eflags = tf.Eflags
	m.esp = tf.Esp
	if logflags.Sim() {
		logflags.SimLogger().Debugf("resume at %#08x eflags %#08x", m.pc, m.eflags)
	}
	return m.run()
}

func (m *Machine) run() error {
	for {
		if m.pc+instrSize >= m.progEnd {
			if logflags.Sim() {
				logflags.SimLogger().Debugf("halted at %#08x", m.pc)
			}
			return ErrHalted
		}
		m.pc += instrSize
		switch {
		case m.breakpoints[m.pc]:
			m.trap(proc.TrapBreakpoint)
			return ErrMonitorExited
		case m.eflags&proc.FlagTrap != 0:
			m.trap(proc.TrapDebug)
			return ErrMonitorExited
		}
	}
}

func (m *Machine) trap(no uint32) {
	tf := &proc.TrapFrame{
		Regs:   m.regs,
		TrapNo: no,
		Eip:    m.pc,
		Cs:     segKernCode,
		Eflags: m.eflags,
		Esp:    m.esp,
		Ss:     segKernData,
	}
	if logflags.Sim() {
		logflags.SimLogger().Debugf("trap %d (%s) at %#08x", no, proc.TrapName(no), m.pc)
	}
	if m.OnTrap != nil {
		m.OnTrap(tf)
	}
}
