package proc

import (
	"fmt"
	"io"
)

// FlagTrap is the single-step flag in the saved flag register. While set,
// the processor traps after every instruction.
const FlagTrap = 0x100

// Trap vector numbers.
const (
	TrapDivide     = 0
	TrapDebug      = 1
	TrapNMI        = 2
	TrapBreakpoint = 3
	TrapOverflow   = 4
	TrapBounds     = 5
	TrapIllegalOp  = 6
	TrapDevice     = 7
	TrapDblFault   = 8
	TrapTSS        = 10
	TrapSegNP      = 11
	TrapStack      = 12
	TrapGPFault    = 13
	TrapPageFault  = 14
	TrapFPUErr     = 16
	TrapAlign      = 17
	TrapMachineCk  = 18
	TrapSIMDErr    = 19
)

var trapNames = map[uint32]string{
	TrapDivide:     "Divide error",
	TrapDebug:      "Debug",
	TrapNMI:        "Non-Maskable Interrupt",
	TrapBreakpoint: "Breakpoint",
	TrapOverflow:   "Overflow",
	TrapBounds:     "BOUND Range Exceeded",
	TrapIllegalOp:  "Invalid Opcode",
	TrapDevice:     "Device Not Available",
	TrapDblFault:   "Double Fault",
	TrapTSS:        "Invalid TSS",
	TrapSegNP:      "Segment Not Present",
	TrapStack:      "Stack Fault",
	TrapGPFault:    "General Protection",
	TrapPageFault:  "Page Fault",
	TrapFPUErr:     "x87 FPU Floating-Point Error",
	TrapAlign:      "Alignment Check",
	TrapMachineCk:  "Machine-Check",
	TrapSIMDErr:    "SIMD Floating-Point Exception",
}

// TrapName returns the human-readable name of a trap vector.
func TrapName(no uint32) string {
	if name, ok := trapNames[no]; ok {
		return name
	}
	return "(unknown trap)"
}

// PushRegs holds the general-purpose registers in the order the trap entry
// path saves them. Oesp is the stack pointer slot of the save instruction
// itself and carries no useful value.
type PushRegs struct {
	Edi  uint32
	Esi  uint32
	Ebp  uint32
	Oesp uint32
	Ebx  uint32
	Edx  uint32
	Ecx  uint32
	Eax  uint32
}

// TrapFrame is the processor state saved when a trap suspends execution and
// enters the monitor. Resuming restores exactly this state, so the resume
// commands edit it in place.
type TrapFrame struct {
	Regs   PushRegs
	TrapNo uint32
	Err    uint32
	Eip    uint32
	Cs     uint16
	Eflags uint32
	Esp    uint32
	Ss     uint16
}

// Print renders the trap frame the way the monitor displays it on entry.
func (tf *TrapFrame) Print(w io.Writer) {
	fmt.Fprintf(w, "TRAP frame\n")
	fmt.Fprintf(w, "  edi  0x%08x\n", tf.Regs.Edi)
	fmt.Fprintf(w, "  esi  0x%08x\n", tf.Regs.Esi)
	fmt.Fprintf(w, "  ebp  0x%08x\n", tf.Regs.Ebp)
	fmt.Fprintf(w, "  ebx  0x%08x\n", tf.Regs.Ebx)
	fmt.Fprintf(w, "  edx  0x%08x\n", tf.Regs.Edx)
	fmt.Fprintf(w, "  ecx  0x%08x\n", tf.Regs.Ecx)
	fmt.Fprintf(w, "  eax  0x%08x\n", tf.Regs.Eax)
	fmt.Fprintf(w, "  trap 0x%08x %s\n", tf.TrapNo, TrapName(tf.TrapNo))
	fmt.Fprintf(w, "  err  0x%08x\n", tf.Err)
	fmt.Fprintf(w, "  eip  0x%08x\n", tf.Eip)
	fmt.Fprintf(w, "  cs   0x----%04x\n", tf.Cs)
	fmt.Fprintf(w, "  flag 0x%08x\n", tf.Eflags)
	fmt.Fprintf(w, "  esp  0x%08x\n", tf.Esp)
	fmt.Fprintf(w, "  ss   0x----%04x\n", tf.Ss)
}
