// Package terminal implements the monitor's read-eval loop: responding to
// operator input and dispatching to the monitor commands.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/go-kmon/kmon/pkg/logflags"
	"github.com/go-kmon/kmon/pkg/proc"
)

// maxArgs is the most whitespace-separated arguments one command line may
// carry; overflow is reported, not fatal.
const maxArgs = 16

type callContext struct {
	// TF is the suspended context that trapped into the monitor; nil when
	// the monitor was entered at boot.
	TF *proc.TrapFrame
}

type cmdfunc func(t *Term, ctx callContext, args []string) error

type command struct {
	aliases        []string
	builtinAliases []string
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this
// command. Matching is exact and case-sensitive.
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the monitor. Registration order
// defines the help listing order.
type Commands struct {
	cmds   []command
	target *proc.Target
}

// MonitorCommands returns a Commands struct with the monitor commands
// defined.
func MonitorCommands(target *proc.Target) *Commands {
	c := &Commands{target: target}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"kerninfo"}, cmdFn: c.kerninfo, helpMsg: "Display information about the kernel."},
		{aliases: []string{"backtrace", "bt"}, cmdFn: c.backtrace, helpMsg: `Display a backtrace of the suspended context.

	backtrace

Walks the frame-pointer chain from the suspended context's frame pointer,
printing each frame pointer, return address and the five words above the
return address, followed by the function containing the return address. The
walk stops at the outermost frame (saved frame pointer of zero).`},
		{aliases: []string{"showmappings"}, cmdFn: c.showMappings, helpMsg: `Display the physical page mappings covering a range of virtual addresses.

	showmappings <start> <end>

Both bounds are hexadecimal virtual addresses; end is exclusive. One line is
printed per page step: the virtual address, the physical frame address and
the permission flags that are set. Unmapped pages are reported, never
dereferenced. A bound of zero is rejected (a parse failure and an explicit
zero are indistinguishable).`},
		{aliases: []string{"modifyperm"}, cmdFn: c.modifyPerm, helpMsg: `Set, clear, or change the permissions of any mapping in the current address space.

	modifyperm s  <va> <perms>	set permissions
	modifyperm cl <va>		clear permissions
	modifyperm ch <va> <perms>	toggle permissions

<va> is a hexadecimal virtual address; address zero cannot be targeted (a
parse failure and an explicit zero are indistinguishable). <perms> is a
string of permission letters: 'w' (writable) and 'u' (user-accessible). The
physical frame bits of the entry are never modified. An entry that exists
but is not present may still be edited; permissions can be staged before the
page is made present.`},
		{aliases: []string{"content"}, cmdFn: c.content, helpMsg: `Dump the contents of a range of memory given either a virtual or physical address.

	content v <start> <end>
	content p <start> <end>

Bounds are hexadecimal; end is exclusive. Physical mode reads through the
kernel direct map and prints each word with both its physical and virtual
address. Virtual mode translates each page in the range; an unmapped page
aborts the dump.`},
		{aliases: []string{"si", "step"}, cmdFn: c.step, helpMsg: `Execute one instruction of the suspended context.

	si

Sets the single-step trap flag in the suspended context's saved flag
register and resumes it. The monitor regains control at the trap taken after
the next instruction.`},
		{aliases: []string{"c", "continue"}, cmdFn: c.cont, helpMsg: `Resume the suspended context.

	c

Clears the single-step trap flag and resumes the suspended context.
Execution proceeds until the next trap.`},
		{aliases: []string{"funcs"}, cmdFn: c.funcs, helpMsg: `Print the kernel functions matching a prefix.

	funcs [<prefix>]

Without an argument every known function is listed.`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration
file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: "Exit the monitor."},
	}

	return c
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
}

// Merge takes aliases defined in the config struct and merges them with the
// default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

// tokenize splits one input line into arguments. Empty input yields no
// arguments; more than maxArgs is a reported, non-fatal error.
func tokenize(cmdstr string) ([]string, error) {
	cmdstr = strings.TrimSpace(cmdstr)
	if cmdstr == "" {
		return nil, nil
	}
	v, err := argv.Argv(cmdstr,
		func(s string) (string, error) {
			return "", fmt.Errorf("backtick not supported in %q", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal command line %q", cmdstr)
	}
	args := v[0]
	if len(args) > maxArgs {
		return nil, fmt.Errorf("too many arguments (max %d)", maxArgs)
	}
	return args, nil
}

// Call takes one input line and executes it against the suspended context
// tf (nil outside a trap).
func (c *Commands) Call(cmdstr string, t *Term, tf *proc.TrapFrame) error {
	args, err := tokenize(cmdstr)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	if logflags.Monitor() {
		logflags.MonitorLogger().Debugf("dispatch %q", args)
	}
	for _, cmd := range c.cmds {
		if cmd.match(args[0]) {
			return cmd.cmdFn(t, callContext{TF: tf}, args[1:])
		}
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func (c *Commands) help(t *Term, ctx callContext, args []string) error {
	if len(args) > 0 {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args[0] {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return fmt.Errorf("unknown command %q", args[0])
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")
	w := new(tabwriter.Writer)
	w.Init(t.stdout, 0, 8, 0, '-', 0)
	for _, cmd := range c.cmds {
		h := cmd.helpMsg
		if idx := strings.Index(h, "\n"); idx >= 0 {
			h = h[:idx]
		}
		if len(cmd.aliases) > 1 {
			fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
		} else {
			fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func (c *Commands) kerninfo(t *Term, ctx callContext, args []string) error {
	lay := c.target.Layout
	if lay == nil {
		return errors.New("kernel layout not available")
	}
	fmt.Fprintln(t.stdout, "Special kernel symbols:")
	fmt.Fprintf(t.stdout, "  _start %08x (phys)\n", lay.Start)
	fmt.Fprintf(t.stdout, "  entry  %08x (virt)  %08x (phys)\n", lay.Entry, lay.Entry-proc.KernBase)
	fmt.Fprintf(t.stdout, "  etext  %08x (virt)  %08x (phys)\n", lay.Etext, lay.Etext-proc.KernBase)
	fmt.Fprintf(t.stdout, "  edata  %08x (virt)  %08x (phys)\n", lay.Edata, lay.Edata-proc.KernBase)
	fmt.Fprintf(t.stdout, "  end    %08x (virt)  %08x (phys)\n", lay.End, lay.End-proc.KernBase)
	footprint := (lay.End - lay.Entry + 1023) / 1024
	fmt.Fprintf(t.stdout, "Kernel executable memory footprint: %dKB\n", footprint)
	return nil
}

func (c *Commands) backtrace(t *Term, ctx callContext, args []string) error {
	if ctx.TF == nil {
		return errors.New("no suspended context")
	}
	root := c.target.PageRoot()
	it := c.target.NewStackIterator(root, ctx.TF.Regs.Ebp, t.conf.StackDepth())
	fmt.Fprintln(t.stdout, "Stack backtrace:")
	for it.Next() {
		f := it.Frame()
		fmt.Fprintf(t.stdout, "ebp %08x  eip %08x  args %08x %08x %08x %08x %08x\n",
			f.FP, f.Ret, f.Args[0], f.Args[1], f.Args[2], f.Args[3], f.Args[4])
		fmt.Fprintf(t.stdout, "\t%s:%d: %s+%d\n", f.File, f.Line, f.Fn, f.Ret-f.Entry)
	}
	return it.Err()
}

func (c *Commands) showMappings(t *Term, ctx callContext, args []string) error {
	if len(args) < 2 {
		return errors.New("not enough arguments")
	}
	start := parseHex(args[0])
	end := parseHex(args[1])
	if start == 0 || end == 0 || start > end {
		return errors.New("illegal range")
	}

	root := c.target.PageRoot()

	fmt.Fprintln(t.stdout, "virtual addr             frame addr        permissions")
	for va := start; va < end; {
		e, ok := root.Walk(va, false)
		if ok && e.Present() {
			fmt.Fprintf(t.stdout, "0x%08x\t 0x%08x\t\t %s\n", va, e.Frame(), e.FlagString())
		} else {
			fmt.Fprintf(t.stdout, "0x%08x\t page unmapped\n", va)
		}
		if va > ^uint32(0)-proc.PageSize {
			break
		}
		va += proc.PageSize
	}

	return nil
}

func (c *Commands) modifyPerm(t *Term, ctx callContext, args []string) error {
	if len(args) < 2 {
		return errors.New("not enough arguments")
	}

	va := parseHex(args[1])
	if va == 0 {
		return errors.New("illegal address")
	}

	var perm proc.Entry
	if len(args) > 2 {
		var err error
		perm, err = proc.ParsePerm(args[2])
		if err != nil {
			return err
		}
	}

	root := c.target.PageRoot()

	var err error
	op := args[0]
	switch {
	case strings.HasPrefix(op, "s"):
		err = root.SetPerm(va, perm)
	case strings.HasPrefix(op, "cl"):
		err = root.ClearPerm(va)
	case strings.HasPrefix(op, "ch"):
		err = root.TogglePerm(va, perm)
	default:
		return fmt.Errorf("not a valid operation %q", op)
	}
	if err == proc.ErrNoEntry {
		return fmt.Errorf("%#x: page not found", va)
	}
	if err != nil {
		return err
	}
	if logflags.MMU() {
		logflags.MMULogger().Debugf("%s %#08x perm %#x", op, va, perm)
	}
	return nil
}

func (c *Commands) content(t *Term, ctx callContext, args []string) error {
	if len(args) != 3 {
		return errors.New("invalid arguments")
	}

	typ := args[0]
	if typ != "v" && typ != "p" {
		return errors.New("invalid type")
	}

	start := parseHex(args[1])
	end := parseHex(args[2])
	if start == 0 || end == 0 {
		return errors.New("illegal range")
	}
	if start > end {
		return nil
	}

	if typ == "p" {
		for pa := start; pa < end; pa += 4 {
			v, err := c.target.ReadPhys(pa)
			if err != nil {
				return err
			}
			fmt.Fprintf(t.stdout, "pa: 0x%08x\t va: 0x%08x\t content: 0x%08x\n", pa, pa+proc.KernBase, v)
		}
		return nil
	}

	root := c.target.PageRoot()

	for va := start; va < end; {
		e, ok := root.Walk(va, false)
		if !ok {
			return fmt.Errorf("%#x: page not found", va)
		}

		base := proc.PageRoundDown(va)
		off := proc.PageOff(va)
		var endOff uint32 = proc.PageSize
		if proc.PageNum(va) == proc.PageNum(end) {
			endOff = proc.PageOff(end)
		}

		for ; off < endOff; off += 4 {
			v, err := c.target.ReadPhys(e.Frame() + off)
			if err != nil {
				return err
			}
			fmt.Fprintf(t.stdout, "va: 0x%08x\t pa: 0x%08x\t content: 0x%08x\n", base+off, e.Frame()+off, v)
		}

		if base > ^uint32(0)-proc.PageSize {
			break
		}
		va = base + proc.PageSize
	}
	return nil
}

func (c *Commands) step(t *Term, ctx callContext, args []string) error {
	return c.resume(t, ctx, args, true)
}

func (c *Commands) cont(t *Term, ctx callContext, args []string) error {
	return c.resume(t, ctx, args, false)
}

// resume hands the suspended context back to the scheduler with the
// single-step flag set or cleared. A successful resume transfers control
// away for good: the scheduler call returning at all, with or without an
// error, is a fatal condition and must not lead back to the prompt as if
// the command had succeeded.
func (c *Commands) resume(t *Term, ctx callContext, args []string, singleStep bool) error {
	if len(args) != 0 {
		return errors.New("invalid number of parameters")
	}
	if ctx.TF == nil {
		return errors.New("no suspended context")
	}
	if singleStep {
		ctx.TF.Eflags |= proc.FlagTrap
	} else {
		ctx.TF.Eflags &^= proc.FlagTrap
	}
	err := c.target.Resume(ctx.TF)
	if err == nil {
		err = errors.New("scheduler returned control")
	}
	return fmt.Errorf("resume failed: %v", err)
}

// funcLister is implemented by symbolizers that can enumerate their
// functions by name prefix.
type funcLister interface {
	FuncsMatching(prefix string) []proc.FuncSym
}

func (c *Commands) funcs(t *Term, ctx callContext, args []string) error {
	lister, ok := c.target.Syms.(funcLister)
	if !ok {
		return errors.New("function listing not supported by this symbol table")
	}
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	for _, fn := range lister.FuncsMatching(prefix) {
		fmt.Fprintf(t.stdout, "0x%08x %s\n", fn.Entry, fn.Name)
	}
	return nil
}

func exitCommand(t *Term, ctx callContext, args []string) error {
	return ExitRequestError{}
}

// parseHex parses a hexadecimal address, with or without a 0x prefix. A
// parse failure yields zero, which callers reject: address zero is not a
// targetable value, a limitation kept from the original convention.
func parseHex(s string) uint32 {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// ExitRequestError is returned when the user exits the monitor.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

// executeFile runs each line of the named file through Call. Empty lines
// and lines starting with '#' are skipped.
func (c *Commands) executeFile(t *Term, name string, tf *proc.TrapFrame) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t, tf); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s:%d: %v\n", name, lineno, err)
		}
	}
	return scanner.Err()
}
