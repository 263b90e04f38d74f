package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/go-kmon/kmon/pkg/config"
	"github.com/go-kmon/kmon/pkg/proc"
)

const historyFile string = ".kmon_history"

// Term represents the terminal running the monitor.
type Term struct {
	target *proc.Target
	conf   *config.Config
	prompt string
	line   *liner.State
	cmds   *Commands
	dumb   bool
	stdout io.Writer

	// InitFile is executed before the first prompt.
	InitFile string

	historyLoaded bool
}

// New returns a new Term bound to the given target.
func New(target *proc.Target, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	cmds := MonitorCommands(target)
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	var w io.Writer
	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb" || !isatty.IsTerminal(os.Stdout.Fd())
	if dumb {
		w = os.Stdout
	} else {
		w = colorable.NewColorableStdout()
	}

	return &Term{
		target: target,
		conf:   conf,
		prompt: "K> ",
		line:   liner.NewLiner(),
		cmds:   cmds,
		dumb:   dumb,
		stdout: w,
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// Run starts the monitor loop. tf is the suspended context that trapped into
// the monitor, or nil when the monitor is entered at boot. The loop blocks
// on line input and ends only on an explicit exit or end of input.
func (t *Term) Run(tf *proc.TrapFrame) (int, error) {
	defer t.Close()

	// Complete command names from a trie over the registered aliases.
	completions := trie.New()
	for _, cmd := range t.cmds.cmds {
		for _, alias := range cmd.aliases {
			completions.Add(alias, nil)
		}
	}
	t.line.SetCompleter(func(line string) []string {
		return completions.PrefixSearch(strings.ToLower(line))
	})

	t.loadHistory()

	fmt.Fprintln(t.stdout, "Welcome to the kmon kernel monitor!")
	fmt.Fprintln(t.stdout, "Type 'help' for a list of commands.")
	if tf != nil {
		tf.Print(t.stdout)
	}

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile, tf)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("prompt for input failed: %v", err)
		}

		if err := t.cmds.Call(cmdstr, t, tf); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

func (t *Term) loadHistory() {
	if t.historyLoaded {
		return
	}
	t.historyLoaded = true
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
		return
	}
	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
			return
		}
	}
	t.line.ReadHistory(f)
	f.Close()
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
		return 0, nil
	}
	if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR, 0666); err == nil {
		_, err = t.line.WriteHistory(f)
		if err != nil {
			fmt.Println("readline history error:", err)
		}
		f.Close()
	}
	return 0, nil
}
