package proc

import (
	"fmt"
	"sort"

	"github.com/derekparker/trie"
	lru "github.com/hashicorp/golang-lru"
)

// SymInfo describes the function containing a code address.
type SymInfo struct {
	File  string
	Line  int
	Fn    string
	Entry uint32
}

// Symbolizer resolves code addresses to the functions containing them.
type Symbolizer interface {
	PCToLine(pc uint32) (SymInfo, error)
}

// NoSymbolError is returned when a code address falls outside every known
// function.
type NoSymbolError struct {
	PC uint32
}

func (e *NoSymbolError) Error() string {
	return fmt.Sprintf("%#08x: not found", e.PC)
}

// FuncSym is one function in the kernel symbol table. End is exclusive.
type FuncSym struct {
	Name  string
	Entry uint32
	End   uint32
	File  string
	Line  int
}

const symCacheSize = 128

// SymTable resolves code addresses against a fixed set of functions. Lookups
// are binary search over the entry-sorted table, with a small cache in front
// since backtraces resolve the same few return addresses repeatedly.
type SymTable struct {
	funcs []FuncSym
	names *trie.Trie
	cache *lru.Cache
}

// NewSymTable builds a symbol table from the given functions. The input need
// not be sorted.
func NewSymTable(funcs []FuncSym) *SymTable {
	sorted := make([]FuncSym, len(funcs))
	copy(sorted, funcs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Entry < sorted[j].Entry })

	names := trie.New()
	for i := range sorted {
		names.Add(sorted[i].Name, sorted[i])
	}

	cache, _ := lru.New(symCacheSize)
	return &SymTable{funcs: sorted, names: names, cache: cache}
}

// PCToLine resolves the function containing pc.
func (s *SymTable) PCToLine(pc uint32) (SymInfo, error) {
	if cached, ok := s.cache.Get(pc); ok {
		return cached.(SymInfo), nil
	}
	// First function starting above pc; the candidate is the one before it.
	i := sort.Search(len(s.funcs), func(i int) bool { return s.funcs[i].Entry > pc })
	if i == 0 {
		return SymInfo{}, &NoSymbolError{PC: pc}
	}
	fn := s.funcs[i-1]
	if pc >= fn.End {
		return SymInfo{}, &NoSymbolError{PC: pc}
	}
	info := SymInfo{File: fn.File, Line: fn.Line, Fn: fn.Name, Entry: fn.Entry}
	s.cache.Add(pc, info)
	return info, nil
}

// FuncsMatching returns the functions whose name starts with prefix, in
// entry address order. The empty prefix matches every function.
func (s *SymTable) FuncsMatching(prefix string) []FuncSym {
	var out []FuncSym
	for _, name := range s.names.PrefixSearch(prefix) {
		node, ok := s.names.Find(name)
		if !ok {
			continue
		}
		out = append(out, node.Meta().(FuncSym))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entry < out[j].Entry })
	return out
}
