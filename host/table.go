// Package host implements the host side of the import boundary: the table
// of Go functions a bytecode image may import, and the functions themselves.
package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/mvmhost/mvmhost/types"
)

// Host function IDs used by the end-to-end test images.
const (
	PrintID       types.HostFunctionID = 1
	AssertID      types.HostFunctionID = 2
	AssertEqualID types.HostFunctionID = 3
	GetHeapUsedID types.HostFunctionID = 4
	RunGCID       types.HostFunctionID = 5
)

// Entry registers Fn under ID.
type Entry struct {
	ID types.HostFunctionID
	Fn types.HostFunction
}

func entryLess(a, b Entry) bool {
	return a.ID < b.ID
}

const tableDegree = 8

// Table is an immutable mapping from host function IDs to host functions.
// It implements types.Resolver. All methods are safe for concurrent use.
type Table struct {
	// mu guards cloning. Clone resets the copy-on-write state of the tree it
	// is called on.
	mu   sync.Mutex
	tree *btree.BTreeG[Entry]
}

var _ types.Resolver = (*Table)(nil)

// NewTable builds a table. IDs must be unique and every entry must carry a
// function.
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{tree: btree.NewG(tableDegree, entryLess)}
	if err := t.insert(entries); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNewTable is like NewTable but panics on error. It is meant for tables
// defined at package level.
func MustNewTable(entries ...Entry) *Table {
	t, err := NewTable(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) insert(entries []Entry) error {
	for _, e := range entries {
		if e.Fn == nil {
			return fmt.Errorf("host function %d: nil function", e.ID)
		}
		if _, dup := t.tree.ReplaceOrInsert(e); dup {
			return fmt.Errorf("host function %d: registered twice", e.ID)
		}
	}
	return nil
}

// With returns a new table holding t's entries plus the given ones. t is not
// modified.
func (t *Table) With(entries ...Entry) (*Table, error) {
	t.mu.Lock()
	nt := &Table{tree: t.tree.Clone()}
	t.mu.Unlock()
	if err := nt.insert(entries); err != nil {
		return nil, err
	}
	return nt, nil
}

// Resolve returns the function registered under id, or
// types.ErrUnresolvedImport.
func (t *Table) Resolve(id types.HostFunctionID) (types.HostFunction, error) {
	e, ok := t.tree.Get(Entry{ID: id})
	if !ok {
		return nil, fmt.Errorf("host function %d: %w", id, types.ErrUnresolvedImport)
	}
	return e.Fn, nil
}

// Len returns the number of registered functions.
func (t *Table) Len() int {
	return t.tree.Len()
}

// IDs returns the registered IDs in ascending order.
func (t *Table) IDs() []types.HostFunctionID {
	ids := make([]types.HostFunctionID, 0, t.tree.Len())
	t.tree.Ascend(func(e Entry) bool {
		ids = append(ids, e.ID)
		return true
	})
	return ids
}

var defaultTable = MustNewTable(
	Entry{ID: PrintID, Fn: Print},
	Entry{ID: AssertID, Fn: Assert},
	Entry{ID: AssertEqualID, Fn: AssertEqual},
	Entry{ID: GetHeapUsedID, Fn: GetHeapUsed},
	Entry{ID: RunGCID, Fn: RunGC},
)

// DefaultTable returns the table with every host function in this package.
// It is shared; extend it with With.
func DefaultTable() *Table {
	return defaultTable
}

// IsUnresolved reports whether err is an unresolved import failure.
func IsUnresolved(err error) bool {
	return errors.Is(err, types.ErrUnresolvedImport)
}
