// Package catalog maintains the engine's metadata tree and the textual
// delta protocol that mutates it. The surrounding engine applies a delta
// batch, inspects WasAdded flags and accumulated deleted paths to react to
// the changes, and clears that state before the next batch.
package catalog

import (
	"fmt"
	"strings"
)

// Node is one entry in the catalog tree: named fields plus child
// collections of named nodes.
type Node struct {
	Name     string
	Fields   map[string]string
	Children map[string]map[string]*Node

	// WasAdded is set when the node was created by the current delta batch.
	WasAdded bool
}

func newNode(name string) *Node {
	return &Node{
		Name:     name,
		Fields:   make(map[string]string),
		Children: make(map[string]map[string]*Node),
	}
}

// Child returns the named node of a child collection, or nil.
func (n *Node) Child(collection, name string) *Node {
	return n.Children[collection][name]
}

// Catalog is the tree root plus the bookkeeping of the current delta batch.
type Catalog struct {
	root *Node

	// DeletedPaths accumulates the paths removed by the current batch.
	DeletedPaths []string
}

// New creates a catalog holding only the root node.
func New() *Catalog {
	return &Catalog{root: newNode("")}
}

// Root returns the root node.
func (c *Catalog) Root() *Node { return c.root }

// ResolvePath walks a path of the form "/coll[name]/coll[name]" from the
// root. The empty path or "/" resolves to the root.
func (c *Catalog) ResolvePath(path string) (*Node, error) {
	node := c.root
	path = strings.Trim(path, "/")
	if path == "" {
		return node, nil
	}
	for _, seg := range strings.Split(path, "/") {
		open := strings.IndexByte(seg, '[')
		if open < 0 || !strings.HasSuffix(seg, "]") {
			return nil, fmt.Errorf("malformed path segment %q", seg)
		}
		coll := seg[:open]
		name := seg[open+1 : len(seg)-1]
		next := node.Child(coll, name)
		if next == nil {
			return nil, fmt.Errorf("path %q: no %s named %q", path, coll, name)
		}
		node = next
	}
	return node, nil
}

// ApplyDelta applies a newline-separated batch of commands:
//
//	add <parent-path> <collection> <name>
//	set <path> <field> <value>
//	delete <parent-path> <collection> <name>
//
// Added nodes are marked WasAdded; deletions append the removed node's path
// to DeletedPaths. An unknown command or unresolvable path fails the batch.
func (c *Catalog) ApplyDelta(delta string) error {
	for lineNo, line := range strings.Split(delta, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if err := c.applyCommand(fields); err != nil {
			return fmt.Errorf("delta line %d: %w", lineNo+1, err)
		}
	}
	return nil
}

func (c *Catalog) applyCommand(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "add":
		if len(fields) != 4 {
			return fmt.Errorf("add takes <parent> <collection> <name>")
		}
		parent, err := c.ResolvePath(fields[1])
		if err != nil {
			return err
		}
		coll, name := fields[2], fields[3]
		if parent.Child(coll, name) != nil {
			return fmt.Errorf("%s %q already exists under %q", coll, name, fields[1])
		}
		if parent.Children[coll] == nil {
			parent.Children[coll] = make(map[string]*Node)
		}
		node := newNode(name)
		node.WasAdded = true
		parent.Children[coll][name] = node
		return nil

	case "set":
		if len(fields) < 4 {
			return fmt.Errorf("set takes <path> <field> <value>")
		}
		node, err := c.ResolvePath(fields[1])
		if err != nil {
			return err
		}
		node.Fields[fields[2]] = strings.Join(fields[3:], " ")
		return nil

	case "delete":
		if len(fields) != 4 {
			return fmt.Errorf("delete takes <parent> <collection> <name>")
		}
		parent, err := c.ResolvePath(fields[1])
		if err != nil {
			return err
		}
		coll, name := fields[2], fields[3]
		if parent.Child(coll, name) == nil {
			return fmt.Errorf("no %s named %q under %q", coll, name, fields[1])
		}
		delete(parent.Children[coll], name)
		path := strings.TrimSuffix(fields[1], "/") + "/" + coll + "[" + name + "]"
		c.DeletedPaths = append(c.DeletedPaths, path)
		return nil
	}
	return fmt.Errorf("unknown delta command %q", fields[0])
}

// ResetDeltaState clears WasAdded flags and the deleted-path accumulator.
// The engine calls this at the start of every execute batch so the flags
// only ever describe the batch in flight.
func (c *Catalog) ResetDeltaState() {
	c.DeletedPaths = nil
	clearAdded(c.root)
}

func clearAdded(n *Node) {
	n.WasAdded = false
	for _, coll := range n.Children {
		for _, child := range coll {
			clearAdded(child)
		}
	}
}
