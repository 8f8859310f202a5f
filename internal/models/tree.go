// Package models contains data structures shared by the tree builder, the
// capability issuer and the HTTP handlers
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// NodeType distinguishes files from synthetic folders
type NodeType string

const (
	NodeFile   NodeType = "file"
	NodeFolder NodeType = "folder"
)

// Node is either a FileNode (Key, Size, LastModified) or a FolderNode
// (Prefix, Children). Folders are never stored; they are derived from the
// common prefixes of a delimited listing.
type Node struct {
	Type NodeType

	Key          string
	Size         int64
	LastModified *time.Time

	Prefix   string
	Children []Node
	// Error is set when the folder's own listing failed and the rest of the
	// tree was still returned.
	Error string
	// Truncated is set when the folder sits beyond the configured max depth.
	Truncated bool
}

// Tree is the ordered top-level sequence of nodes for one root prefix.
// Trees handed out by the builder or the cache must not be mutated.
type Tree []Node

// NewFileNode builds a leaf from listing metadata. A zero lastModified is omitted.
func NewFileNode(key string, size int64, lastModified time.Time) Node {
	n := Node{Type: NodeFile, Key: key, Size: size}
	if !lastModified.IsZero() {
		t := lastModified
		n.LastModified = &t
	}
	return n
}

// NewFolderNode builds a folder for a common prefix
func NewFolderNode(prefix string, children []Node) Node {
	return Node{Type: NodeFolder, Prefix: prefix, Children: children}
}

// IsFolder reports whether n is a folder
func (n Node) IsFolder() bool {
	return n.Type == NodeFolder
}

// Path returns the key of a file or the prefix of a folder
func (n Node) Path() string {
	if n.IsFolder() {
		return n.Prefix
	}
	return n.Key
}

// Name is the last path segment, without the folder's trailing slash
func (n Node) Name() string {
	return BaseName(n.Path())
}

type fileJSON struct {
	Type         NodeType   `json:"type"`
	Key          string     `json:"key"`
	Size         int64      `json:"size"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

type folderJSON struct {
	Type      NodeType `json:"type"`
	Prefix    string   `json:"prefix"`
	Children  []Node   `json:"children"`
	Error     string   `json:"error,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
}

// MarshalJSON emits the file or folder shape depending on Type
func (n Node) MarshalJSON() ([]byte, error) {
	if n.IsFolder() {
		children := n.Children
		if children == nil {
			children = []Node{}
		}
		return json.Marshal(folderJSON{
			Type:      NodeFolder,
			Prefix:    n.Prefix,
			Children:  children,
			Error:     n.Error,
			Truncated: n.Truncated,
		})
	}
	return json.Marshal(fileJSON{
		Type:         NodeFile,
		Key:          n.Key,
		Size:         n.Size,
		LastModified: n.LastModified,
	})
}

// UnmarshalJSON accepts either shape
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type         NodeType   `json:"type"`
		Key          string     `json:"key"`
		Size         int64      `json:"size"`
		LastModified *time.Time `json:"lastModified"`
		Prefix       string     `json:"prefix"`
		Children     []Node     `json:"children"`
		Error        string     `json:"error"`
		Truncated    bool       `json:"truncated"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node{
		Type:         raw.Type,
		Key:          raw.Key,
		Size:         raw.Size,
		LastModified: raw.LastModified,
		Prefix:       raw.Prefix,
		Children:     raw.Children,
		Error:        raw.Error,
		Truncated:    raw.Truncated,
	}
	return nil
}

// Folders returns the folder nodes at the top level of the tree
func (t Tree) Folders() []Node {
	var out []Node
	for _, n := range t {
		if n.IsFolder() {
			out = append(out, n)
		}
	}
	return out
}

// Find looks up a file key or folder prefix anywhere in the tree
func (t Tree) Find(path string) (Node, bool) {
	for _, n := range t {
		if n.Path() == path {
			return n, true
		}
		if n.IsFolder() && strings.HasPrefix(path, n.Prefix) {
			if found, ok := Tree(n.Children).Find(path); ok {
				return found, true
			}
		}
	}
	return Node{}, false
}

// Walk visits every node depth-first, passing the prefix of the enclosing
// folder (the tree's root prefix for top-level nodes).
func (t Tree) Walk(root string, fn func(parent string, n Node)) {
	for _, n := range t {
		fn(root, n)
		if n.IsFolder() {
			Tree(n.Children).Walk(n.Prefix, fn)
		}
	}
}
