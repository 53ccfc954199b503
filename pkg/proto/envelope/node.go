package envelope

import (
	"encoding/xml"
	"strings"
)

// Node is a generic XML element. Answers differ per method, so they are kept
// as a tree and read by path.
type Node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []*Node    `xml:",any"`
}

func (n *Node) Name() string {
	if n == nil {
		return ""
	}
	return n.XMLName.Local
}

// Child returns the first child element called name.
func (n *Node) Child(name string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			return c
		}
	}
	return nil
}

// ChildrenNamed returns every child element called name.
func (n *Node) ChildrenNamed(name string) (nodes []*Node) {
	if n == nil {
		return
	}
	for _, c := range n.Children {
		if c.XMLName.Local == name {
			nodes = append(nodes, c)
		}
	}
	return
}

// Path walks down the first matching child at every step.
func (n *Node) Path(names ...string) *Node {
	cur := n
	for _, name := range names {
		if cur = cur.Child(name); cur == nil {
			return nil
		}
	}
	return cur
}

func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Value is the trimmed character data of the node.
func (n *Node) Value() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.Text)
}
