package state

import "github.com/capiweb/capishare/internal/models"

// MenuTarget is what the context menu was opened on.
type MenuTarget string

const (
	TargetFile       MenuTarget = "file"
	TargetFolder     MenuTarget = "folder"
	TargetBackground MenuTarget = "background"
)

// ContextMenu is the open/closed state of the context menu. Node is nil for
// the background target.
type ContextMenu struct {
	Open   bool
	X, Y   int
	Target MenuTarget
	Node   models.Node
}

// NewContextMenu builds an open menu at (x, y) for node, or for the
// background when node is nil.
func NewContextMenu(x, y int, node models.Node) ContextMenu {
	m := ContextMenu{Open: true, X: x, Y: y, Target: TargetBackground}
	if node != nil {
		m.Node = node
		m.Target = TargetFile
		if node.Kind() == models.KindFolder {
			m.Target = TargetFolder
		}
	}
	return m
}
