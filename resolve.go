package moody

import (
	"github.com/etianen/moody-templates/ast"
	"github.com/etianen/moody-templates/errortypes"
)

// resolveInheritance flattens a template's extends chain into a single tree.
// It first follows the extends references up to the root ancestor, then works
// back down: starting from the root's tree, each descendant's blocks are
// substituted in turn, ending with the requested template's own. Merging in
// chain order means a block override survives even when the templates between
// it and its definition never mention that block. The load callback supplies
// parent trees by name; a nil callback fails the first extends with a
// NotFoundError.
//
// Input trees are never mutated. Merging shares unchanged subtrees between
// the input and the result, building new nodes only along substituted paths,
// so parsed trees may be cached and resolved against many parents.
func resolveInheritance(name string, tree *ast.ListNode, load func(name string) (*ast.ListNode, error)) (*ast.ListNode, error) {
	var names = []string{name}
	var trees = []*ast.ListNode{tree}
	var seen = map[string]bool{name: true}
	for {
		var ext = extendsNode(trees[len(trees)-1])
		if ext == nil {
			break
		}
		if seen[ext.Name] {
			return nil, errortypes.NewCircularError(append(names, ext.Name)...)
		}
		if load == nil {
			return nil, errortypes.NewNotFoundError(ext.Name)
		}
		seen[ext.Name] = true
		names = append(names, ext.Name)
		parent, err := load(ext.Name)
		if err != nil {
			return nil, err
		}
		trees = append(trees, parent)
	}
	var working = trees[len(trees)-1]
	for i := len(trees) - 2; i >= 0; i-- {
		working = merge(working, trees[i])
	}
	return working, nil
}

// extendsNode returns the extends tag of a tree, or nil. The parser only
// permits extends at the top level, so no descent is needed.
func extendsNode(tree *ast.ListNode) *ast.ExtendsNode {
	for _, node := range tree.Nodes {
		if ext, ok := node.(*ast.ExtendsNode); ok {
			return ext
		}
	}
	return nil
}

// merge returns the parent tree with the child's blocks substituted into it.
// Content of the child outside its blocks is discarded; the parent decides
// the overall document.
func merge(parent, child *ast.ListNode) *ast.ListNode {
	var blocks = map[string]*ast.BlockNode{}
	collectBlocks(child, blocks)
	return substituteList(parent, blocks)
}

// collectBlocks gathers the blocks defined in a tree by name, outermost
// first. When a name is defined more than once the first definition in
// document order wins. Nodes wrapped by custom tags are opaque and are not
// searched.
func collectBlocks(node ast.Node, blocks map[string]*ast.BlockNode) {
	if block, ok := node.(*ast.BlockNode); ok {
		if _, defined := blocks[block.Name]; !defined {
			blocks[block.Name] = block
		}
	}
	if _, ok := node.(*ast.CustomNode); ok {
		return
	}
	if parent, ok := node.(ast.ParentNode); ok {
		for _, child := range parent.Children() {
			collectBlocks(child, blocks)
		}
	}
}

// substituteList rewrites a node list, replacing overridden blocks. The
// input list is returned unchanged if nothing beneath it was substituted.
func substituteList(list *ast.ListNode, blocks map[string]*ast.BlockNode) *ast.ListNode {
	var nodes = make([]ast.Node, len(list.Nodes))
	var changed = false
	for i, node := range list.Nodes {
		nodes[i] = substituteNode(node, blocks)
		if nodes[i] != node {
			changed = true
		}
	}
	if !changed {
		return list
	}
	return &ast.ListNode{Pos: list.Pos, Nodes: nodes}
}

func substituteNode(node ast.Node, blocks map[string]*ast.BlockNode) ast.Node {
	switch n := node.(type) {
	case *ast.BlockNode:
		if override, ok := blocks[n.Name]; ok {
			// The override replaces this block. Blocks nested in the
			// original body stay overridable through super, so substitute
			// into it before splicing.
			return &ast.BlockNode{
				Pos:    override.Pos,
				Name:   n.Name,
				Origin: override.Origin,
				Body:   spliceSuper(override.Body, substituteList(n.Body, blocks)),
			}
		}
		if body := substituteList(n.Body, blocks); body != n.Body {
			return &ast.BlockNode{Pos: n.Pos, Name: n.Name, Origin: n.Origin, Body: body}
		}
		return n
	case *ast.IfNode:
		var branches = make([]*ast.IfBranchNode, len(n.Branches))
		var changed = false
		for i, branch := range n.Branches {
			if body := substituteList(branch.Body, blocks); body != branch.Body {
				branches[i] = &ast.IfBranchNode{Pos: branch.Pos, Cond: branch.Cond, Body: body}
				changed = true
			} else {
				branches[i] = branch
			}
		}
		if !changed {
			return n
		}
		return &ast.IfNode{Pos: n.Pos, Branches: branches}
	case *ast.ForNode:
		var body = substituteList(n.Body, blocks)
		var empty = n.Empty
		if empty != nil {
			empty = substituteList(empty, blocks)
		}
		if body == n.Body && empty == n.Empty {
			return n
		}
		return &ast.ForNode{Pos: n.Pos, Vars: n.Vars, Expr: n.Expr, Body: body, Empty: empty}
	case *ast.AutoescapeNode:
		if body := substituteList(n.Body, blocks); body != n.Body {
			return &ast.AutoescapeNode{Pos: n.Pos, On: n.On, Body: body}
		}
		return n
	case *ast.ListNode:
		return substituteList(n, blocks)
	}
	return node
}

// spliceSuper rewrites a block override body, replacing each super tag with
// the nodes of the block being overridden. Splicing does not descend into
// nested blocks, whose super tags refer to their own overridden content, nor
// into nodes wrapped by custom tags.
func spliceSuper(body, overridden *ast.ListNode) *ast.ListNode {
	var nodes []ast.Node
	var changed = false
	for _, node := range body.Nodes {
		if _, ok := node.(*ast.SuperNode); ok {
			nodes = append(nodes, overridden.Nodes...)
			changed = true
			continue
		}
		var spliced = spliceSuperNode(node, overridden)
		if spliced != node {
			changed = true
		}
		nodes = append(nodes, spliced)
	}
	if !changed {
		return body
	}
	return &ast.ListNode{Pos: body.Pos, Nodes: nodes}
}

func spliceSuperNode(node ast.Node, overridden *ast.ListNode) ast.Node {
	switch n := node.(type) {
	case *ast.IfNode:
		var branches = make([]*ast.IfBranchNode, len(n.Branches))
		var changed = false
		for i, branch := range n.Branches {
			if body := spliceSuper(branch.Body, overridden); body != branch.Body {
				branches[i] = &ast.IfBranchNode{Pos: branch.Pos, Cond: branch.Cond, Body: body}
				changed = true
			} else {
				branches[i] = branch
			}
		}
		if !changed {
			return n
		}
		return &ast.IfNode{Pos: n.Pos, Branches: branches}
	case *ast.ForNode:
		var body = spliceSuper(n.Body, overridden)
		var empty = n.Empty
		if empty != nil {
			empty = spliceSuper(empty, overridden)
		}
		if body == n.Body && empty == n.Empty {
			return n
		}
		return &ast.ForNode{Pos: n.Pos, Vars: n.Vars, Expr: n.Expr, Body: body, Empty: empty}
	case *ast.AutoescapeNode:
		if body := spliceSuper(n.Body, overridden); body != n.Body {
			return &ast.AutoescapeNode{Pos: n.Pos, On: n.On, Body: body}
		}
		return n
	case *ast.ListNode:
		return spliceSuper(n, overridden)
	}
	return node
}
