// Package thread reduces a post's reply tree to the author's own follow-ups.
package thread

import "github.com/kerosindigital/bsky.link/internal/model"

// MaxDepth is the number of reply levels Flatten will walk. Top-level
// replies are level 0.
const MaxDepth = 20

type frame struct {
	node  *model.ThreadNode
	depth int
}

// Flatten walks replies depth first and returns, in pre-order, every node
// written by author. A node by anyone else is skipped together with its
// whole subtree, as are nodes without a post. Sibling order is preserved and
// the input tree is not modified.
func Flatten(replies []*model.ThreadNode, author string) []*model.ThreadNode {
	var out []*model.ThreadNode
	stack := make([]frame, 0, len(replies))
	stack = pushReversed(stack, replies, 0)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth >= MaxDepth || f.node.AuthorHandle() == "" {
			continue
		}
		if f.node.AuthorHandle() != author {
			continue
		}
		out = append(out, f.node)
		stack = pushReversed(stack, f.node.Replies, f.depth+1)
	}
	return out
}

// pushReversed pushes nodes so that nodes[0] is popped first.
func pushReversed(stack []frame, nodes []*model.ThreadNode, depth int) []frame {
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, frame{node: nodes[i], depth: depth})
	}
	return stack
}
