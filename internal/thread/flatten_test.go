package thread

import (
	"strconv"
	"testing"

	"github.com/kerosindigital/bsky.link/internal/model"
)

func node(handle, text string, replies ...*model.ThreadNode) *model.ThreadNode {
	return &model.ThreadNode{
		Post:    &model.PostView{Author: model.Author{Handle: handle}, Record: model.PostRecord{Text: text}},
		Replies: replies,
	}
}

func texts(nodes []*model.ThreadNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Post.Record.Text)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFlattenPrunesOtherAuthorsSubtrees(t *testing.T) {
	root := node("x", "root",
		node("x", "x-child", node("x", "x-grandchild")),
		node("y", "y-child", node("x", "x-under-y")),
	)
	got := texts(Flatten([]*model.ThreadNode{root}, "x"))
	want := []string{"root", "x-child", "x-grandchild"}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestFlattenPreOrderAndSiblingOrder(t *testing.T) {
	replies := []*model.ThreadNode{
		node("a", "1", node("a", "1.1", node("a", "1.1.1")), node("a", "1.2")),
		node("b", "2"),
		node("a", "3", node("a", "3.1")),
	}
	got := texts(Flatten(replies, "a"))
	want := []string{"1", "1.1", "1.1.1", "1.2", "3", "3.1"}
	if !equal(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestFlattenDepthGuard(t *testing.T) {
	var chain *model.ThreadNode
	for i := 24; i >= 0; i-- {
		if chain == nil {
			chain = node("a", strconv.Itoa(i))
		} else {
			chain = node("a", strconv.Itoa(i), chain)
		}
	}
	got := Flatten([]*model.ThreadNode{chain}, "a")
	if len(got) != MaxDepth {
		t.Fatalf("expected %d nodes, got %d", MaxDepth, len(got))
	}
	if got[0].Post.Record.Text != "0" || got[len(got)-1].Post.Record.Text != "19" {
		t.Fatalf("unexpected bounds: %v", texts(got))
	}
}

func TestFlattenSkipsMissingPostsAndKeepsInput(t *testing.T) {
	child := node("a", "child")
	root := node("a", "root", &model.ThreadNode{NotFound: true}, nil, child)
	before := len(root.Replies)
	got := Flatten([]*model.ThreadNode{root, {Blocked: true}}, "a")
	if !equal(texts(got), []string{"root", "child"}) {
		t.Fatalf("got %v", texts(got))
	}
	if got[0] != root || got[1] != child {
		t.Fatalf("output must reference input nodes")
	}
	if len(root.Replies) != before {
		t.Fatalf("input mutated")
	}
}

func TestFlattenEmpty(t *testing.T) {
	if got := Flatten(nil, "a"); len(got) != 0 {
		t.Fatalf("expected nothing, got %d", len(got))
	}
	// postless nodes carry no author, so an empty author matches nothing
	if got := Flatten([]*model.ThreadNode{{NotFound: true}, {Blocked: true}}, ""); len(got) != 0 {
		t.Fatalf("postless nodes kept: %d", len(got))
	}
}
