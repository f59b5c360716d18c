// Package list implements the intrusive circular doubly-linked list used
// to thread slabs through a cache's full/partial/free rings.
//
// Nodes are embedded by value in the structure they belong to (mirroring
// allocator/slab.rs's ListNode and mazboot's heapSegment list) — the list
// itself never allocates and owns nothing. Every operation here acts on
// pointers to nodes that already live at a stable address; callers must
// not move a linked node.
package list

// Node is one link in a circular doubly-linked ring. A Node used as a
// ring head is initialized with Init and is "empty" until something is
// Added to it.
type Node struct {
	Next *Node
	Prev *Node
}

// Init makes node a self-referential, empty ring head.
func Init(node *Node) {
	node.Next = node
	node.Prev = node
}

// Add splices entry between head and head.Next, i.e. inserts entry at
// the front of the ring rooted at head. No ordering among peers is
// implied or preserved.
func Add(entry, head *Node) {
	entry.Next = head.Next
	entry.Prev = head
	head.Next.Prev = entry
	head.Next = entry
}

// Del unlinks entry from whatever ring it is a member of. entry's own
// pointers are left stale; callers must not dereference them afterward.
func Del(entry *Node) {
	entry.Prev.Next = entry.Next
	entry.Next.Prev = entry.Prev
}

// Empty reports whether head has no linked members.
func Empty(head *Node) bool {
	return head.Next == head
}
