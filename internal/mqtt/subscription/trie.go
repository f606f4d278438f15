// Package subscription implements the topic-segment trie that answers
// "which clients subscribe to this topic?" under MQTT 3.1.1 wildcard
// semantics (`+`, `#`).
package subscription

import "strings"

// ClientID identifies a subscribing client. It mirrors the ClientID alias
// in internal/mqtt/session; both are plain strings, so this package does
// not import session for it.
type ClientID = string

type node struct {
	children map[string]*node
	clients  map[ClientID]struct{}
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

func (n *node) child(segment string) *node {
	c, ok := n.children[segment]
	if !ok {
		c = newNode()
		n.children[segment] = c
	}
	return c
}

// Trie is a rooted topic-segment tree. The zero value is not usable; use
// New. A Trie is not safe for concurrent use — the broker dispatcher is
// its sole owner and serializes all access, per the concurrency model.
type Trie struct {
	root *node
}

// New returns an empty subscription trie.
func New() *Trie {
	return &Trie{root: newNode()}
}

// Subscribe adds client to the node reached by filter's segments,
// creating intermediate nodes as needed. A client appears at most once in
// any single node's client set: subscribing the same client to the same
// filter twice is a no-op the second time (the reference implementation
// this is grounded on does not enforce this — the Go port closes that gap
// rather than carrying it forward).
func (t *Trie) Subscribe(client ClientID, filter string) {
	n := t.root
	for _, segment := range strings.Split(filter, "/") {
		n = n.child(segment)
	}
	if n.clients == nil {
		n.clients = make(map[ClientID]struct{})
	}
	n.clients[client] = struct{}{}
}

// Unsubscribe removes client from the node reached by filter's segments.
// A client not present there, or a filter never subscribed to, is a no-op.
func (t *Trie) Unsubscribe(client ClientID, filter string) {
	n := t.root
	for _, segment := range strings.Split(filter, "/") {
		child, ok := n.children[segment]
		if !ok {
			return
		}
		n = child
	}
	delete(n.clients, client)
}

// RemoveClient removes client from every node in the trie. Used when a
// non-persistent session disconnects: the trie is the sole index for
// subscriptions, so this is the only cleanup required.
func (t *Trie) RemoveClient(client ClientID) {
	removeClientRec(t.root, client)
}

func removeClientRec(n *node, client ClientID) {
	delete(n.clients, client)
	for _, child := range n.children {
		removeClientRec(child, client)
	}
}

// SubscribedClients returns, deduplicated, every client whose filter
// matches topic (a literal topic containing no wildcard segments). A
// client matching via more than one filter appears exactly once, per the
// at-most-once-per-publish delivery requirement.
//
// Matching walks a "frontier" of nodes one topic segment at a time: a
// segment descends into children labeled with the literal segment and
// with "+"; a child labeled "#" contributes all of its clients
// immediately regardless of how many segments remain, since "#" matches
// zero or more trailing segments. After the last segment, the frontier
// nodes' own client sets are added to the result.
func (t *Trie) SubscribedClients(topic string) []ClientID {
	segments := strings.Split(topic, "/")
	result := make(map[ClientID]struct{})

	frontier := []*node{t.root}
	for i, segment := range segments {
		rootFrontier := i == 0 && len(frontier) == 1 && frontier[0] == t.root
		skipWildcards := rootFrontier && strings.HasPrefix(segment, "$")

		var next []*node
		for _, n := range frontier {
			if !skipWildcards {
				if hash, ok := n.children["#"]; ok {
					for c := range hash.clients {
						result[c] = struct{}{}
					}
				}
			}

			if direct, ok := n.children[segment]; ok {
				next = append(next, direct)
			}
			if !skipWildcards {
				if plus, ok := n.children["+"]; ok {
					next = append(next, plus)
				}
			}
		}
		frontier = next
	}

	for _, n := range frontier {
		for c := range n.clients {
			result[c] = struct{}{}
		}
		// "#" also matches zero trailing segments: a filter like "a/#"
		// matches the topic "a" itself, not just topics strictly beneath it.
		if hash, ok := n.children["#"]; ok {
			for c := range hash.clients {
				result[c] = struct{}{}
			}
		}
	}

	clients := make([]ClientID, 0, len(result))
	for c := range result {
		clients = append(clients, c)
	}
	return clients
}
