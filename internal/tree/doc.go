// Package tree holds the in-memory node model of an archive index and the
// validated stack builder that assembles it from depth-first entry events.
//
// Nodes are owned by their parent. Once construction completes a tree is
// never mutated, so concurrent lookups need no locking.
package tree
