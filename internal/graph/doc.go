// Package graph maintains the task dependency DAG and derives the
// urgency ordering the assigner consumes.
//
// Tasks live in a dense, index-addressable collection in insertion
// order; dependency edges are lists of indices. Cycle detection runs on
// every insertion with a tricolor depth-first traversal, so the committed
// graph is always acyclic. Effective deadlines are computed by dynamic
// programming over a topological order.
package graph
