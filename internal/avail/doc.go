// Package avail resolves availability rules into concrete intervals and
// answers "who is free for this interval" queries.
//
// Rules are expanded exactly once, when a user batch commits, bounded by
// the active planning horizon (the union of all known slot intervals).
// Exclusion rules (preference −Inf) are subtracted from the expanded
// inclusions. The resulting intervals feed an index organized per user so
// coverage queries cost a binary search, not a scan of every interval.
//
// Coverage is deliberately conservative: a user is available for a slot
// only if a single availability interval fully contains the slot's
// interval. Partial coverage and stitching of adjacent intervals never
// count, because they would imply a staffing continuity nobody declared.
package avail
