// Package entity defines the canonical scheduling data model: ids,
// time intervals, slots, tasks, users, and availability rules.
//
// Two shapes exist for every entity kind:
//
//   - The external spec (SlotSpec, TaskSpec, UserSpec): optional fields,
//     submitted by clients in batches.
//   - The canonical entity (Slot, Task, User): required fields, id
//     assigned, produced only by validation + defaulting.
//
// The translation is an explicit function (Validate* in spec.go), never
// embedding or inheritance. Canonical entities are immutable once
// committed to a store.
package entity
