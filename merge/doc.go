// Package merge reconciles record collections edited on disconnected clients
// against the stored collections.
//
// Records are matched by id. For a shared id the record with the strictly
// later updatedAt wins; a record without updatedAt never displaces one that
// has it, and when neither has one the stored record is kept. Records without
// an id never enter the output. Results are ordered by date, most recent
// first, so the output does not depend on merge order.
//
// Only the record collections are merged. Every other field of an incoming
// document replaces the stored value wholesale.
package merge
