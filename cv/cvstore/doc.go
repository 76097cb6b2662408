// Package cvstore contains the consensus value store.
//
// Backends implement [ValueStore], the capability interface
// covering decided values, undecided proposals, and schema verification.
// Callers do not hold a backend directly;
// they hold a [Store], which wraps any ValueStore behind one concrete handle type.
// A Store may be copied freely and used from many goroutines;
// all copies share the same backend.
//
// Absence is never an error in this package:
// an undecided height, an empty round, or an empty store
// are reported through boolean or empty results.
package cvstore
