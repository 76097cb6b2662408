// Package cvconsensus contains the consensus domain types
// that flow through the value store.
//
// The store treats every type here as opaque data:
// it never validates signatures or recomputes value IDs on load.
// The consensus engine is responsible for only handing the store
// values it has already accepted.
package cvconsensus
