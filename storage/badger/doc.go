// Package badger provides BadgerDB-backed implementations of the store
// interfaces: task ledger, graph store, vector index, full-text index,
// metadata store, and workflow checkpoints. All stores share a single
// Backend and serialize their values with the MUS format.
package badger
