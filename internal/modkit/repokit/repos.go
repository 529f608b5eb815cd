// Package repokit provides the seams repositories are written against
package repokit

import "seochecker/internal/platform/store"

type (
	// Queryer is the read and write surface of a repo
	Queryer = store.RowQuerier

	// TxRunner can run a function inside a transaction
	TxRunner = store.TxRunner

	// Rows are the result set of a query
	Rows = store.Rows

	// Row is a single row result
	Row = store.Row

	// CommandTag is the result of a write
	CommandTag = store.CommandTag
)
