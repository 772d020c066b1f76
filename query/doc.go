// Package query exposes go-command Querier implementations for the profile
// read paths and the sync journal.
package query
