// Package command exposes go-command compatible handlers for the profile
// write paths: multi-profile sync, single-slot save and repair. Commands are
// wired by the service layer and can be invoked by any transport.
package command
