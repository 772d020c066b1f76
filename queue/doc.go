// Package queue implements the client-resident mutation queue. Writes made
// while the server is unreachable are stored durably in sqlite and replayed
// in submission order once connectivity returns.
//
// A mutation moves through pending, in_flight and then either acknowledged
// (removed from the store) or failed. Failed mutations return to the flush
// after an exponential backoff. Once MaxAttempts transient failures have been
// reached, or the transport reports a permanent failure, the mutation is
// marked stuck. Stuck mutations are surfaced to the user, never retried
// automatically, and block later mutations naming any profile they name.
// A sync mutation carries every profile of the sync it replays, so a queued
// full sync retires exactly the profiles it leaves out.
package queue
