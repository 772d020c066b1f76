// Package activity provides the sync journal: an append-only log of committed
// profile syncs, saves, repairs and deactivations. The Repository implements
// both the types.ActivitySink write contract and the types.ActivityRepository
// read contract. Payloads are masked with go-masker before they are stored.
package activity
