// Package realtime pushes committed profile changes to every live session of
// the owning user.
//
// The Hub is the server-side fan-out; command handlers publish to it through
// types.ChangePublisher and the websocket endpoint subscribes to it. Clients
// consume the stream through a Notifier, which owns one Subscription on a
// Channel (the in-process Hub or a WSChannel) and re-establishes it after a
// timeout or when the host reports the network is back.
package realtime
