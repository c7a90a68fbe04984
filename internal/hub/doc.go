// Package hub relays transcode job state to interested clients.
//
// Connections subscribe to media ids; the job registry calls Publish on
// every transition and the hub pushes the current state to each
// subscriber. WebSocket connections are served with gorilla/websocket,
// one buffered send queue per connection so a slow client only loses its
// own updates.
package hub
