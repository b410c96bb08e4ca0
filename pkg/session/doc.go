// Package session owns the client's connection to the reactive server.
//
// A Transport dials the server over a WebSocket, announces itself with a
// Hello frame and then runs three goroutines per connection: a reader
// that decodes frames in receipt order and hands them to a Router, a
// writer that batches input values into Update frames, and a heartbeat.
//
// # States
//
//	Connecting → Open → {Reconnecting → Open}* → Closed
//
// Closed is terminal. It is entered by Close, by a server Close frame, or
// when reconnection gives up. Losing the network moves an open transport
// to Reconnecting, where a Reconnector retries with exponential backoff
// while input values wait in a bounded buffer keyed by id. A later value
// for an id replaces the earlier one and moves it to the back, so the
// buffer flushes in the order ids last changed.
//
// # Lifecycle latches
//
// Connected resolves the first time the transport opens. Initialized
// resolves with the session id the first time the server sends Ready.
//
//	t := session.New(session.Config{URL: "ws://localhost:8000/websocket", Router: r})
//	if err := t.Start(ctx); err != nil {
//	    return err
//	}
//	defer t.Close()
//	t.Send("name", "Ada")
package session
