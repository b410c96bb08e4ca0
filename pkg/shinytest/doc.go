// Package shinytest provides a scripted reactive server for tests.
//
// Server accepts client sessions on /websocket and serves dependency files
// under /deps/. Each accepted connection is a Session the test drives:
//
//	srv := shinytest.NewServer(t)
//	c := shiny.New(shiny.Config{URL: srv.URL})
//	go c.Start(ctx)
//	s := srv.Accept(t)
//	s.Send(&protocol.Values{Values: map[string]any{"out": "hi"}})
//	upd := s.NextUpdate(t)
//
// Drop severs a connection without a close handshake, which is how tests
// exercise reconnection.
package shinytest
