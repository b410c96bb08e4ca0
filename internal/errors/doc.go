// Package errors provides structured, coded error messages for the Shiny
// client.
//
// Each error carries a code (e.g. "E211") that maps to a short message, a
// longer explanation and a documentation URL. Codes are grouped by
// category:
//   - init: client startup failures
//   - protocol: malformed or unroutable messages
//   - transport: connection and reconnection failures
//   - dependency: script and stylesheet loading
//   - binding: input and output adapter failures
//   - config: configuration files and environment
//   - cli: command line usage
//
// # Usage
//
//	err := errors.New("E211").
//	    WithDetail("3 consecutive attempts failed").
//	    Wrap(lastErr)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E211: Reconnection attempts exhausted
//	//
//	//   3 consecutive attempts failed
//	//
//	//   Hint: Reload the page to start a new session
//	//
//	//   Learn more: https://shiny.posit.co/errors/E211
package errors
