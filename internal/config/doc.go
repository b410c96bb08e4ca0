// Package config loads client configuration for the shiny command.
//
// Configuration is read from shiny.json or shiny.yaml in a directory,
// then overlaid with SHINY_* environment variables. Both sources are
// optional; missing values fall back to defaults.
//
// # Configuration File Structure
//
//	url: ws://localhost:8000/websocket
//	devMode: true
//	codec: msgpack
//	logLevel: debug
//	reconnect:
//	  initialDelay: 500ms
//	  maxDelay: 10s
//	  multiplier: 1.5
//	  jitter: 0.5
//	  maxRetries: 3
//	  grace: 250ms
//	deps:
//	  baseURL: http://localhost:8000/
//	  s3Region: us-east-1
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Server:", cfg.URL)
package config
