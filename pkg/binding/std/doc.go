// Package std provides the built-in input and output adapters.
//
// Register installs every adapter at its default priority:
//
//	std.Register(inputs, outputs)
package std
