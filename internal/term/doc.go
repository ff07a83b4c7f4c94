// Package term implements the styled-cell grid and ANSI/VT byte-stream
// processor shared by every session: a Grid (component A) holds the 2-D
// cell buffer, cursor, and dirty/scroll-off tracking; a Processor
// (component B) decodes UTF-8 and CSI/OSC/SGR sequences against a Grid and
// reports mode/title/bell events back to its caller.
package term
