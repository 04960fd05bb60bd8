// Package mode defines run modes and how one is selected per session.
package mode
