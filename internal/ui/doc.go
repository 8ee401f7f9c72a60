// Package ui renders terminal output with [lipgloss] styles: one-line progress updates while a run is in flight and
// a summary once it ends.
//
// [Plain] disables styling for non-terminal output and tests.
package ui
