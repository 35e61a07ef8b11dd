// Package ui renders origctl CLI output.
//
// Output uses Lipgloss styles when stdout is a terminal and falls back to
// plain "Key: value" text otherwise, so that status output can be piped and
// parsed by scripts.
//
// # Components
//
//   - Header: title banner with ordered key/value rows
//   - Result: success/failure box printed after a command
//   - View: snapshot, event and device list rendering
//
// Example:
//
//	view := ui.NewView()
//	fmt.Println(view.Snapshot(client.Snapshot()))
//	for ev := range client.Events() {
//	    fmt.Println(view.Event(time.Now(), ev))
//	}
//
// # Logging Integration
//
// Logging is controlled by the ORIGCTL_LOG_LEVEL environment variable. When
// unset, zap logging is silent and only this package's output is shown.
package ui
