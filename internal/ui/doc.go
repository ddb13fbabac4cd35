// Package ui renders download progress in the terminal using bubbletea's Elm architecture.
//
// [Model] shows one row per requested URL with a spinner while the task starts, a progress
// bar fed by the task's progress events, and a final line with the saved file or the error.
// Messages arrive through the [Msg] union, usually sent by the caller with tea.Program.Send
// from the goroutines that drive each download, so the model itself never blocks.
//
// Keyboard: ↑/k and ↓/j move the selection, x cancels the selected download and q cancels
// everything and quits. Contextual help is rendered with charmbracelet/bubbles/help.
package ui
