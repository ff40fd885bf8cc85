// package events contains message types shared between web and tui packages.
package events

// WebListenURLMsg is sent when the web server starts listening.
type WebListenURLMsg struct{ URL string }

// QueryStartedMsg is sent by the web server after the query is started over
// HTTP.
type QueryStartedMsg struct{}
