// Package client is the Go consumer of the archivist daemon API: a REST
// client for library and daemon operations plus an SSE transport that turns a
// run's event stream into StreamEvents for a subscriber such as the progress
// reducer.
package client
