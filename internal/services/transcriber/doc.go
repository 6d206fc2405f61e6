// Package transcriber is the HTTP client for the external speech-to-text
// service. Audio is uploaded as multipart form data; the response carries the
// full text plus timed segments callers can stream.
package transcriber
