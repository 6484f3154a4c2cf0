// Package wire implements the small subset of HTTP/1.1 spoken by the
// file drop server: reading a complete request off a raw connection,
// parsing it, the cookie wire format, and rendering responses.
package wire
