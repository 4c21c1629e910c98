// Package rfc9111 contains the parts of HTTP caching (RFC 9111) and the
// related HTTP semantics (RFC 9110) that the page resolver relies on:
// HTTP-date handling, Cache-Control generation and parsing, and the
// evaluation of conditional requests.
//
// Files are named after the section of the standard they implement and
// quote the relevant text with a leading "§".
package rfc9111
