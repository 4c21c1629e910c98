package rfc9111

import (
	"net/http"
	"strings"
	"time"
)

// §  4.3.2.  Handling a Received Validation Request
// §
// §     Each client in the request chain may have its own cache, so it is
// §     common for a cache at an intermediary to receive conditional requests
// §     from other (outbound) caches.  Likewise, some user agents make use of
// §     conditional requests to limit data transfers to recently modified
// §     representations or to complete the transfer of a partially retrieved
// §     representation.
// §
// §     The proper evaluation of conditional requests by a cache depends on
// §     the received precondition header fields and their precedence.  In
// §     summary, the If-Match and If-Unmodified-Since conditional header
// §     fields are not applicable to a cache, and If-None-Match takes
// §     precedence over If-Modified-Since.  See Section 13.2.2 of [HTTP] for
// §     a complete specification of precondition precedence.

// NotModified reports whether the validators in the request header show that the
// client already holds the representation identified by etag and lastModified.
// If-None-Match is evaluated when present, otherwise If-Modified-Since is.
func NotModified(header http.Header, etag string, lastModified time.Time) bool {
	// §     A request containing an If-None-Match header field (Section 13.1.2 of
	// §     [HTTP]) indicates that the client wants to validate one or more of
	// §     its own stored responses in comparison to the stored response chosen
	// §     by the cache (as per Section 4).
	if values := header.Values("If-None-Match"); len(values) > 0 {
		return noneMatchFails(values, etag)
	}
	// §     If an If-None-Match header field is not present, a request containing
	// §     an If-Modified-Since header field (Section 13.1.3 of [HTTP])
	// §     indicates that the client wants to validate one or more of its own
	// §     stored responses by modification date.
	if ims := header.Get("If-Modified-Since"); ims != "" {
		return notModifiedSince(ims, lastModified)
	}
	return false
}

// noneMatchFails evaluates the If-None-Match precondition.
// It returns true when the condition is false, i.e. one of the listed tags matches.
//
// §  13.1.2.  If-None-Match
// §
// §       If-None-Match = "*" / #entity-tag
// §
// §     A recipient MUST use the weak comparison function when comparing
// §     entity tags for If-None-Match (Section 8.8.3.2), since weak entity
// §     tags can be used for cache validation even if there have been changes
// §     to the representation data.
// §
// §     1.  If the field value is "*", the condition is false if the origin
// §         server has a current representation for the target resource.
// §
// §     2.  If the field value is a list of entity tags, the condition is
// §         false if one of the listed tags matches the entity tag of the
// §         selected representation.
func noneMatchFails(values []string, etag string) bool {
	for _, value := range values {
		for _, candidate := range strings.Split(value, ",") {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			if candidate == "*" {
				return true
			}
			if etag != "" && weakMatch(candidate, etag) {
				return true
			}
		}
	}
	return false
}

// weakMatch compares two entity tags with the weak comparison function.
// Stored tags are opaque and may lack the surrounding quotes, so both sides
// are reduced to their opaque part.
//
// §  8.8.3.2.  Comparison
// §
// §     Weak comparison: two entity tags are equivalent if their opaque-tags
// §     match character-by-character, regardless of either or both being
// §     tagged as "weak".
func weakMatch(a, b string) bool {
	return opaqueTag(a) == opaqueTag(b)
}

func opaqueTag(tag string) string {
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, "\"")
}

// notModifiedSince evaluates the If-Modified-Since precondition.
//
// §  13.1.3.  If-Modified-Since
// §
// §     A recipient MUST ignore the If-Modified-Since header field if the
// §     received field value is not a valid HTTP-date, the field value has
// §     more than one member, or if the request method is neither GET nor
// §     HEAD.
// §
// §     2.  If the selected representation's last modification date is
// §         earlier or equal to the date provided in the field value, the
// §         condition is false.
//
// The request method is not checked here, callers decide which requests are
// eligible for validation.
func notModifiedSince(ims string, lastModified time.Time) bool {
	if lastModified.IsZero() {
		return false
	}
	since, err := HttpDate(ims)
	if err != nil {
		return false
	}
	return !lastModified.Truncate(time.Second).After(since)
}
