package registrar

import (
	"strconv"
	"strings"

	"github.com/zurustar/gb28181registrar/internal/parser"
)

// headerParam extracts a ";name=value" parameter from a header value,
// the same convention the transaction package uses for tag= and branch=.
func headerParam(header, name string) (string, bool) {
	if header == "" {
		return "", false
	}
	prefix := name + "="
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, prefix) {
			return strings.Trim(strings.TrimPrefix(part, prefix), `"`), true
		}
	}
	return "", false
}

// toURIUser extracts the user part of a To header's URI, e.g. "34020000001320000001"
// out of `<sip:34020000001320000001@3402000000>`.
func toURIUser(toHeader string) string {
	start := strings.Index(toHeader, "sip:")
	if start == -1 {
		start = strings.Index(toHeader, "sips:")
		if start == -1 {
			return ""
		}
		start += len("sips:")
	} else {
		start += len("sip:")
	}

	rest := toHeader[start:]
	if end := strings.IndexAny(rest, ">;"); end != -1 {
		rest = rest[:end]
	}
	at := strings.Index(rest, "@")
	if at == -1 {
		return ""
	}
	return rest[:at]
}

// toURIHost extracts the host part of a To header's URI.
func toURIHost(toHeader string) string {
	start := strings.Index(toHeader, "sip:")
	if start == -1 {
		start = strings.Index(toHeader, "sips:")
		if start == -1 {
			return ""
		}
		start += len("sips:")
	} else {
		start += len("sip:")
	}

	rest := toHeader[start:]
	at := strings.Index(rest, "@")
	if at != -1 {
		rest = rest[at+1:]
	}
	end := strings.IndexAny(rest, ">;:")
	if end == -1 {
		end = len(rest)
	}
	return rest[:end]
}

// requestedExpiry implements the registrar's expiry-resolution rule: the
// first Contact header's expires parameter wins; failing that, the
// request's top-level Expires header; failing that, unspecified (-1).
func requestedExpiry(req *parser.SIPMessage) int {
	contact := req.GetHeader(parser.HeaderContact)
	if value, ok := headerParam(contact, "expires"); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}

	if expires := req.GetHeader(parser.HeaderExpires); expires != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(expires)); err == nil {
			return n
		}
	}

	return -1
}
