package registrar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zurustar/gb28181registrar/internal/parser"
)

// minMaxForwards is the sentinel Max-Forwards value the response builder
// resets every outgoing response to.
const minMaxForwards = 70

// ResponseBuilder constructs the registrar's SIP responses, preserving
// the header semantics every REGISTER reply must carry: echoed Via/From/To/
// Call-ID/CSeq, a To-tag, the configured server agent, a reset
// Max-Forwards, and (for 401s) a fresh WWW-Authenticate challenge.
type ResponseBuilder struct {
	serverAgent string
}

// NewResponseBuilder creates a builder that stamps every response with
// serverAgent as its User-Agent header.
func NewResponseBuilder(serverAgent string) *ResponseBuilder {
	return &ResponseBuilder{serverAgent: serverAgent}
}

func (b *ResponseBuilder) base(request *parser.SIPMessage, statusCode int, reason string) *parser.SIPMessage {
	resp := parser.NewResponseMessage(statusCode, reason)

	for _, via := range request.GetHeaders(parser.HeaderVia) {
		resp.AddHeader(parser.HeaderVia, via)
	}
	resp.SetHeader(parser.HeaderFrom, request.GetHeader(parser.HeaderFrom))
	resp.SetHeader(parser.HeaderTo, b.withToTag(request.GetHeader(parser.HeaderTo)))
	resp.SetHeader(parser.HeaderCallID, request.GetHeader(parser.HeaderCallID))
	resp.SetHeader(parser.HeaderCSeq, request.GetHeader(parser.HeaderCSeq))
	resp.SetHeader(parser.HeaderMaxForwards, strconv.Itoa(minMaxForwards))
	resp.SetHeader(parser.HeaderUserAgent, b.serverAgent)

	return resp
}

// withToTag returns toHeader unchanged if it already carries a tag, else
// appends a freshly generated one.
func (b *ResponseBuilder) withToTag(toHeader string) string {
	if _, ok := headerParam(toHeader, "tag"); ok {
		return toHeader
	}
	return toHeader + ";tag=" + uuid.NewString()
}

// OK builds a 200 OK for a successful registration. Each entry of contacts
// is echoed verbatim as a Contact header (the caller is responsible for resolving
// them to either the full binding list or the single sent Contact per the
// user-agent policy table).
func (b *ResponseBuilder) OK(request *parser.SIPMessage, contacts []string) *parser.SIPMessage {
	resp := b.base(request, parser.StatusOK, "OK")
	for _, c := range contacts {
		resp.AddHeader(parser.HeaderContact, c)
	}
	resp.SetHeader(parser.HeaderDate, time.Now().UTC().Format(time.RFC1123))
	return resp
}

// Unauthorized builds a 401 response carrying a fresh WWW-Authenticate
// challenge.
func (b *ResponseBuilder) Unauthorized(request *parser.SIPMessage, challenge string) *parser.SIPMessage {
	resp := b.base(request, parser.StatusUnauthorized, "Unauthorized")
	resp.SetHeader(parser.HeaderWWWAuthenticate, challenge)
	return resp
}

// Forbidden builds a 403 response, optionally carrying the authenticator's
// challenge header if it supplied one.
func (b *ResponseBuilder) Forbidden(request *parser.SIPMessage, reason string, challenge string) *parser.SIPMessage {
	resp := b.base(request, parser.StatusForbidden, reason)
	if challenge != "" {
		resp.SetHeader(parser.HeaderWWWAuthenticate, challenge)
	}
	return resp
}

// BadRequest builds a 400 with the given reason phrase, which the spec
// treats as part of the observable contract (exact reason strings).
func (b *ResponseBuilder) BadRequest(request *parser.SIPMessage, reason string) *parser.SIPMessage {
	return b.base(request, parser.StatusBadRequest, reason)
}

// IntervalTooBrief builds a 423 with Min-Expires set to the configured
// floor.
func (b *ResponseBuilder) IntervalTooBrief(request *parser.SIPMessage, minExpires int) *parser.SIPMessage {
	resp := b.base(request, parser.StatusIntervalTooBrief, "Interval Too Brief")
	resp.SetHeader(parser.HeaderMinExpires, strconv.Itoa(minExpires))
	return resp
}

// Overloaded builds a 480 for a full queue.
func (b *ResponseBuilder) Overloaded(request *parser.SIPMessage) *parser.SIPMessage {
	return b.base(request, parser.StatusTemporarilyUnavailable, "Registrar overloaded, please try again shortly")
}

// InternalError builds a 500 for an uncaught worker failure.
func (b *ResponseBuilder) InternalError(request *parser.SIPMessage) *parser.SIPMessage {
	return b.base(request, parser.StatusServerInternalError, "Internal Server Error")
}

// formatContact renders a Contact header value with a resolved expires
// parameter, replacing any expires= the original carried.
func formatContact(original string, expires int) string {
	uri := original
	if idx := strings.Index(original, ";"); idx != -1 {
		uri = original[:idx]
	}
	return fmt.Sprintf("%s;expires=%d", uri, expires)
}
