package parser

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// SIP Methods. The registrar only ever receives REGISTER (what it's for)
// and OPTIONS (keepalive pings from GB28181 devices); any other method fails
// IsValidMethod, so the parser rejects the message and it gets no response.
const (
	MethodREGISTER = "REGISTER"
	MethodOPTIONS  = "OPTIONS"
)

// SIP Response Codes actually produced by the registrar's response builder
// and validation chain.
const (
	StatusOK                     = 200
	StatusBadRequest             = 400
	StatusUnauthorized           = 401
	StatusForbidden              = 403
	StatusIntervalTooBrief       = 423
	StatusTemporarilyUnavailable = 480
	StatusServerInternalError    = 500
)

// SIP Version
const SIPVersion = "SIP/2.0"

// Common SIP Headers
const (
	HeaderVia             = "Via"
	HeaderFrom            = "From"
	HeaderTo              = "To"
	HeaderCallID          = "Call-ID"
	HeaderCSeq            = "CSeq"
	HeaderMaxForwards     = "Max-Forwards"
	HeaderContact         = "Contact"
	HeaderExpires         = "Expires"
	HeaderContentType     = "Content-Type"
	HeaderContentLength   = "Content-Length"
	HeaderUserAgent       = "User-Agent"
	HeaderAllow           = "Allow"
	HeaderWWWAuthenticate = "WWW-Authenticate"
	HeaderAuthorization   = "Authorization"
	HeaderMinExpires      = "Min-Expires"
	HeaderDate            = "Date"
)

// SIPMessage represents a complete SIP message
type SIPMessage struct {
	StartLine   StartLine
	Headers     map[string][]string
	Body        []byte
	Transport   string
	Source      net.Addr
	Destination net.Addr
}

// StartLine interface for request and status lines
type StartLine interface {
	String() string
	IsRequest() bool
}

// RequestLine represents a SIP request line
type RequestLine struct {
	Method     string
	RequestURI string
	Version    string
}

// String returns the string representation of the request line
func (r *RequestLine) String() string {
	return r.Method + " " + r.RequestURI + " " + r.Version
}

// IsRequest returns true for request lines
func (r *RequestLine) IsRequest() bool {
	return true
}

// StatusLine represents a SIP status line
type StatusLine struct {
	Version      string
	StatusCode   int
	ReasonPhrase string
}

// String returns the string representation of the status line
func (s *StatusLine) String() string {
	return s.Version + " " + strconv.Itoa(s.StatusCode) + " " + s.ReasonPhrase
}

// IsRequest returns false for status lines
func (s *StatusLine) IsRequest() bool {
	return false
}

// Header represents a SIP header with name and values
type Header struct {
	Name   string
	Values []string
}

// String returns the string representation of the header
func (h *Header) String() string {
	return h.Name + ": " + strings.Join(h.Values, ",")
}

// NewSIPMessage creates a new SIP message
func NewSIPMessage() *SIPMessage {
	return &SIPMessage{
		Headers: make(map[string][]string),
	}
}

// NewRequestMessage creates a new SIP request message
func NewRequestMessage(method, requestURI string) *SIPMessage {
	msg := NewSIPMessage()
	msg.StartLine = &RequestLine{
		Method:     method,
		RequestURI: requestURI,
		Version:    SIPVersion,
	}
	return msg
}

// NewResponseMessage creates a new SIP response message
func NewResponseMessage(statusCode int, reasonPhrase string) *SIPMessage {
	msg := NewSIPMessage()
	msg.StartLine = &StatusLine{
		Version:      SIPVersion,
		StatusCode:   statusCode,
		ReasonPhrase: reasonPhrase,
	}
	return msg
}

// AddHeader adds a header to the message
func (m *SIPMessage) AddHeader(name, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string][]string)
	}
	m.Headers[name] = append(m.Headers[name], value)
}

// SetHeader sets a header value, replacing any existing values
func (m *SIPMessage) SetHeader(name, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string][]string)
	}
	m.Headers[name] = []string{value}
}

// GetHeader returns the first value of a header
func (m *SIPMessage) GetHeader(name string) string {
	if values, exists := m.Headers[name]; exists && len(values) > 0 {
		return values[0]
	}
	return ""
}

// GetHeaders returns all values of a header
func (m *SIPMessage) GetHeaders(name string) []string {
	if values, exists := m.Headers[name]; exists {
		return values
	}
	return nil
}

// HasHeader checks if a header exists
func (m *SIPMessage) HasHeader(name string) bool {
	_, exists := m.Headers[name]
	return exists
}

// RemoveHeader removes a header from the message
func (m *SIPMessage) RemoveHeader(name string) {
	delete(m.Headers, name)
}

// IsRequest returns true if the message is a request
func (m *SIPMessage) IsRequest() bool {
	return m.StartLine != nil && m.StartLine.IsRequest()
}

// IsResponse returns true if the message is a response
func (m *SIPMessage) IsResponse() bool {
	return m.StartLine != nil && !m.StartLine.IsRequest()
}

// GetMethod returns the method for request messages
func (m *SIPMessage) GetMethod() string {
	if req, ok := m.StartLine.(*RequestLine); ok {
		return req.Method
	}
	return ""
}

// GetStatusCode returns the status code for response messages
func (m *SIPMessage) GetStatusCode() int {
	if resp, ok := m.StartLine.(*StatusLine); ok {
		return resp.StatusCode
	}
	return 0
}

// GetReasonPhrase returns the reason phrase for response messages
func (m *SIPMessage) GetReasonPhrase() string {
	if resp, ok := m.StartLine.(*StatusLine); ok {
		return resp.ReasonPhrase
	}
	return ""
}

// GetRequestURI returns the request URI for request messages
func (m *SIPMessage) GetRequestURI() string {
	if req, ok := m.StartLine.(*RequestLine); ok {
		return req.RequestURI
	}
	return ""
}

// Clone creates a deep copy of the SIP message
func (m *SIPMessage) Clone() *SIPMessage {
	clone := &SIPMessage{
		Headers:     make(map[string][]string),
		Body:        make([]byte, len(m.Body)),
		Transport:   m.Transport,
		Source:      m.Source,
		Destination: m.Destination,
	}

	// Copy body
	copy(clone.Body, m.Body)

	// Copy headers
	for name, values := range m.Headers {
		clone.Headers[name] = make([]string, len(values))
		copy(clone.Headers[name], values)
	}

	// Copy start line
	if req, ok := m.StartLine.(*RequestLine); ok {
		clone.StartLine = &RequestLine{
			Method:     req.Method,
			RequestURI: req.RequestURI,
			Version:    req.Version,
		}
	} else if resp, ok := m.StartLine.(*StatusLine); ok {
		clone.StartLine = &StatusLine{
			Version:      resp.Version,
			StatusCode:   resp.StatusCode,
			ReasonPhrase: resp.ReasonPhrase,
		}
	}

	return clone
}

// GetReasonPhraseForCode returns the standard reason phrase for a status code
func GetReasonPhraseForCode(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusUnauthorized:
		return "Unauthorized"
	case StatusForbidden:
		return "Forbidden"
	case StatusIntervalTooBrief:
		return "Interval Too Brief"
	case StatusTemporarilyUnavailable:
		return "Temporarily Unavailable"
	case StatusServerInternalError:
		return "Server Internal Error"
	default:
		return fmt.Sprintf("Unknown Status Code %d", code)
	}
}

// IsValidMethod checks if a method is one the registrar accepts on the wire.
func IsValidMethod(method string) bool {
	switch method {
	case MethodREGISTER, MethodOPTIONS:
		return true
	default:
		return false
	}
}
