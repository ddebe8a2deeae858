package validation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zurustar/gb28181registrar/internal/parser"
)

// MessageProcessor runs inbound requests through the registrar's syntax
// checks and turns a failed check into a ready-to-send SIP error response.
type MessageProcessor struct{}

// NewMessageProcessor creates a new message processor
func NewMessageProcessor() *MessageProcessor {
	return &MessageProcessor{}
}

// ProcessRequest validates a SIP request. A nil response with a nil error
// means validation passed and the caller should continue processing the
// request; a non-nil response is the error to send back on the wire.
func (mp *MessageProcessor) ProcessRequest(req *parser.SIPMessage) (*parser.SIPMessage, error) {
	if !req.IsRequest() {
		return nil, fmt.Errorf("message is not a request")
	}

	result := Validate(req)
	if !result.Valid {
		return mp.createErrorResponse(req, result), nil
	}

	return nil, nil
}

// createErrorResponse creates an error response based on validation result
func (mp *MessageProcessor) createErrorResponse(req *parser.SIPMessage, result ValidationResult) *parser.SIPMessage {
	resp := parser.NewResponseMessage(result.ErrorCode, result.ErrorReason)

	if via := req.GetHeader(parser.HeaderVia); via != "" {
		resp.SetHeader(parser.HeaderVia, via)
	}

	if from := req.GetHeader(parser.HeaderFrom); from != "" {
		resp.SetHeader(parser.HeaderFrom, from)
	}

	if to := req.GetHeader(parser.HeaderTo); to != "" {
		if !containsTag(to) {
			to += ";tag=" + uuid.NewString()
		}
		resp.SetHeader(parser.HeaderTo, to)
	}

	if callID := req.GetHeader(parser.HeaderCallID); callID != "" {
		resp.SetHeader(parser.HeaderCallID, callID)
	}

	if cseq := req.GetHeader(parser.HeaderCSeq); cseq != "" {
		resp.SetHeader(parser.HeaderCSeq, cseq)
	}

	resp.SetHeader(parser.HeaderContentLength, "0")

	if result.Details != "" {
		body := result.Details
		resp.Body = []byte(body)
		resp.SetHeader(parser.HeaderContentType, "text/plain")
		resp.SetHeader(parser.HeaderContentLength, fmt.Sprintf("%d", len(body)))
	}

	return resp
}

// containsTag checks if a header contains a tag parameter
func containsTag(header string) bool {
	return strings.Contains(header, "tag=")
}
