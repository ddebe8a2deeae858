package validation

import (
	"strconv"
	"strings"

	"github.com/zurustar/gb28181registrar/internal/parser"
)

// validateSyntax performs the registrar's pre-intake syntax checks. It only
// ever runs against requests; HandleMessage filters responses out before
// calling it.
func validateSyntax(req *parser.SIPMessage) ValidationResult {
	method := req.GetMethod()
	if method == "" {
		return badRequest("missing_method", "Missing or empty method")
	}

	if strings.ContainsAny(method, " \t\r\n") {
		return badRequest("invalid_method", "Method contains invalid characters")
	}

	if req.GetRequestURI() == "" {
		return badRequest("missing_request_uri", "Missing Request-URI")
	}

	requiredHeaders := []string{
		parser.HeaderVia, parser.HeaderFrom, parser.HeaderTo,
		parser.HeaderCallID, parser.HeaderCSeq, parser.HeaderMaxForwards,
	}
	for _, header := range requiredHeaders {
		if req.GetHeader(header) == "" {
			return badRequest("missing_required_header", "Missing required header: "+header)
		}
	}

	maxForwards, err := strconv.Atoi(req.GetHeader(parser.HeaderMaxForwards))
	if err != nil || maxForwards < 0 || maxForwards > 255 {
		return badRequest("invalid_max_forwards", "Invalid Max-Forwards: "+req.GetHeader(parser.HeaderMaxForwards))
	}

	cseq := req.GetHeader(parser.HeaderCSeq)
	cseqParts := strings.Fields(cseq)
	if len(cseqParts) != 2 {
		return badRequest("invalid_cseq_format", "Invalid CSeq header format")
	}
	if _, err := strconv.ParseUint(cseqParts[0], 10, 32); err != nil {
		return badRequest("invalid_cseq_number", "Invalid CSeq number: "+cseqParts[0])
	}
	if cseqParts[1] != method {
		return badRequest("cseq_method_mismatch", "CSeq method does not match request method")
	}

	if contentLength := req.GetHeader(parser.HeaderContentLength); contentLength != "" {
		n, err := strconv.Atoi(contentLength)
		if err != nil || n < 0 {
			return badRequest("invalid_content_length", "Invalid Content-Length header")
		}
		if len(req.Body) != n {
			return badRequest("content_length_mismatch", "Content-Length does not match body size")
		}
	}

	return ValidationResult{Valid: true}
}

func badRequest(reason, details string) ValidationResult {
	return ValidationResult{
		Valid:       false,
		ErrorCode:   parser.StatusBadRequest,
		ErrorReason: "Bad Request",
		Details:     details,
		Context: map[string]interface{}{
			"error": reason,
		},
	}
}
