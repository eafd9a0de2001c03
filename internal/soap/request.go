// Package soap builds Energis request envelopes and normalizes the values
// coming back in them. The protocol is a fixed XML/RPC dialect: an envelope
// with an optional Auth header, an operation element in the body, and the
// operation name repeated in the SOAPAction transport header.
package soap

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrInvalidDate signals a date literal that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidTimestamp signals a response timestamp the normalizer
	// cannot parse for the given granularity.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Headers returns the fixed transport headers for an operation.
func Headers(operation string) map[string]string {
	return map[string]string{
		"Content-Type": "text/xml; charset=utf-8",
		"SOAPAction":   operation,
	}
}

// LogonRequest builds the body and headers for the logonex operation.
func LogonRequest(username, password string) (string, map[string]string) {
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
               soap:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"
               xmlns:ene="ENERGIS-URL">
    <soap:Body>
        <ene:logonex>
            <username>%s</username>
            <password>%s</password>
        </ene:logonex>
    </soap:Body>
</soap:Envelope>`, username, password)
	return body, Headers("logonex")
}

// ExportRequest builds the body and headers for the xexport operation over
// an encoded date range. Dates must already be in MMDDYYYY0000 form.
func ExportRequest(username, key string, nodes []int, dateFrom, dateTo, granularityCode string) (string, map[string]string) {
	return exportEnvelope(username, key, nodes, granularityCode, dateFrom+","+dateTo)
}

// ExportPeriodRequest builds the xexport body addressing a single calendar
// period token (e.g. "r-2", "m") instead of an explicit date range.
func ExportPeriodRequest(username, key string, nodes []int, period, granularityCode string) (string, map[string]string) {
	return exportEnvelope(username, key, nodes, granularityCode, period)
}

func exportEnvelope(username, key string, nodes []int, granularityCode, cas string) (string, map[string]string) {
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
               soap:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"
               xmlns:ene="ENERGIS-URL">
    <soap:Header>
        <ene:Auth>
            <exuziv>%s</exuziv>
            <exklic>%s</exklic>
        </ene:Auth>
    </soap:Header>
    <soap:Body>
        <ene:xexport>
            <uzel>%s</uzel>
            <typuz>2</typuz>
            <per>%s</per>
            <cas>%s</cas>
            <typhodn>hodnota</typhodn>
        </ene:xexport>
    </soap:Body>
</soap:Envelope>`, username, key, joinNodes(nodes), granularityCode, cas)
	return body, Headers("xexport")
}

// JournalRequest builds the body and headers for the xjournal operation.
// Event and phase filters are optional; empty values omit the element.
func JournalRequest(username, key string, nodes []int, dateFrom, dateTo, event, phase string) (string, map[string]string) {
	var filters strings.Builder
	if event != "" {
		fmt.Fprintf(&filters, "\n            <udalost>%s</udalost>", event)
	}
	if phase != "" {
		fmt.Fprintf(&filters, "\n            <faze>%s</faze>", phase)
	}
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
               soap:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/"
               xmlns:ene="ENERGIS-URL">
    <soap:Header>
        <ene:Auth>
            <exuziv>%s</exuziv>
            <exklic>%s</exklic>
        </ene:Auth>
    </soap:Header>
    <soap:Body>
        <ene:xjournal>
            <uzel>%s</uzel>
            <cas>%s,%s</cas>%s
        </ene:xjournal>
    </soap:Body>
</soap:Envelope>`, username, key, joinNodes(nodes), dateFrom, dateTo, filters.String())
	return body, Headers("xjournal")
}

func joinNodes(nodes []int) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ",")
}

// EncodeDate converts a YYYY-MM-DD date literal into the protocol's
// MMDDYYYY0000 wire form.
func EncodeDate(date string) (string, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("%w: %s (expected YYYY-MM-DD)", ErrInvalidDate, date)
	}
	return t.Format("01022006") + "0000", nil
}

// Fields whose element text must never appear in logs.
var sensitiveFields = []string{"username", "password", "exuziv", "exklic"}

var sensitivePatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(sensitiveFields))
	for i, field := range sensitiveFields {
		patterns[i] = regexp.MustCompile(`(?is)<` + field + `>(.*?)</` + field + `>`)
	}
	return patterns
}()

// MaskSensitiveData masks credential-bearing elements in a request body so
// it can be logged. The element text is replaced by its first character
// (lower-cased) followed by one asterisk per character of the original
// value; values of length <= 1 become a single asterisk. Matching is
// case-insensitive on the tag name and handles repeated occurrences.
func MaskSensitiveData(body string) string {
	for i, pattern := range sensitivePatterns {
		field := sensitiveFields[i]
		body = pattern.ReplaceAllStringFunc(body, func(m string) string {
			value := pattern.FindStringSubmatch(m)[1]
			return "<" + field + ">" + maskValue(value) + "</" + field + ">"
		})
	}
	return body
}

func maskValue(value string) string {
	runes := []rune(value)
	if len(runes) <= 1 {
		return "*"
	}
	return strings.ToLower(string(runes[0])) + strings.Repeat("*", len(runes))
}

// MaskKeyPrefix renders an auth key as a short masked prefix for
// diagnostics; the full key is never logged.
func MaskKeyPrefix(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + "****"
}
