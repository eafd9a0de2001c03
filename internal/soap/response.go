package soap

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// ElementText returns the text content of the first element with the given
// local name, or "" when the element is absent or the document is
// malformed before it appears.
func ElementText(content []byte, name string) string {
	dec := xml.NewDecoder(bytes.NewReader(content))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != name {
			continue
		}
		var text string
		if err := dec.DecodeElement(&text, &start); err != nil {
			return ""
		}
		return strings.TrimSpace(text)
	}
}

// FaultText extracts the human-readable fault message from a response, or
// "" when the response carries no parseable fault.
func FaultText(content []byte) string {
	return ElementText(content, "faultstring")
}
