package fetch

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/enerlytics/energis-extractor/internal/models"
	"github.com/enerlytics/energis-extractor/internal/soap"
)

var (
	// ErrTransport signals a network failure or non-2xx status on a data
	// request.
	ErrTransport = errors.New("transport error")
	// ErrDataRequest signals a parseable fault returned on a data request;
	// the error message carries the fault text.
	ErrDataRequest = errors.New("data request failed")
)

// rowElement is the repeated response element carrying one record.
const rowElement = "responseData"

// diagnosticLimit bounds how much of a response prefix is retained for
// error messages.
const diagnosticLimit = 8 * 1024

// RowHandler receives rows as the extractor produces them.
type RowHandler func(models.Row) error

// ExtractRows incrementally parses a streamed response body and emits one
// row per complete row element, with the timestamp normalized for the
// originating granularity. The full response is never held in memory; only
// the row element currently being read is retained.
//
// Rows missing a mandatory field are skipped silently. A fault or malformed
// document at the start of the response is fatal; malformed content after
// at least one row has been emitted is tolerated and already-emitted rows
// stand. Returns the number of rows emitted.
func ExtractRows(r io.Reader, dataset models.Dataset, g models.Granularity, handler RowHandler) (int, error) {
	prefix := &prefixBuffer{limit: diagnosticLimit}
	dec := xml.NewDecoder(io.TeeReader(r, prefix))

	mandatory := dataset.MandatoryFields()
	emitted := 0
	faultText := ""
	sawElement := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if emitted > 0 {
				// Mid-stream corruption after valid rows: keep what we have.
				return emitted, nil
			}
			return 0, startFailure(faultText, prefix.String(), err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawElement = true

		switch start.Name.Local {
		case rowElement:
			fields, err := decodeRowFields(dec, &start)
			if err != nil {
				if emitted > 0 {
					return emitted, nil
				}
				return 0, startFailure(faultText, prefix.String(), err)
			}
			row, ok, err := shapeRow(fields, mandatory, g)
			if err != nil {
				return emitted, err
			}
			if !ok {
				continue
			}
			if err := handler(row); err != nil {
				return emitted, err
			}
			emitted++
		case "faultstring":
			var text string
			if err := dec.DecodeElement(&text, &start); err == nil {
				faultText = strings.TrimSpace(text)
			}
		}
	}

	if emitted == 0 {
		if faultText != "" {
			return 0, fmt.Errorf("%w: %s", ErrDataRequest, faultText)
		}
		// A body with no XML content at all is not an empty result set;
		// surface it with whatever the service actually sent.
		if !sawElement {
			return 0, startFailure("", prefix.String(), io.ErrUnexpectedEOF)
		}
	}
	return emitted, nil
}

// decodeRowFields reads the child elements of one row element into a
// name -> text map, consuming the element entirely so nothing of it is
// retained afterwards.
func decodeRowFields(dec *xml.Decoder, start *xml.StartElement) (map[string]string, error) {
	fields := make(map[string]string)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var text string
			if err := dec.DecodeElement(&text, &t); err != nil {
				return nil, err
			}
			fields[t.Name.Local] = strings.TrimSpace(text)
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return fields, nil
			}
		}
	}
}

// shapeRow validates mandatory fields and normalizes the timestamp. The
// second return value is false when the row must be skipped.
func shapeRow(fields map[string]string, mandatory []string, g models.Granularity) (models.Row, bool, error) {
	for _, name := range mandatory {
		if fields[name] == "" {
			return nil, false, nil
		}
	}
	cas, err := soap.NormalizeTimestamp(fields["cas"], g)
	if err != nil {
		return nil, false, err
	}
	row := make(models.Row, len(fields))
	for name, value := range fields {
		row[name] = value
	}
	row["cas"] = cas
	return row, true, nil
}

func startFailure(faultText, prefix string, err error) error {
	if faultText != "" {
		return fmt.Errorf("%w: %s", ErrDataRequest, faultText)
	}
	if fault := soap.FaultText([]byte(prefix)); fault != "" {
		return fmt.Errorf("%w: %s", ErrDataRequest, fault)
	}
	if body := strings.TrimSpace(prefix); body != "" {
		return fmt.Errorf("%w: %s", ErrDataRequest, body)
	}
	return fmt.Errorf("%w: %v", ErrDataRequest, err)
}

// prefixBuffer retains the first limit bytes written through it.
type prefixBuffer struct {
	limit int
	buf   []byte
}

func (p *prefixBuffer) Write(b []byte) (int, error) {
	if remaining := p.limit - len(p.buf); remaining > 0 {
		if len(b) > remaining {
			p.buf = append(p.buf, b[:remaining]...)
		} else {
			p.buf = append(p.buf, b...)
		}
	}
	return len(b), nil
}

func (p *prefixBuffer) String() string {
	return string(p.buf)
}
