package holding

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedResponse is returned when a body decodes but carries neither
// an availability map nor an error field.
var ErrMalformedResponse = errors.New("malformed availability response")

// DecodeJSON decodes a JSON status endpoint body.
func DecodeJSON(r io.Reader) (*Response, error) {
	var resp Response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := resp.validate(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// xmlResponse mirrors the XML rendering of the endpoint reply. Record ids
// are attributes because they are not guaranteed to be valid element names.
type xmlResponse struct {
	XMLName      xml.Name    `xml:"availability-response"`
	Error        string      `xml:"error,omitempty"`
	Availability *xmlRecords `xml:"availability"`
}

type xmlRecords struct {
	Records []xmlRecord `xml:"record"`
}

type xmlRecord struct {
	ID       string    `xml:"id,attr"`
	Holdings []Holding `xml:"holdings>holding"`
}

// DecodeXML decodes an XML status endpoint body.
func DecodeXML(r io.Reader) (*Response, error) {
	var doc xmlResponse
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}

	resp := &Response{Error: doc.Error}
	if doc.Availability != nil {
		resp.Availability = make(map[string]RecordAvailability, len(doc.Availability.Records))
		for _, rec := range doc.Availability.Records {
			resp.Availability[rec.ID] = RecordAvailability{Holdings: rec.Holdings}
		}
	}

	if err := resp.validate(); err != nil {
		return nil, err
	}
	return resp, nil
}

// validate rejects bodies such as `{}` or `null` that decode without error
// but say nothing. An empty availability map is a valid answer.
func (r *Response) validate() error {
	if r.Error == "" && r.Availability == nil {
		return ErrMalformedResponse
	}
	return nil
}
