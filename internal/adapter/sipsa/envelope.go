package sipsa

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/sipsa-price-etl/internal/domain"
)

const (
	nsEnvelope11 = "http://schemas.xmlsoap.org/soap/envelope/"
	nsEnvelope12 = "http://www.w3.org/2003/05/soap-envelope"
	nsXSI        = "http://www.w3.org/2001/XMLSchema-instance"
)

// buildEnvelope renders a document/literal request for a parameterless
// operation.
func buildEnvelope(soap12 bool, targetNS, operation string) []byte {
	env := nsEnvelope11
	if soap12 {
		env = nsEnvelope12
	}
	var b bytes.Buffer
	b.WriteString(xml.Header)
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="`)
	escape(&b, env)
	b.WriteString(`" xmlns:tns="`)
	escape(&b, targetNS)
	b.WriteString(`"><soapenv:Header/><soapenv:Body><tns:`)
	escape(&b, operation)
	b.WriteString(`/></soapenv:Body></soapenv:Envelope>`)
	return b.Bytes()
}

func escape(b *bytes.Buffer, s string) {
	_ = xml.EscapeText(b, []byte(s))
}

// node is a generic XML element.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	text     string
	children []*node
}

func (n *node) child(local string) *node {
	for _, c := range n.children {
		if c.name.Local == local {
			return c
		}
	}
	return nil
}

func (n *node) isNil() bool {
	for _, a := range n.attrs {
		if a.Name.Local == "nil" && (a.Name.Space == nsXSI || a.Name.Space == "xsi") {
			return a.Value == "true" || a.Value == "1"
		}
	}
	return false
}

// innerText concatenates the text of n and its descendants.
func (n *node) innerText() string {
	if len(n.children) == 0 {
		return n.text
	}
	parts := []string{}
	if n.text != "" {
		parts = append(parts, n.text)
	}
	for _, c := range n.children {
		if t := c.innerText(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func readNode(d *xml.Decoder, start xml.StartElement) (*node, error) {
	n := &node{name: start.Name, attrs: start.Attr}
	var text strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			c, err := readNode(d, t)
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			n.text = strings.TrimSpace(text.String())
			return n, nil
		}
	}
}

// decodeResponse reads a SOAP response envelope. It returns the items of the
// response wrapper as raw records, or the Fault the body carried.
func decodeResponse(r io.Reader) ([]domain.RawRecord, *FaultError, error) {
	body, err := findBody(xml.NewDecoder(r))
	if err != nil {
		return nil, nil, err
	}
	if len(body.children) == 0 {
		return []domain.RawRecord{}, nil, nil
	}

	wrapper := body.children[0]
	if wrapper.name.Local == "Fault" {
		return nil, faultFromNode(wrapper), nil
	}

	records := make([]domain.RawRecord, 0, len(wrapper.children))
	for _, item := range wrapper.children {
		if item.isNil() {
			continue
		}
		if len(item.children) == 0 {
			// A scalar item has no fields to look up; keep its text.
			records = append(records, domain.RawRecord{"raw": item.text})
			continue
		}
		records = append(records, toRecord(item))
	}
	return records, nil, nil
}

// decodeFault returns the Fault in a SOAP envelope, or nil when body is not
// a fault envelope.
func decodeFault(body []byte) *FaultError {
	n, err := findBody(xml.NewDecoder(bytes.NewReader(body)))
	if err != nil || len(n.children) == 0 || n.children[0].name.Local != "Fault" {
		return nil
	}
	return faultFromNode(n.children[0])
}

func findBody(d *xml.Decoder) (*node, error) {
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode response: no soap body")
		}
		if err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Body" {
			n, err := readNode(d, se)
			if err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
			return n, nil
		}
	}
}

// faultFromNode handles both SOAP 1.1 (faultcode/faultstring/detail) and
// SOAP 1.2 (Code/Value, Reason/Text, Detail) faults.
func faultFromNode(f *node) *FaultError {
	fe := &FaultError{}
	if c := f.child("faultcode"); c != nil {
		fe.Code = c.text
	}
	if s := f.child("faultstring"); s != nil {
		fe.String = s.text
	}
	if d := f.child("detail"); d != nil {
		fe.Detail = d.innerText()
	}
	if c := f.child("Code"); c != nil {
		if v := c.child("Value"); v != nil {
			fe.Code = v.text
		}
	}
	if r := f.child("Reason"); r != nil {
		if t := r.child("Text"); t != nil {
			fe.String = t.text
		}
	}
	if d := f.child("Detail"); d != nil {
		fe.Detail = d.innerText()
	}
	return fe
}

// toRecord flattens an item's child elements into a RawRecord. Nested
// elements become nested records; repeated names collect into a slice.
func toRecord(n *node) domain.RawRecord {
	rec := make(domain.RawRecord, len(n.children))
	for _, c := range n.children {
		var v any
		switch {
		case c.isNil():
			v = nil
		case len(c.children) > 0:
			v = toRecord(c)
		default:
			v = c.text
		}
		key := c.name.Local
		if prev, ok := rec[key]; ok {
			if list, isList := prev.([]any); isList {
				rec[key] = append(list, v)
			} else {
				rec[key] = []any{prev, v}
			}
			continue
		}
		rec[key] = v
	}
	return rec
}
