package sipsa

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode"
)

const (
	nsSOAP11Binding = "http://schemas.xmlsoap.org/wsdl/soap/"
	nsSOAP12Binding = "http://schemas.xmlsoap.org/wsdl/soap12/"
)

// Service is what the client needs from a WSDL document.
type Service struct {
	TargetNamespace string
	Operations      []string // portType operations, declaration order
	Endpoint        string   // first port address
	SOAP12          bool     // the first port uses the SOAP 1.2 binding
}

// parseWSDL extracts the target namespace, operation names and the first
// port address from a WSDL 1.1 document.
func parseWSDL(r io.Reader) (*Service, error) {
	d := xml.NewDecoder(r)
	svc := &Service{}
	seen := make(map[string]bool)
	var stack []string
	sawDefinitions := false

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse wsdl: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			switch {
			case t.Name.Local == "definitions" && len(stack) == 0:
				sawDefinitions = true
				svc.TargetNamespace = attr(t, "targetNamespace")
			case t.Name.Local == "operation" && parent == "portType":
				if name := attr(t, "name"); name != "" && !seen[name] {
					seen[name] = true
					svc.Operations = append(svc.Operations, name)
				}
			case t.Name.Local == "address" && parent == "port" && svc.Endpoint == "":
				if t.Name.Space == nsSOAP11Binding || t.Name.Space == nsSOAP12Binding {
					svc.Endpoint = attr(t, "location")
					svc.SOAP12 = t.Name.Space == nsSOAP12Binding
				}
			}
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if !sawDefinitions {
		return nil, errors.New("parse wsdl: no definitions element")
	}
	return svc, nil
}

// resolveEndpoint picks the SOAP endpoint for a WSDL fetched from wsdlURL.
// Without a port address the WSDL URL minus its query is used. When the WSDL
// came over a different scheme than the address declares (the HTTP fallback),
// the address is moved to that scheme.
func resolveEndpoint(svc *Service, wsdlURL string) (string, error) {
	src, err := url.Parse(wsdlURL)
	if err != nil {
		return "", fmt.Errorf("parse wsdl url: %w", err)
	}
	if svc.Endpoint == "" {
		src.RawQuery = ""
		return src.String(), nil
	}
	ep, err := url.Parse(svc.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", svc.Endpoint, err)
	}
	if ep.Host == "" {
		return src.ResolveReference(ep).String(), nil
	}
	if ep.Scheme != src.Scheme {
		ep.Scheme = src.Scheme
	}
	return ep.String(), nil
}

// ResolveOperation finds want among the declared operations: exact name,
// then case-insensitive, then the first operation containing every word of
// want's camelCase name. An empty declaration list passes want through.
func ResolveOperation(declared []string, want string) (string, error) {
	if len(declared) == 0 {
		return want, nil
	}
	for _, op := range declared {
		if op == want {
			return op, nil
		}
	}
	for _, op := range declared {
		if strings.EqualFold(op, want) {
			return op, nil
		}
	}
	words := camelWords(want)
	if len(words) > 0 {
		for _, op := range declared {
			lower := strings.ToLower(op)
			all := true
			for _, w := range words {
				if !strings.Contains(lower, w) {
					all = false
					break
				}
			}
			if all {
				return op, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q (available: %s)", ErrOperationNotFound, want, strings.Join(declared, ", "))
}

// camelWords splits "promediosSipsaCiudad" into lower-case words.
func camelWords(s string) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			flush()
			cur.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return words
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
