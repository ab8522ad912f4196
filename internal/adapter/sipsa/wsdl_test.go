package sipsa

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wsdl11 = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://schemas.xmlsoap.org/wsdl/"
    xmlns:soap="http://schemas.xmlsoap.org/wsdl/soap/"
    xmlns:tns="http://servicios.sipsa.co.gov.dane/"
    targetNamespace="http://servicios.sipsa.co.gov.dane/"
    name="SrvSipsaUpraBeanService">
  <portType name="SrvSipsaUpraBean">
    <operation name="consultarInsumosSipsaMesMadr"><input message="tns:a"/></operation>
    <operation name="promediosSipsaCiudad"><input message="tns:b"/></operation>
    <operation name="promediosSipsaSemanaMadr"><input message="tns:c"/></operation>
  </portType>
  <binding name="SrvSipsaUpraBeanPortBinding" type="tns:SrvSipsaUpraBean">
    <soap:binding transport="http://schemas.xmlsoap.org/soap/http" style="document"/>
    <operation name="promediosSipsaCiudad"><soap:operation soapAction=""/></operation>
  </binding>
  <service name="SrvSipsaUpraBeanService">
    <port name="SrvSipsaUpraBeanPort" binding="tns:SrvSipsaUpraBeanPortBinding">
      <soap:address location="https://appweb.dane.gov.co:443/sipsaWS/SrvSipsaUpraBeanService"/>
    </port>
  </service>
</definitions>`

func TestParseWSDL_SOAP11(t *testing.T) {
	svc, err := parseWSDL(strings.NewReader(wsdl11))
	require.NoError(t, err)

	assert.Equal(t, "http://servicios.sipsa.co.gov.dane/", svc.TargetNamespace)
	// Binding operations repeat portType ones and must not be listed twice.
	assert.Equal(t, []string{
		"consultarInsumosSipsaMesMadr",
		"promediosSipsaCiudad",
		"promediosSipsaSemanaMadr",
	}, svc.Operations)
	assert.Equal(t, "https://appweb.dane.gov.co:443/sipsaWS/SrvSipsaUpraBeanService", svc.Endpoint)
	assert.False(t, svc.SOAP12)
}

func TestParseWSDL_SOAP12(t *testing.T) {
	doc := `<wsdl:definitions xmlns:wsdl="http://schemas.xmlsoap.org/wsdl/"
	    xmlns:soap12="http://schemas.xmlsoap.org/wsdl/soap12/" targetNamespace="urn:x">
	  <wsdl:portType name="P"><wsdl:operation name="ping"/></wsdl:portType>
	  <wsdl:service name="S"><wsdl:port name="p" binding="b">
	    <soap12:address location="http://example.test/ws"/>
	  </wsdl:port></wsdl:service>
	</wsdl:definitions>`

	svc, err := parseWSDL(strings.NewReader(doc))
	require.NoError(t, err)
	assert.True(t, svc.SOAP12)
	assert.Equal(t, "http://example.test/ws", svc.Endpoint)
	assert.Equal(t, []string{"ping"}, svc.Operations)
}

func TestParseWSDL_Invalid(t *testing.T) {
	_, err := parseWSDL(strings.NewReader(`<html><body>maintenance</body></html>`))
	require.Error(t, err)

	_, err = parseWSDL(strings.NewReader(`<definitions><portType>`))
	require.Error(t, err)
}

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wsdlURL  string
		expected string
	}{
		{
			name:     "declared address kept",
			endpoint: "https://host/ws",
			wsdlURL:  "https://host/ws?WSDL",
			expected: "https://host/ws",
		},
		{
			name:     "fallback scheme applied",
			endpoint: "https://host:443/ws",
			wsdlURL:  "http://host/ws?WSDL",
			expected: "http://host:443/ws",
		},
		{
			name:     "no address uses wsdl url",
			endpoint: "",
			wsdlURL:  "http://host/ws?WSDL",
			expected: "http://host/ws",
		},
		{
			name:     "relative address",
			endpoint: "/other",
			wsdlURL:  "http://host/ws?WSDL",
			expected: "http://host/other",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveEndpoint(&Service{Endpoint: tt.endpoint}, tt.wsdlURL)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveOperation(t *testing.T) {
	declared := []string{"consultarInsumosSipsaMesMadr", "promediosSipsaCiudad", "promediosSipsaSemanaMadr"}

	tests := []struct {
		want     string
		expected string
	}{
		{"promediosSipsaCiudad", "promediosSipsaCiudad"},
		{"PROMEDIOSSIPSACIUDAD", "promediosSipsaCiudad"},
		{"promediosCiudad", "promediosSipsaCiudad"},
		{"promediosSemana", "promediosSipsaSemanaMadr"},
	}
	for _, tt := range tests {
		got, err := ResolveOperation(declared, tt.want)
		require.NoError(t, err, tt.want)
		assert.Equal(t, tt.expected, got, tt.want)
	}
}

func TestResolveOperation_NotFound(t *testing.T) {
	_, err := ResolveOperation([]string{"promediosSipsaCiudad"}, "consultarPrecios")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperationNotFound))
	assert.Contains(t, err.Error(), "promediosSipsaCiudad")
}

func TestResolveOperation_NoDeclarations(t *testing.T) {
	got, err := ResolveOperation(nil, "promediosSipsaCiudad")
	require.NoError(t, err)
	assert.Equal(t, "promediosSipsaCiudad", got)
}

func TestCamelWords(t *testing.T) {
	assert.Equal(t, []string{"promedios", "sipsa", "ciudad"}, camelWords("promediosSipsaCiudad"))
	assert.Equal(t, []string{"promedios", "ciudad"}, camelWords("promedios_ciudad"))
	assert.Empty(t, camelWords(""))
}
