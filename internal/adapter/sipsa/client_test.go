package sipsa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sipsa-price-etl/internal/config"
	"github.com/couchcryptid/sipsa-price-etl/internal/observability"
)

const okResponse = `<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body>
  <ns2:promediosSipsaCiudadResponse xmlns:ns2="http://servicios.sipsa.co.gov.dane/">
    <return><ciudad>Medellín</ciudad><producto>Papa</producto><precioPromedio>1800</precioPromedio></return>
  </ns2:promediosSipsaCiudadResponse>
</S:Body></S:Envelope>`

const faultResponse = `<S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/"><S:Body>
  <S:Fault><faultcode>S:Server</faultcode><faultstring>consulta fallida</faultstring></S:Fault>
</S:Body></S:Envelope>`

// fakeService serves a WSDL at /ws?WSDL and dispatches SOAP posts on /ws to
// soap. The WSDL address points back at the server itself.
type fakeService struct {
	soap12     bool
	soap       http.HandlerFunc
	wsdlStatus int
	wsdlHits   atomic.Int32
	soapHits   atomic.Int32

	mu         sync.Mutex
	lastAction string
	lastCT     string
	lastBody   string
}

func (f *fakeService) last() (action, contentType, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAction, f.lastCT, f.lastBody
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		f.wsdlHits.Add(1)
		if f.wsdlStatus != 0 {
			w.WriteHeader(f.wsdlStatus)
			return
		}
		ns, prefix := "http://schemas.xmlsoap.org/wsdl/soap/", "soap"
		if f.soap12 {
			ns, prefix = "http://schemas.xmlsoap.org/wsdl/soap12/", "soap12"
		}
		fmt.Fprintf(w, `<definitions xmlns="http://schemas.xmlsoap.org/wsdl/" xmlns:%[1]s="%[2]s"
		    targetNamespace="http://servicios.sipsa.co.gov.dane/">
		  <portType name="P">
		    <operation name="promediosSipsaCiudad"/>
		    <operation name="promediosSipsaSemanaMadr"/>
		  </portType>
		  <service name="S"><port name="p" binding="b">
		    <%[1]s:address location="http://%[3]s/ws"/>
		  </port></service>
		</definitions>`, prefix, ns, r.Host)
		return
	}
	f.soapHits.Add(1)
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.lastBody = string(body)
	f.lastAction = r.Header.Get("SOAPAction")
	f.lastCT = r.Header.Get("Content-Type")
	f.mu.Unlock()
	f.soap(w, r)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func testConfig(wsdlURL, fallback string) *config.Config {
	return &config.Config{
		WSDLURL:         wsdlURL,
		FallbackWSDLURL: fallback,
		ConnectTimeout:  time.Second,
		ReadTimeout:     5 * time.Second,
		MaxRetries:      3,
		Backoff:         time.Millisecond,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// closedURL returns the URL of a server that is no longer listening.
func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func TestClient_Fetch_SOAP11(t *testing.T) {
	fake := &fakeService{soap: respond(http.StatusOK, okResponse)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	metrics := observability.NewMetrics()
	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), metrics)

	records, err := c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Medellín", records[0]["ciudad"])
	assert.Equal(t, "1800", records[0]["precioPromedio"])

	action, contentType, body := fake.last()
	assert.Equal(t, `""`, action)
	assert.True(t, strings.HasPrefix(contentType, "text/xml"))
	assert.Contains(t, body, "<tns:promediosSipsaCiudad/>")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FetchAttempts.WithLabelValues("success")))

	// The WSDL is loaded once per client.
	_, err = c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.wsdlHits.Load())
}

func TestClient_Fetch_SOAP12(t *testing.T) {
	fake := &fakeService{soap12: true, soap: respond(http.StatusOK, okResponse)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), observability.NewMetrics())

	_, err := c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.NoError(t, err)
	action, contentType, body := fake.last()
	assert.True(t, strings.HasPrefix(contentType, "application/soap+xml"))
	assert.Empty(t, action)
	assert.Contains(t, body, "http://www.w3.org/2003/05/soap-envelope")
}

func TestClient_Fetch_RetriesServiceUnavailable(t *testing.T) {
	var calls atomic.Int32
	fake := &fakeService{soap: func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			respond(http.StatusServiceUnavailable, "busy")(w, r)
			return
		}
		respond(http.StatusOK, okResponse)(w, r)
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	metrics := observability.NewMetrics()
	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), metrics)

	records, err := c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.FetchAttempts.WithLabelValues("retry")))
}

func TestClient_Fetch_RetriesExhausted(t *testing.T) {
	fake := &fakeService{soap: respond(http.StatusBadGateway, "bad gateway")}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), observability.NewMetrics())

	_, err := c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	// One attempt plus three retries.
	assert.Equal(t, int32(4), fake.soapHits.Load())
}

func TestClient_Fetch_FaultNotRetried(t *testing.T) {
	fake := &fakeService{soap: respond(http.StatusInternalServerError, faultResponse)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	metrics := observability.NewMetrics()
	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), metrics)

	_, err := c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.Error(t, err)
	var fault *FaultError
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "consulta fallida", fault.String)
	assert.False(t, errors.Is(err, ErrConnectivity))
	assert.Equal(t, int32(1), fake.soapHits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchAttempts.WithLabelValues("fault")))
}

func TestClient_Fetch_ClientErrorNotRetried(t *testing.T) {
	fake := &fakeService{soap: respond(http.StatusNotFound, "not found")}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), observability.NewMetrics())

	_, err := c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.Error(t, err)
	assert.Equal(t, int32(1), fake.soapHits.Load())
}

func TestClient_Connect_FallsBackToSecondURL(t *testing.T) {
	fake := &fakeService{soap: respond(http.StatusOK, okResponse)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(testConfig(closedURL(t)+"/ws?WSDL", srv.URL+"/ws?WSDL"), discardLogger(), observability.NewMetrics())

	records, err := c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(1), fake.wsdlHits.Load())
}

func TestClient_Connect_Unreachable(t *testing.T) {
	c := NewClient(testConfig(closedURL(t)+"/ws?WSDL", closedURL(t)+"/ws?WSDL"), discardLogger(), observability.NewMetrics())

	_, err := c.Fetch(context.Background(), "promediosSipsaCiudad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectivity))
	var connErr *ConnectivityError
	require.True(t, errors.As(err, &connErr))
}

func TestClient_Connect_WSDLUnavailable(t *testing.T) {
	fake := &fakeService{wsdlStatus: http.StatusServiceUnavailable}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), observability.NewMetrics())

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectivity))
	assert.Equal(t, int32(4), fake.wsdlHits.Load())
}

func TestClient_Fetch_UnknownOperation(t *testing.T) {
	fake := &fakeService{soap: respond(http.StatusOK, okResponse)}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), observability.NewMetrics())

	_, err := c.Fetch(context.Background(), "consultarInsumos")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperationNotFound))
	assert.Equal(t, int32(0), fake.soapHits.Load())
}

func TestClient_Operations(t *testing.T) {
	srv := httptest.NewServer(&fakeService{})
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/ws?WSDL", ""), discardLogger(), observability.NewMetrics())

	ops, err := c.Operations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"promediosSipsaCiudad", "promediosSipsaSemanaMadr"}, ops)
}

func TestClient_Fetch_ContextCancelled(t *testing.T) {
	fake := &fakeService{soap: respond(http.StatusServiceUnavailable, "busy")}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	cfg := testConfig(srv.URL+"/ws?WSDL", "")
	cfg.Backoff = time.Hour
	c := NewClient(cfg, discardLogger(), observability.NewMetrics())
	require.NoError(t, c.Connect(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, "promediosSipsaCiudad")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
