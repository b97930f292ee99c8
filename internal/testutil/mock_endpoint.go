// Package testutil provides testing utilities for the availability status endpoint.
package testutil

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/catalog-availability/pkg/holding"
)

// MockResponse defines the behavior for one mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockEndpoint is a configurable mock status endpoint for testing.
//
// Responses queued with Enqueue are served in order; once the queue is
// drained the fallback response (or the default handler) answers.
type MockEndpoint struct {
	server   *httptest.Server
	mu       sync.RWMutex
	queue    []MockResponse
	fallback *MockResponse

	// Tracking
	RequestCount      int
	LastIDList        string
	LastRequestHeader http.Header
}

// NewMockEndpoint creates a new mock status endpoint.
func NewMockEndpoint() *MockEndpoint {
	mock := &MockEndpoint{}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastIDList = r.URL.Query().Get("id_list")
		mock.LastRequestHeader = r.Header.Clone()

		var resp *MockResponse
		if len(mock.queue) > 0 {
			next := mock.queue[0]
			mock.queue = mock.queue[1:]
			resp = &next
		} else if mock.fallback != nil {
			fb := *mock.fallback
			resp = &fb
		}
		mock.mu.Unlock()

		if resp != nil {
			write(w, r, *resp)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock endpoint URL.
func (m *MockEndpoint) URL() string {
	return m.server.URL + "/availability"
}

// Close shuts down the mock server.
func (m *MockEndpoint) Close() {
	m.server.Close()
}

// Reset clears queued responses and tracking counters.
func (m *MockEndpoint) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = nil
	m.fallback = nil
	m.RequestCount = 0
	m.LastIDList = ""
	m.LastRequestHeader = nil
}

// Enqueue appends one-shot responses served in order.
func (m *MockEndpoint) Enqueue(resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resps...)
}

// SetResponse configures the response served once the queue is empty.
func (m *MockEndpoint) SetResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &resp
}

// FailThenSucceed queues n server errors followed by success as the fallback.
func (m *MockEndpoint) FailThenSucceed(n int, success MockResponse) {
	for i := 0; i < n; i++ {
		m.Enqueue(NewServerErrorResponse())
	}
	m.SetResponse(success)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockEndpoint) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastIDList returns the decoded id_list of the most recent request.
func (m *MockEndpoint) GetLastIDList() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastIDList
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockEndpoint) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// defaultHandler answers like the real endpoint: an error without
// id_list, otherwise every requested record as available on shelf.
func (m *MockEndpoint) defaultHandler(w http.ResponseWriter, r *http.Request) {
	idList := r.URL.Query().Get("id_list")
	if idList == "" {
		write(w, r, NewEndpointErrorResponse("No id_list parameter"))
		return
	}

	records := make(map[string][]holding.Holding)
	for _, id := range strings.Split(idList, ",") {
		records[id] = []holding.Holding{{
			InventoryType: holding.InventoryPhysical,
			Availability:  holding.AvailabilityAvailable,
			Library:       "Main Library",
			Location:      "Stacks",
			CallNumber:    "QA76 .M" + id,
		}}
	}
	write(w, r, NewAvailabilityResponse(records))
}

func write(w http.ResponseWriter, r *http.Request, resp MockResponse) {
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewAvailabilityResponse creates a 200 OK JSON response for records.
func NewAvailabilityResponse(records map[string][]holding.Holding) MockResponse {
	availability := make(map[string]holding.RecordAvailability, len(records))
	for id, hs := range records {
		availability[id] = holding.RecordAvailability{Holdings: hs}
	}
	// Marshal through a map so an empty availability object is kept.
	data, _ := json.Marshal(map[string]any{"availability": availability})

	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewXMLAvailabilityResponse creates a 200 OK XML response for records.
func NewXMLAvailabilityResponse(records map[string][]holding.Holding) MockResponse {
	type xmlRecord struct {
		ID       string            `xml:"id,attr"`
		Holdings []holding.Holding `xml:"holdings>holding"`
	}
	type xmlBody struct {
		XMLName xml.Name    `xml:"availability-response"`
		Records []xmlRecord `xml:"availability>record"`
	}

	body := xmlBody{}
	for id, hs := range records {
		body.Records = append(body.Records, xmlRecord{ID: id, Holdings: hs})
	}
	data, _ := xml.Marshal(body)

	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       xml.Header + string(data),
		Headers:    map[string]string{"Content-Type": "application/xml; charset=utf-8"},
	}
}

// NewEndpointErrorResponse creates a 200 OK response carrying an error field.
func NewEndpointErrorResponse(message string) MockResponse {
	data, _ := json.Marshal(map[string]string{"error": message})
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       "not found",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "<html>maintenance</html>",
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
