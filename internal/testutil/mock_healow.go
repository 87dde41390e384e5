// Package testutil provides testing utilities for the scheduling API
// client.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// DefaultCSRFToken is the token embedded in the mock practice page.
const DefaultCSRFToken = "mock-csrf-token"

// MockProvider is one provider entry served by the provider list action.
type MockProvider struct {
	NPI       string
	FirstName string
	LastName  string
	Degree    string
}

// MockSlotPage is one page of the paginated slot response for a
// (npi, date) pair. Times are raw "HH:MM:SS" strings.
type MockSlotPage struct {
	Times         []string
	More          bool
	NextStartTime string
}

// MockScheduling is a configurable mock of the scheduling API for
// testing: practice landing page with a CSRF meta tag, provider list
// action, and scripted paginated slot pages.
type MockScheduling struct {
	server *httptest.Server

	mu        sync.Mutex
	token     string
	handlers  map[string]ActionHandler
	providers map[string][]MockProvider      // facility_id -> providers
	pages     map[string][]MockSlotPage      // npi|date -> page script
	cursor    map[string]int                 // npi|date -> next page index

	// Tracking
	RequestCount    int
	SlotPageCount   int
	LastRequestForm url.Values
	LastCSRFHeader  string
}

// NewMockScheduling creates a mock scheduling server. PracticePath is
// the path serving the CSRF landing page.
func NewMockScheduling(practicePath string) *MockScheduling {
	mock := &MockScheduling{
		token:     DefaultCSRFToken,
		handlers:  make(map[string]ActionHandler),
		providers: make(map[string][]MockProvider),
		pages:     make(map[string][]MockSlotPage),
		cursor:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(practicePath, mock.handlePracticePage)
	mux.HandleFunc("/HealowWebController", mock.handleController)
	mock.server = httptest.NewServer(mux)
	return mock
}

// URL returns the mock server URL.
func (m *MockScheduling) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockScheduling) Close() {
	m.server.Close()
}

// Reset clears tracking counters and pagination cursors.
func (m *MockScheduling) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.SlotPageCount = 0
	m.LastRequestForm = nil
	m.LastCSRFHeader = ""
	m.cursor = make(map[string]int)
}

// SetToken overrides the CSRF token on the landing page.
func (m *MockScheduling) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

// SetProviders configures the provider list for a facility.
func (m *MockScheduling) SetProviders(facilityID string, providers []MockProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[facilityID] = providers
}

// ScriptSlotPages configures the page sequence for one (npi, date).
// Pages are served in order; requests past the end of the script get a
// non-success status, matching the remote's "no more availability"
// signal.
func (m *MockScheduling) ScriptSlotPages(npi, date string, pages []MockSlotPage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[npi+"|"+date] = pages
}

// ActionHandler handles one controller action. The request body has
// already been consumed; form carries the decoded fields.
type ActionHandler func(w http.ResponseWriter, form url.Values)

// SetActionHandler overrides the response for one controller action.
func (m *MockScheduling) SetActionHandler(action string, handler ActionHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[action] = handler
}

// GetRequestCount returns the total number of requests served.
func (m *MockScheduling) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

func (m *MockScheduling) handlePracticePage(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.RequestCount++
	token := m.token
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	fmt.Fprintf(w, `<!DOCTYPE html><html><head><meta name="_csrf" content=%q></head><body></body></html>`, token)
}

func (m *MockScheduling) handleController(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	form := parseRawForm(r)

	m.mu.Lock()
	m.RequestCount++
	m.LastRequestForm = form
	m.LastCSRFHeader = r.Header.Get("X-CSRF-TOKEN")
	custom := m.handlers[action]
	m.mu.Unlock()

	if custom != nil {
		custom(w, form)
		return
	}

	switch action {
	case "GetAvilableApptProvidersList":
		m.serveProviderList(w, form)
	case "GetProviderSlotsByDate":
		m.serveSlotPage(w, form)
	default:
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"status": "error", "message": "unknown action %s"}`, action)
	}
}

// parseRawForm decodes the raw "k=v&k=v" body the API expects. Values
// are taken verbatim without percent-decoding, matching how the real
// endpoint treats them.
func parseRawForm(r *http.Request) url.Values {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil
	}
	form := make(url.Values)
	for _, pair := range strings.Split(string(body), "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key != "" {
			form.Add(key, value)
		}
	}
	return form
}

func (m *MockScheduling) serveProviderList(w http.ResponseWriter, form url.Values) {
	m.mu.Lock()
	providers := m.providers[form.Get("facility_id")]
	m.mu.Unlock()

	entries := make([]map[string]string, 0, len(providers))
	for _, p := range providers {
		entries = append(entries, map[string]string{
			"provider_npi":    p.NPI,
			"provider_fname":  p.FirstName,
			"provider_lname":  p.LastName,
			"provider_degree": p.Degree,
		})
	}

	writeJSON(w, map[string]any{
		"status": "success",
		"response": map[string]any{
			"prov_list": entries,
		},
	})
}

func (m *MockScheduling) serveSlotPage(w http.ResponseWriter, form url.Values) {
	npi := form.Get("npi")
	date := form.Get("appt_date")
	key := npi + "|" + date

	m.mu.Lock()
	m.SlotPageCount++
	script := m.pages[key]
	idx := m.cursor[key]
	m.cursor[key] = idx + 1
	m.mu.Unlock()

	if idx >= len(script) {
		writeJSON(w, map[string]any{"status": "no_slots"})
		return
	}
	page := script[idx]

	slots := make([]map[string]string, 0, len(page.Times))
	for _, t := range page.Times {
		slots = append(slots, map[string]string{"date": date, "time": t})
	}

	writeJSON(w, map[string]any{
		"status": "success",
		"response": map[string]any{
			"appt_more_slots": map[string]any{
				"appt_slots":      slots,
				"more":            page.More,
				"next_start_time": page.NextStartTime,
			},
		},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Write(data)
}
