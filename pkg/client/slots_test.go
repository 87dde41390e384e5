package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newSlotTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c, err := New(DefaultConfig(ts.URL, testPracticePath))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.SetToken("tok")
	return c
}

func testPageRequest() SlotPageRequest {
	return SlotPageRequest{
		NPI:           "1234567890",
		FacilityID:    "13",
		Date:          "2026-09-01",
		StartTime:     "06:00:00",
		EndTime:       "23:59:00",
		PracticeID:    "9296",
		VisitType:     "1",
		VisitCode:     "SICK",
		VisitReasonID: "188344",
	}
}

func TestGetSlotPage_Success(t *testing.T) {
	c := newSlotTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "success",
			"response": {
				"appt_more_slots": {
					"appt_slots": [
						{"date": "2026-09-01", "time": "09:05:00"},
						{"date": "2026-09-01", "time": "09:20:00"}
					],
					"more": true,
					"next_start_time": "09:35:00"
				}
			}
		}`))
	})

	page, err := c.GetSlotPage(context.Background(), testPageRequest())
	if err != nil {
		t.Fatalf("GetSlotPage error: %v", err)
	}

	if !page.Success() {
		t.Errorf("Success() = false, want true")
	}
	if len(page.Slots) != 2 {
		t.Fatalf("len(Slots) = %d, want 2", len(page.Slots))
	}
	if page.Slots[0].FacilityID != "13" || page.Slots[0].Date != "2026-09-01" || page.Slots[0].Time != "09:05:00" {
		t.Errorf("Slots[0] = %+v", page.Slots[0])
	}
	if !page.More {
		t.Error("More = false, want true")
	}
	if page.NextStartTime != "09:35:00" {
		t.Errorf("NextStartTime = %q, want %q", page.NextStartTime, "09:35:00")
	}
}

func TestGetSlotPage_LastPage(t *testing.T) {
	c := newSlotTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"status": "success",
			"response": {
				"appt_more_slots": {
					"appt_slots": [{"date": "2026-09-01", "time": "16:40:00"}],
					"more": false,
					"next_start_time": null
				}
			}
		}`))
	})

	page, err := c.GetSlotPage(context.Background(), testPageRequest())
	if err != nil {
		t.Fatalf("GetSlotPage error: %v", err)
	}

	if page.More {
		t.Error("More = true, want false")
	}
	if page.NextStartTime != "" {
		t.Errorf("NextStartTime = %q, want empty", page.NextStartTime)
	}
}

func TestGetSlotPage_NonSuccessStatus(t *testing.T) {
	c := newSlotTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "fail"}`))
	})

	page, err := c.GetSlotPage(context.Background(), testPageRequest())
	if err != nil {
		t.Fatalf("GetSlotPage error: %v", err)
	}

	// Non-success status is an end-of-stream signal, not a fault.
	if page.Success() {
		t.Error("Success() = true, want false")
	}
	if len(page.Slots) != 0 {
		t.Errorf("len(Slots) = %d, want 0", len(page.Slots))
	}
}

func TestGetSlotPage_MissingStatus(t *testing.T) {
	c := newSlotTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {}}`))
	})

	_, err := c.GetSlotPage(context.Background(), testPageRequest())
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("GetSlotPage = %v, want ErrProtocolViolation", err)
	}
}

func TestGetSlotPage_SuccessWithoutSlotsBlock(t *testing.T) {
	c := newSlotTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "success", "response": {}}`))
	})

	_, err := c.GetSlotPage(context.Background(), testPageRequest())
	if !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("GetSlotPage = %v, want ErrProtocolViolation", err)
	}
}

func TestGetSlotPage_NonJSONBody(t *testing.T) {
	c := newSlotTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	})

	_, err := c.GetSlotPage(context.Background(), testPageRequest())
	var rqe *RemoteQueryError
	if !errors.As(err, &rqe) {
		t.Fatalf("GetSlotPage = %v, want *RemoteQueryError", err)
	}
}

func TestGetSlotPage_SendsOrderedPayload(t *testing.T) {
	var gotBody string
	c := newSlotTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		w.Write([]byte(`{"status": "fail"}`))
	})

	if _, err := c.GetSlotPage(context.Background(), testPageRequest()); err != nil {
		t.Fatalf("GetSlotPage error: %v", err)
	}

	want := "npi=1234567890&apu_id=9296&facility_id=13&appt_date=2026-09-01" +
		"&start_time=06:00:00&end_time=23:59:00&visit_type=1&visit_code=SICK" +
		"&practice_visit_reason_id=188344"
	if gotBody != want {
		t.Errorf("payload = %q, want %q", gotBody, want)
	}
}
