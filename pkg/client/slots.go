package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tomhatch/slotscope/pkg/timeslot"
)

// SlotPageRequest identifies one page query of a provider's open slots.
// StartTime is the lower bound of the page; the continuation walker
// advances it from the previous page's cursor.
type SlotPageRequest struct {
	NPI        string
	FacilityID string
	Date       string
	StartTime  string
	EndTime    string

	// Practice-level parameters, constant for a run.
	PracticeID    string
	VisitType     string
	VisitCode     string
	VisitReasonID string
}

// SlotPage is one decoded page of a provider's availability.
type SlotPage struct {
	// Status is the API's own result indicator. A non-success status on
	// a well-formed response means "no more availability", not a fault.
	Status string

	// Slots are the raw slots on this page.
	Slots []timeslot.RawSlot

	// More signals that another page follows.
	More bool

	// NextStartTime is the continuation cursor for the next page.
	// Empty when More is false or the server omitted it.
	NextStartTime string
}

// Success reports whether the API flagged the page as a success.
func (p *SlotPage) Success() bool {
	return p.Status == "success"
}

// slotPageEnvelope is the wire shape of a GetProviderSlotsByDate response.
type slotPageEnvelope struct {
	Status   string `json:"status"`
	Response struct {
		ApptMoreSlots *struct {
			ApptSlots []struct {
				Date string `json:"date"`
				Time string `json:"time"`
			} `json:"appt_slots"`
			More          bool   `json:"more"`
			NextStartTime string `json:"next_start_time"`
		} `json:"appt_more_slots"`
	} `json:"response"`
}

// GetSlotPage fetches one page of open slots for a provider on a date.
func (c *Client) GetSlotPage(ctx context.Context, req SlotPageRequest) (*SlotPage, error) {
	fields := []FormField{
		{"npi", req.NPI},
		{"apu_id", req.PracticeID},
		{"facility_id", req.FacilityID},
		{"appt_date", req.Date},
		{"start_time", req.StartTime},
		{"end_time", req.EndTime},
		{"visit_type", req.VisitType},
		{"visit_code", req.VisitCode},
		{"practice_visit_reason_id", req.VisitReasonID},
	}

	body, err := c.PostForm(ctx, ActionSlotsByDate, fields)
	if err != nil {
		return nil, err
	}

	var envelope slotPageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &RemoteQueryError{
			Endpoint:   ActionSlotsByDate,
			ErrorClass: ErrorClassServer,
			Message:    "non-JSON response body",
			Err:        err,
		}
	}

	if envelope.Status == "" {
		return nil, fmt.Errorf("%w: missing status field", ErrProtocolViolation)
	}

	page := &SlotPage{Status: envelope.Status}
	if !page.Success() {
		// End-of-stream signal, not a fault.
		return page, nil
	}

	more := envelope.Response.ApptMoreSlots
	if more == nil {
		return nil, fmt.Errorf("%w: success response without appt_more_slots", ErrProtocolViolation)
	}

	page.More = more.More
	page.NextStartTime = more.NextStartTime
	page.Slots = make([]timeslot.RawSlot, 0, len(more.ApptSlots))
	for _, s := range more.ApptSlots {
		date := s.Date
		if date == "" {
			date = req.Date
		}
		page.Slots = append(page.Slots, timeslot.RawSlot{
			FacilityID: req.FacilityID,
			Date:       date,
			Time:       s.Time,
		})
	}

	return page, nil
}
