package pagination

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tomhatch/slotscope/pkg/client"
	"github.com/tomhatch/slotscope/pkg/timeslot"
)

// ErrPaginationStalled is returned when the continuation cursor fails to
// advance, or the page cap is reached, during a walk. The cursor is
// server-provided; a stalled one would otherwise loop forever.
var ErrPaginationStalled = errors.New("pagination stalled: continuation cursor did not advance")

// SlotQuerier is the transport capability a walker needs: fetch one page
// of a provider's open slots.
type SlotQuerier interface {
	GetSlotPage(ctx context.Context, req client.SlotPageRequest) (*client.SlotPage, error)
}

// WalkerConfig holds the walk parameters that are constant for a run.
type WalkerConfig struct {
	// DayStartTime is the lower bound of the first page (e.g. "06:00:00").
	DayStartTime string

	// DayEndTime is the upper bound sent with every page query.
	DayEndTime string

	// MaxPages caps the pagination chain for one (provider, date).
	MaxPages int

	// Practice-level query parameters.
	PracticeID    string
	VisitType     string
	VisitCode     string
	VisitReasonID string
}

// DefaultWalkerConfig returns the walk parameters matching a full
// clinic day.
func DefaultWalkerConfig() WalkerConfig {
	return WalkerConfig{
		DayStartTime: "06:00:00",
		DayEndTime:   "23:59:00",
		MaxPages:     50,
	}
}

// Walker retrieves all open slots for one (provider, date) by following
// the server's continuation cursor until it signals completion.
type Walker struct {
	querier SlotQuerier
	config  WalkerConfig
}

// NewWalker creates a walker over the given transport.
func NewWalker(querier SlotQuerier, config WalkerConfig) *Walker {
	if config.DayStartTime == "" {
		config.DayStartTime = "06:00:00"
	}
	if config.DayEndTime == "" {
		config.DayEndTime = "23:59:00"
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 50
	}
	return &Walker{
		querier: querier,
		config:  config,
	}
}

// continuationState is the per-walk cursor. It lives only for the
// duration of one Walk call and is never shared.
type continuationState struct {
	nextStartTime string
	hasMore       bool
}

// Walk drives the page query for one (provider, date) to exhaustion and
// returns the union of all pages' slots.
//
// A non-success status on a well-formed page ends the walk normally
// with whatever has been accumulated: the server signals "no more
// availability" that way, not a fault. Transport failures and malformed
// payloads are returned as errors.
func (w *Walker) Walk(ctx context.Context, provider timeslot.ProviderRef, date string) ([]timeslot.RawSlot, error) {
	state := continuationState{
		nextStartTime: w.config.DayStartTime,
		hasMore:       true,
	}

	var slots []timeslot.RawSlot
	pages := 0

	for state.hasMore {
		if pages >= w.config.MaxPages {
			return nil, fmt.Errorf("%w: page cap %d reached for npi %s on %s",
				ErrPaginationStalled, w.config.MaxPages, provider.NPI, date)
		}

		page, err := w.querier.GetSlotPage(ctx, client.SlotPageRequest{
			NPI:           provider.NPI,
			FacilityID:    provider.FacilityID,
			Date:          date,
			StartTime:     state.nextStartTime,
			EndTime:       w.config.DayEndTime,
			PracticeID:    w.config.PracticeID,
			VisitType:     w.config.VisitType,
			VisitCode:     w.config.VisitCode,
			VisitReasonID: w.config.VisitReasonID,
		})
		if err != nil {
			return nil, err
		}
		pages++

		if !page.Success() {
			log.Debug().
				Str("npi", provider.NPI).
				Str("date", date).
				Int("pages", pages).
				Str("status", page.Status).
				Msg("Walk ended by non-success status")
			break
		}

		slots = append(slots, page.Slots...)

		if !page.More || page.NextStartTime == "" {
			state.hasMore = false
			continue
		}

		// The cursor must strictly advance in wall-clock time.
		// Zero-padded HH:MM:SS compares correctly as a string.
		if page.NextStartTime <= state.nextStartTime {
			return nil, fmt.Errorf("%w: cursor %q after %q for npi %s on %s",
				ErrPaginationStalled, page.NextStartTime, state.nextStartTime, provider.NPI, date)
		}
		state.nextStartTime = page.NextStartTime
	}

	log.Debug().
		Str("npi", provider.NPI).
		Str("date", date).
		Int("pages", pages).
		Int("slots", len(slots)).
		Msg("Walk complete")

	return slots, nil
}
