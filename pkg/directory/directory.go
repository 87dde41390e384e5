package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomhatch/slotscope/pkg/cache"
	"github.com/tomhatch/slotscope/pkg/client"
	"github.com/tomhatch/slotscope/pkg/timeslot"
)

// DefaultCacheTTL is how long a facility's provider list stays cached.
// Rosters change on the order of weeks; one hour is conservative.
const DefaultCacheTTL = time.Hour

// FormPoster is the transport capability the directory needs.
type FormPoster interface {
	PostForm(ctx context.Context, action string, fields []client.FormField) ([]byte, error)
}

// Service retrieves provider lists per facility, with an optional
// fixed-TTL cache in front of the remote call.
type Service struct {
	poster   FormPoster
	registry *Registry
	cache    *cache.Manager
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewService creates a directory service. manager may be nil to disable
// caching.
func NewService(poster FormPoster, registry *Registry, manager *cache.Manager, logger zerolog.Logger) *Service {
	return &Service{
		poster:   poster,
		registry: registry,
		cache:    manager,
		cacheTTL: DefaultCacheTTL,
		logger:   logger.With().Str("component", "directory").Logger(),
	}
}

// SetCacheTTL overrides the provider list cache lifetime.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// providerListEnvelope mirrors the provider list response shape.
type providerListEnvelope struct {
	Status   string `json:"status"`
	Response *struct {
		ProvList []struct {
			NPI       string `json:"provider_npi"`
			FirstName string `json:"provider_fname"`
			LastName  string `json:"provider_lname"`
			Degree    string `json:"provider_degree"`
		} `json:"prov_list"`
	} `json:"response"`
}

// ListProviders returns the providers offering appointments at one
// facility. Results are cached per facility for the configured TTL.
func (s *Service) ListProviders(ctx context.Context, facility Facility) ([]timeslot.ProviderRef, error) {
	key := cache.Key{
		Endpoint: client.ActionProviderList,
		Params: map[string]string{
			"apu_id":      s.registry.PracticeID,
			"facility_id": facility.ID,
		},
	}

	if providers, ok := s.fromCache(ctx, key); ok {
		s.logger.Debug().
			Str("facility_id", facility.ID).
			Int("providers", len(providers)).
			Msg("Provider list served from cache")
		return providers, nil
	}

	providers, err := s.fetch(ctx, facility)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, key, providers)

	s.logger.Info().
		Str("facility_id", facility.ID).
		Int("providers", len(providers)).
		Msg("Provider list retrieved")
	return providers, nil
}

// ListAllProviders returns the providers of every configured facility,
// in facility configuration order. The first facility error aborts the
// listing: without a complete directory the task matrix is undefined.
func (s *Service) ListAllProviders(ctx context.Context) ([]timeslot.ProviderRef, error) {
	var all []timeslot.ProviderRef
	for _, facility := range s.registry.Facilities() {
		providers, err := s.ListProviders(ctx, facility)
		if err != nil {
			return nil, fmt.Errorf("facility %s: %w", facility.ID, err)
		}
		all = append(all, providers...)
	}
	return all, nil
}

func (s *Service) fetch(ctx context.Context, facility Facility) ([]timeslot.ProviderRef, error) {
	fields := []client.FormField{
		{Key: "apu_id", Value: s.registry.PracticeID},
		{Key: "speciality_name", Value: "Pediatrician"},
		{Key: "speciality_id", Value: "10"},
		{Key: "facility_id", Value: facility.ID},
		{Key: "provider_npi", Value: ""},
		{Key: "prov_gender", Value: "any"},
		{Key: "language_id", Value: ""},
		{Key: "language", Value: "Select"},
		{Key: "zip", Value: facility.Zip},
		{Key: "lat", Value: ""},
		{Key: "lng", Value: ""},
		{Key: "location", Value: facility.Location},
		{Key: "sort_by", Value: "appt_date"},
		{Key: "sort_order", Value: "ASC"},
		{Key: "oa_source", Value: "3"},
		{Key: "page", Value: "1"},
		{Key: "limit", Value: "100"},
	}

	body, err := s.poster.PostForm(ctx, client.ActionProviderList, fields)
	if err != nil {
		return nil, err
	}

	var envelope providerListEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &client.RemoteQueryError{
			Endpoint:   client.ActionProviderList,
			ErrorClass: client.ErrorClassServer,
			Message:    "response body is not JSON",
			Err:        err,
		}
	}
	if envelope.Status != "success" {
		return nil, fmt.Errorf("%w: provider list status %q for facility %s",
			client.ErrProtocolViolation, envelope.Status, facility.ID)
	}
	if envelope.Response == nil {
		return nil, fmt.Errorf("%w: provider list response missing prov_list for facility %s",
			client.ErrProtocolViolation, facility.ID)
	}

	providers := make([]timeslot.ProviderRef, 0, len(envelope.Response.ProvList))
	for _, p := range envelope.Response.ProvList {
		if p.NPI == "" {
			return nil, fmt.Errorf("%w: provider entry without provider_npi for facility %s",
				client.ErrProtocolViolation, facility.ID)
		}
		providers = append(providers, timeslot.ProviderRef{
			NPI:         p.NPI,
			DisplayName: strings.TrimSpace(p.FirstName + " " + p.LastName),
			Degree:      p.Degree,
			FacilityID:  facility.ID,
		})
	}
	return providers, nil
}

func (s *Service) fromCache(ctx context.Context, key cache.Key) ([]timeslot.ProviderRef, bool) {
	if s.cache == nil {
		return nil, false
	}
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Cache read failed")
		}
		return nil, false
	}
	var providers []timeslot.ProviderRef
	if err := json.Unmarshal(entry.Data, &providers); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Corrupt cached provider list")
		return nil, false
	}
	return providers, true
}

func (s *Service) toCache(ctx context.Context, key cache.Key, providers []timeslot.ProviderRef) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(providers)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, cache.NewEntry(data, s.cacheTTL)); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key.String()).Msg("Cache write failed")
	}
}
