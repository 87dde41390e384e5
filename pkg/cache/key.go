package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key represents a unique identifier for a cached scheduling API response.
type Key struct {
	// Endpoint is the API action name (e.g. "GetAvilableApptProvidersList").
	Endpoint string

	// Params are the request parameters that determine the response
	// (e.g. {"facility_id": "13"}).
	Params map[string]string
}

// String generates a deterministic cache key string.
// Format: slotscope:endpoint:param1=val1:param2=val2
//
// Example:
//
//	slotscope:GetAvilableApptProvidersList:facility_id=13
func (k Key) String() string {
	parts := []string{"slotscope"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Sorted for determinism.
	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params[name]))
		}
	}

	return strings.Join(parts, ":")
}
