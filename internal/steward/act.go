package steward

import (
	"context"
	"net/http"
)

// InterventionResult is the response from POST /api/v1/intervention.
type InterventionResult struct {
	Success bool   `json:"success"`
	Details string `json:"details"`
	ID      uint64 `json:"id,omitempty"`
}

// Actor applies interventions through the admin API.
type Actor struct {
	api apiClient
}

// NewActor creates an Actor that authenticates with adminKey.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{api: newAPIClient(baseURL, adminKey)}
}

// Act posts one intervention.
func (a *Actor) Act(ctx context.Context, iv *Intervention) (*InterventionResult, error) {
	var res InterventionResult
	if err := a.api.call(ctx, http.MethodPost, "/api/v1/intervention", iv, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
