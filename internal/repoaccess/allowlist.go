package repoaccess

import (
	"fmt"
	"sort"
)

// AllowedRepository is one entry of a run's allow-list. It carries no secrets.
type AllowedRepository struct {
	IntegrationID string `json:"integrationId"`
	Owner         string `json:"owner"`
	Repo          string `json:"repo"`
}

// AllowList is the set of repositories a single run's agent tools may query.
// It is immutable after construction.
type AllowList struct {
	entries map[string]AllowedRepository
}

func NewAllowList(repos ...AllowedRepository) *AllowList {
	entries := make(map[string]AllowedRepository, len(repos))
	for _, r := range repos {
		entries[r.IntegrationID] = r
	}
	return &AllowList{entries: entries}
}

// Lookup returns the entry for integrationID or an ErrNotAllowed access error.
func (a *AllowList) Lookup(integrationID string) (AllowedRepository, error) {
	if entry, ok := a.entries[integrationID]; ok {
		return entry, nil
	}
	return AllowedRepository{}, &AccessError{
		Kind:          ErrNotAllowed,
		IntegrationID: integrationID,
		Message:       fmt.Sprintf("Repository access denied. integrationId %s is not in the allowed repositories for this run.", integrationID),
	}
}

// Entries returns the allow-list sorted by integration id.
func (a *AllowList) Entries() []AllowedRepository {
	out := make([]AllowedRepository, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IntegrationID < out[j].IntegrationID })
	return out
}

func (a *AllowList) Len() int {
	return len(a.entries)
}
