package model

import "time"

// Provider is the repository host.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGitLab Provider = "gitlab"
)

// RepositoryIntegration is the persisted connection between an organization
// and one repository. Secrets stay encrypted on this type.
type RepositoryIntegration struct {
	ID                     string    `json:"id"`
	OrganizationID         string    `json:"organizationId"`
	Provider               Provider  `json:"provider"`
	DisplayName            string    `json:"displayName"`
	Owner                  string    `json:"owner"`
	Repo                   string    `json:"repo"`
	DefaultBranch          *string   `json:"defaultBranch,omitempty"`
	APIBaseURL             *string   `json:"apiBaseUrl,omitempty"`
	Enabled                bool      `json:"enabled"`
	RepositoryEnabled      bool      `json:"repositoryEnabled"`
	EncryptedToken         *string   `json:"-"`
	EncryptedWebhookSecret *string   `json:"-"`
	CreatedAt              time.Time `json:"createdAt"`
	UpdatedAt              time.Time `json:"updatedAt"`
}

// RepositoryContext is a resolved, usable repository. It is never persisted
// and Token must never be logged.
type RepositoryContext struct {
	IntegrationID  string
	OrganizationID string
	Provider       Provider
	Owner          string
	Repo           string
	DefaultBranch  *string
	APIBaseURL     *string
	Token          string `json:"-"`
}

// FullName returns "owner/repo".
func (r RepositoryContext) FullName() string {
	return r.Owner + "/" + r.Repo
}
