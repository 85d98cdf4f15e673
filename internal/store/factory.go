package store

import (
	"github.com/janburzinski/notra/core/db/sqlc"
)

type Stores struct {
	queries *sqlc.Queries
}

func NewStores(queries *sqlc.Queries) *Stores {
	return &Stores{queries: queries}
}

func (s *Stores) Triggers() TriggerStore {
	return newTriggerStore(s.queries)
}

func (s *Stores) Repositories() RepositoryStore {
	return newRepositoryStore(s.queries)
}

func (s *Stores) Organizations() OrganizationStore {
	return newOrganizationStore(s.queries)
}

func (s *Stores) Posts() PostStore {
	return newPostStore(s.queries)
}

func (s *Stores) RunLogs() RunLogStore {
	return newRunLogStore(s.queries)
}

func (s *Stores) WorkflowRuns() WorkflowRunStore {
	return newWorkflowRunStore(s.queries)
}

func (s *Stores) WorkflowSteps() WorkflowStepStore {
	return newWorkflowStepStore(s.queries)
}
