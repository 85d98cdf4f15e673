package service

import (
	"log/slog"

	"github.com/janburzinski/notra/internal/notify"
	"github.com/janburzinski/notra/internal/queue"
	"github.com/janburzinski/notra/internal/store"
)

type Services struct {
	stores    *store.Stores
	txRunner  TxRunner
	producer  queue.Producer
	retention RetentionLookup
	secrets   SecretDecrypter
	logger    *slog.Logger
}

func NewServices(stores *store.Stores, txRunner TxRunner, producer queue.Producer, retention RetentionLookup, secrets SecretDecrypter, logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{
		stores:    stores,
		txRunner:  txRunner,
		producer:  producer,
		retention: retention,
		secrets:   secrets,
		logger:    logger,
	}
}

func (s *Services) Starter() WorkflowStarter {
	return NewWorkflowStarter(s.txRunner, s.producer, s.logger)
}

func (s *Services) ManualRuns() ManualRunService {
	return NewManualRunService(
		s.stores.Triggers(),
		s.Starter(),
		s.retention,
		notify.NewAuditSink(s.stores.RunLogs(), s.logger),
		s.logger,
	)
}

func (s *Services) Webhooks() WebhookService {
	return NewWebhookService(
		s.stores.Repositories(),
		s.stores.Triggers(),
		s.secrets,
		s.Starter(),
		s.logger,
	)
}
