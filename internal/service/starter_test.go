package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/queue"
	"github.com/janburzinski/notra/internal/service"
	"github.com/janburzinski/notra/internal/workflow"
)

var _ = Describe("WorkflowStarter", func() {
	var (
		ctx      context.Context
		runs     *mockRunStore
		tx       *mockTxRunner
		producer *mockProducer
		starter  service.WorkflowStarter
	)

	BeforeEach(func() {
		ctx = context.Background()
		runs = &mockRunStore{}
		tx = &mockTxRunner{runs: runs}
		producer = &mockProducer{}
		starter = service.NewWorkflowStarter(tx, producer, nil)
	})

	It("persists pending runs and queues one task per run", func() {
		ids, err := starter.Start(ctx,
			service.RunRequest{
				Workflow:       model.WorkflowEvent,
				OrganizationID: "org_1",
				TriggerID:      "trg_1",
				Payload:        workflow.EventPayload{TriggerID: "trg_1", EventType: "release", EventAction: "published", EventData: map[string]any{"tagName": "v1"}, RepositoryID: "int_1"},
			},
			service.RunRequest{
				Workflow: model.WorkflowSchedule,
				Payload:  workflow.SchedulePayload{TriggerID: "trg_2", Manual: true},
			},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(ids).To(HaveLen(2))
		Expect(ids[0]).To(HavePrefix("wfr_"))
		Expect(ids[0]).NotTo(Equal(ids[1]))

		Expect(runs.created).To(HaveLen(2))
		first := runs.created[0]
		Expect(first.ID).To(Equal(ids[0]))
		Expect(first.Status).To(Equal(model.RunStatusPending))
		Expect(*first.OrganizationID).To(Equal("org_1"))
		Expect(*first.TriggerID).To(Equal("trg_1"))
		Expect(decode(first.Payload)).To(HaveKeyWithValue("eventType", "release"))
		Expect(runs.created[1].OrganizationID).To(BeNil())

		Expect(producer.tasks).To(Equal([]queue.Task{
			{TaskType: queue.TaskTypeEventWorkflow, RunID: ids[0], Attempt: 1},
			{TaskType: queue.TaskTypeScheduleWorkflow, RunID: ids[1], Attempt: 1},
		}))
	})

	It("queues nothing when the transaction fails", func() {
		runs.createFn = func(context.Context, *model.WorkflowRun) error {
			return errors.New("unique violation")
		}

		_, err := starter.Start(ctx, service.RunRequest{Workflow: model.WorkflowSchedule, Payload: workflow.SchedulePayload{TriggerID: "trg_2"}})
		Expect(err).To(MatchError(ContainSubstring("unique violation")))
		Expect(tx.rolledBack).To(BeTrue())
		Expect(producer.tasks).To(BeEmpty())
	})

	It("reports enqueue failures", func() {
		producer.enqueueFn = func(context.Context, queue.Task) error {
			return errors.New("redis down")
		}

		_, err := starter.Start(ctx, service.RunRequest{Workflow: model.WorkflowSchedule, Payload: workflow.SchedulePayload{TriggerID: "trg_2"}})
		Expect(err).To(MatchError(ContainSubstring("redis down")))
	})

	It("rejects unknown workflows before touching the store", func() {
		_, err := starter.Start(ctx, service.RunRequest{Workflow: "nightly"})
		Expect(err).To(HaveOccurred())
		Expect(runs.created).To(BeEmpty())
	})
})
