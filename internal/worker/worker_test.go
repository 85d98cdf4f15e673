package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/janburzinski/notra/internal/model"
	"github.com/janburzinski/notra/internal/queue"
	"github.com/janburzinski/notra/internal/worker"
	"github.com/janburzinski/notra/internal/workflow"
)

func pendingRun(id string) *model.WorkflowRun {
	return &model.WorkflowRun{ID: id, Workflow: model.WorkflowEvent, Status: model.RunStatusPending}
}

func message(id, runID string, attempt int) queue.Message {
	return queue.Message{ID: id, TaskType: queue.TaskTypeEventWorkflow, RunID: runID, Attempt: attempt}
}

var _ = Describe("Worker", func() {
	var (
		ctx      context.Context
		consumer *fakeConsumer
		runs     *fakeRuns
		executor *fakeExecutor
		w        *worker.Worker
	)

	BeforeEach(func() {
		ctx = context.Background()
		consumer = &fakeConsumer{}
		runs = newFakeRuns(pendingRun("wfr_1"))
		executor = &fakeExecutor{}
		w = worker.New(consumer, runs, executor, worker.Config{MaxAttempts: 3, Concurrency: 2})
	})

	It("finishes a completed run and acknowledges the message", func() {
		executor.execute = func(*model.WorkflowRun) (workflow.Outcome, error) {
			return workflow.Complete(workflow.EventResult{Success: true, TriggerID: "trg_1", PostID: "post_1", EventType: "release"}), nil
		}

		Expect(w.ProcessMessage(ctx, message("1-0", "wfr_1", 1))).To(Succeed())

		fin, ok := runs.finishedFor("wfr_1")
		Expect(ok).To(BeTrue())
		Expect(fin.status).To(Equal(model.RunStatusCompleted))
		Expect(fin.lastError).To(BeNil())

		var stored map[string]any
		Expect(json.Unmarshal(fin.result, &stored)).To(Succeed())
		Expect(stored).To(HaveKeyWithValue("status", "completed"))
		Expect(stored["result"]).To(HaveKeyWithValue("postId", "post_1"))
		Expect(consumer.ackedIDs()).To(ConsistOf("1-0"))
	})

	It("records canceled outcomes as canceled runs", func() {
		executor.execute = func(*model.WorkflowRun) (workflow.Outcome, error) {
			return workflow.Cancel("trigger disabled"), nil
		}

		Expect(w.ProcessMessage(ctx, message("1-0", "wfr_1", 1))).To(Succeed())

		fin, _ := runs.finishedFor("wfr_1")
		Expect(fin.status).To(Equal(model.RunStatusCanceled))
		Expect(string(fin.result)).To(ContainSubstring(`"reason":"trigger disabled"`))
	})

	It("skips runs that are finished or unknown", func() {
		runs.runs["wfr_done"] = &model.WorkflowRun{ID: "wfr_done", Workflow: model.WorkflowEvent, Status: model.RunStatusCompleted}

		Expect(w.ProcessMessage(ctx, message("1-0", "wfr_done", 1))).To(Succeed())
		Expect(w.ProcessMessage(ctx, message("2-0", "wfr_missing", 1))).To(Succeed())

		Expect(executor.executed.Load()).To(BeZero())
		Expect(consumer.ackedIDs()).To(ConsistOf("1-0", "2-0"))
	})

	It("requeues a run whose execution failed before the last attempt", func() {
		executor.execute = func(*model.WorkflowRun) (workflow.Outcome, error) {
			return workflow.Outcome{}, errors.New("step fetch-trigger: connection reset")
		}

		Expect(w.Handle(ctx, message("1-0", "wfr_1", 1))).To(Succeed())

		Expect(consumer.requeued).To(ConsistOf("1-0"))
		Expect(consumer.reasons[0]).To(ContainSubstring("connection reset"))
		Expect(consumer.acked).To(BeEmpty())
		Expect(consumer.dlq).To(BeEmpty())
		Expect(runs.errored).To(HaveKeyWithValue("wfr_1", ContainSubstring("connection reset")))
		Expect(runs.runs["wfr_1"].Status).To(Equal(model.RunStatusPending))
		Expect(executor.failures).To(BeEmpty())
	})

	It("dead-letters the run and calls the failure hook on the last attempt", func() {
		executor.execute = func(*model.WorkflowRun) (workflow.Outcome, error) {
			return workflow.Outcome{}, errors.New("ledger unavailable")
		}

		Expect(w.Handle(ctx, message("1-0", "wfr_1", 3))).To(Succeed())

		Expect(consumer.dlq).To(ConsistOf("1-0"))
		Expect(consumer.requeued).To(BeEmpty())

		fin, ok := runs.finishedFor("wfr_1")
		Expect(ok).To(BeTrue())
		Expect(fin.status).To(Equal(model.RunStatusFailed))
		Expect(*fin.lastError).To(ContainSubstring("ledger unavailable"))

		Expect(executor.failures).To(HaveLen(1))
		Expect(executor.failures[0].ID).To(Equal("wfr_1"))
		Expect(executor.causes[0]).To(MatchError(ContainSubstring("ledger unavailable")))
	})

	It("treats a panicking workflow as a failed attempt", func() {
		executor.execute = func(*model.WorkflowRun) (workflow.Outcome, error) {
			panic("nil trigger")
		}

		Expect(w.Handle(ctx, message("1-0", "wfr_1", 1))).To(Succeed())

		Expect(consumer.requeued).To(ConsistOf("1-0"))
		Expect(consumer.reasons[0]).To(Equal("panic: nil trigger"))
	})

	It("retries when the run cannot be claimed", func() {
		runs.claimErr = errors.New("db down")

		Expect(w.Handle(ctx, message("1-0", "wfr_1", 1))).To(Succeed())

		Expect(executor.executed.Load()).To(BeZero())
		Expect(consumer.requeued).To(ConsistOf("1-0"))
	})

	It("drains batches with bounded concurrency until stopped", func() {
		var batch []queue.Message
		for _, id := range []string{"wfr_a", "wfr_b", "wfr_c", "wfr_d"} {
			runs.runs[id] = pendingRun(id)
			batch = append(batch, message(id+"-msg", id, 1))
		}
		consumer.batches = [][]queue.Message{batch}
		executor.execute = func(*model.WorkflowRun) (workflow.Outcome, error) {
			time.Sleep(20 * time.Millisecond)
			return workflow.Complete(nil), nil
		}

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		Eventually(consumer.ackedIDs).Should(HaveLen(4))
		w.Stop()
		var runErr error
		Eventually(done).Should(Receive(&runErr))
		Expect(runErr).NotTo(HaveOccurred())

		Expect(executor.maxRunning.Load()).To(BeNumerically("<=", 2))
		Expect(executor.executed.Load()).To(BeEquivalentTo(4))
	})
})

var _ = Describe("RedisReclaimer", func() {
	It("hands stale pending messages to the processor", func() {
		ctx := context.Background()
		mr, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		consumer, err := queue.NewRedisConsumer(client, queue.ConsumerConfig{
			Stream:    "notra_workflows",
			Group:     "notra_workers",
			Consumer:  "crashed-worker",
			BatchSize: 10,
			Block:     10 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())

		producer := queue.NewRedisProducer(client, "notra_workflows", nil)
		Expect(producer.Enqueue(ctx, queue.Task{TaskType: queue.TaskTypeScheduleWorkflow, RunID: "wfr_stale"})).To(Succeed())

		read, err := consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(read).To(HaveLen(1))

		got := make(chan queue.Message, 1)
		reclaimer := worker.NewRedisReclaimer(client, worker.RedisReclaimerConfig{
			Stream:   "notra_workflows",
			Group:    "notra_workers",
			Consumer: "worker-2",
			Interval: 10 * time.Millisecond,
		}, consumer, func(ctx context.Context, msg queue.Message) error {
			select {
			case got <- msg:
			default:
			}
			return consumer.Ack(ctx, msg)
		}, nil)

		go reclaimer.Run(ctx)
		DeferCleanup(reclaimer.Stop)

		var msg queue.Message
		Eventually(got).Should(Receive(&msg))
		Expect(msg.RunID).To(Equal("wfr_stale"))
		Expect(msg.TaskType).To(Equal(queue.TaskTypeScheduleWorkflow))
	})

	It("abandons messages that keep getting redelivered", func() {
		ctx := context.Background()
		mr, err := miniredis.Run()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(mr.Close)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)

		consumer, err := queue.NewRedisConsumer(client, queue.ConsumerConfig{
			Stream:    "notra_workflows",
			Group:     "notra_workers",
			Consumer:  "crashed-worker",
			DLQStream: "notra_workflows_dlq",
			BatchSize: 10,
			Block:     10 * time.Millisecond,
		})
		Expect(err).NotTo(HaveOccurred())

		producer := queue.NewRedisProducer(client, "notra_workflows", nil)
		Expect(producer.Enqueue(ctx, queue.Task{TaskType: queue.TaskTypeEventWorkflow, RunID: "wfr_poison"})).To(Succeed())
		_, err = consumer.Read(ctx)
		Expect(err).NotTo(HaveOccurred())

		processed := make(chan struct{}, 1)
		poisoned := make(chan string, 1)
		reclaimer := worker.NewRedisReclaimer(client, worker.RedisReclaimerConfig{
			Stream:        "notra_workflows",
			Group:         "notra_workers",
			Consumer:      "worker-2",
			Interval:      10 * time.Millisecond,
			MaxDeliveries: 1,
		}, consumer, func(context.Context, queue.Message) error {
			processed <- struct{}{}
			return nil
		}, func(ctx context.Context, msg queue.Message, cause error) {
			_ = consumer.SendDLQ(ctx, msg, cause.Error())
			select {
			case poisoned <- msg.RunID:
			default:
			}
		})

		go reclaimer.Run(ctx)
		DeferCleanup(reclaimer.Stop)

		Eventually(poisoned).Should(Receive(Equal("wfr_poison")))
		Consistently(processed, 50*time.Millisecond).ShouldNot(Receive())
		Expect(client.XLen(ctx, "notra_workflows_dlq").Val()).To(Equal(int64(1)))
	})
})
