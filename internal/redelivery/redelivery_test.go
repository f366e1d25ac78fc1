package redelivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/shinyyama/community-backend/internal/lifecycle"
	"github.com/shinyyama/community-backend/internal/model"
	"github.com/shinyyama/community-backend/internal/service"
)

// flakyNotifier fails the first `failures` calls.
type flakyNotifier struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	sent     []model.Notification
}

func (f *flakyNotifier) Notify(_ context.Context, userUID, typ, message string, txnID *string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	n := model.Notification{ID: uint64(len(f.sent) + 1), UserUID: userUID, Type: typ, Message: message, TransactionID: txnID}
	f.sent = append(f.sent, n)
	return &n, nil
}

func (f *flakyNotifier) count() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, len(f.sent)
}

var delivery = service.Delivery{
	UserUID:       "buyer-b",
	Type:          string(lifecycle.NotifyPaymentConfirmed),
	Message:       "Your payment has been confirmed.",
	TransactionID: "tx-1",
}

func newEnv(n *flakyNotifier) *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(Workflow, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(NewActivities(n).Deliver, activity.RegisterOptions{Name: ActivityName})
	return env
}

func TestWorkflow_RetriesUntilDelivered(t *testing.T) {
	n := &flakyNotifier{failures: 2, err: lifecycle.ErrNotificationDispatch}
	env := newEnv(n)

	env.ExecuteWorkflow(WorkflowName, WorkflowInput{Delivery: delivery, MaxAttempts: 5, Interval: time.Second})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var id uint64
	require.NoError(t, env.GetWorkflowResult(&id))
	assert.EqualValues(t, 1, id)
	calls, sent := n.count()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, sent)
	assert.Equal(t, "tx-1", *n.sent[0].TransactionID)
}

func TestWorkflow_UnknownRecipientIsNotRetried(t *testing.T) {
	n := &flakyNotifier{failures: 10, err: lifecycle.ErrUnknownRecipient}
	env := newEnv(n)

	env.ExecuteWorkflow(WorkflowName, WorkflowInput{Delivery: delivery, MaxAttempts: 5, Interval: time.Second})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	calls, _ := n.count()
	assert.Equal(t, 1, calls)
}

func TestWorkflow_GivesUpAfterMaxAttempts(t *testing.T) {
	n := &flakyNotifier{failures: 10, err: errors.New("db down")}
	env := newEnv(n)

	env.ExecuteWorkflow(WorkflowName, WorkflowInput{Delivery: delivery, MaxAttempts: 3, Interval: time.Second})
	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	calls, _ := n.count()
	assert.Equal(t, 3, calls)
}

func TestInline_RetriesInBackground(t *testing.T) {
	n := &flakyNotifier{failures: 1, err: lifecycle.ErrNotificationDispatch}
	r := NewInline(n, 3, time.Millisecond, nil)
	require.NoError(t, r.Enqueue(context.Background(), delivery))
	r.Wait()

	calls, sent := n.count()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, sent)
}

func TestInline_StopsOnUnknownRecipient(t *testing.T) {
	n := &flakyNotifier{failures: 10, err: lifecycle.ErrUnknownRecipient}
	r := NewInline(n, 5, time.Millisecond, nil)
	require.NoError(t, r.Enqueue(context.Background(), delivery))
	r.Wait()

	calls, _ := n.count()
	assert.Equal(t, 1, calls)
}

func TestInline_RejectsAfterClose(t *testing.T) {
	r := NewInline(&flakyNotifier{}, 1, time.Hour, nil)
	require.NoError(t, r.Enqueue(context.Background(), delivery))
	r.Close()
	require.Error(t, r.Enqueue(context.Background(), delivery))
}

func TestWorkflowID_IsStablePerDelivery(t *testing.T) {
	assert.Equal(t, workflowID(delivery), workflowID(delivery))
	other := delivery
	other.Type = string(lifecycle.NotifyOrderShipped)
	assert.NotEqual(t, workflowID(delivery), workflowID(other))
}

func TestTemporal_EnqueueStartsWorkflow(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
		return o.ID == workflowID(delivery) && o.TaskQueue == TaskQueue
	}), WorkflowName, mock.Anything).Return(nil, nil).Once()

	require.NoError(t, NewTemporal(c, 3, time.Second).Enqueue(context.Background(), delivery))
	c.AssertExpectations(t)
}

func TestTemporal_EnqueueIgnoresAlreadyStarted(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, WorkflowName, mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "")).Once()
	require.NoError(t, NewTemporal(c, 3, time.Second).Enqueue(context.Background(), delivery))

	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, WorkflowName, mock.Anything).
		Return(nil, errors.New("frontend unavailable")).Once()
	require.Error(t, NewTemporal(c, 3, time.Second).Enqueue(context.Background(), delivery))
}
