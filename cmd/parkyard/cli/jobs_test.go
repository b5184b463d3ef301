package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/jobs"
)

type fakeJobs struct {
	name  string
	opts  TriggerOptions
	stats QueueStats
	err   error
}

func (f *fakeJobs) Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.name = name
	f.opts = opts
	return &asynq.TaskInfo{ID: "t-1", Type: name, Queue: jobs.QueueDefault}, nil
}

func (f *fakeJobs) InspectQueue(ctx context.Context) (QueueStats, error) {
	return f.stats, f.err
}

func TestBuildTaskPayloads(t *testing.T) {
	task, err := BuildTask(jobs.TaskStaleSessionScan, TriggerOptions{Threshold: 6 * time.Hour})
	require.NoError(t, err)
	var scan jobs.StaleSessionScanPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &scan))
	require.Equal(t, "6h0m0s", scan.OpenLongerThan)

	task, err = BuildTask(jobs.TaskLedgerWarmup, TriggerOptions{SessionID: 7})
	require.NoError(t, err)
	var warm jobs.LedgerWarmupPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &warm))
	require.Equal(t, int64(7), warm.SessionID)

	_, err = BuildTask(jobs.TaskLedgerWarmup, TriggerOptions{})
	require.Error(t, err)

	_, err = BuildTask("unknown:job", TriggerOptions{})
	require.Error(t, err)
}

func TestRunJobsTrigger(t *testing.T) {
	api := &fakeJobs{}
	var stdout, stderr bytes.Buffer
	code := RunJobs(context.Background(), api, []string{"trigger", "--session", "12", jobs.TaskLedgerWarmup}, &stdout, &stderr)
	require.Zero(t, code, stderr.String())
	require.Equal(t, jobs.TaskLedgerWarmup, api.name)
	require.Equal(t, int64(12), api.opts.SessionID)
	require.Contains(t, stdout.String(), "id=t-1")

	stdout.Reset()
	code = RunJobs(context.Background(), api, []string{"trigger"}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestRunJobsStats(t *testing.T) {
	api := &fakeJobs{stats: QueueStats{Queue: "default", Pending: 3, Retry: 1}}
	var stdout, stderr bytes.Buffer
	require.Zero(t, RunJobs(context.Background(), api, []string{"stats"}, &stdout, &stderr))
	require.Equal(t, "queue=default pending=3 active=0 scheduled=0 retry=1\n", stdout.String())

	api.err = errors.New("redis down")
	require.Equal(t, 1, RunJobs(context.Background(), api, []string{"stats"}, &stdout, &stderr))
	require.Contains(t, stderr.String(), "redis down")

	require.Equal(t, 1, RunJobs(context.Background(), api, []string{"bogus"}, &stdout, &stderr))
}

func TestNilJobsCLIReportsUnconfigured(t *testing.T) {
	var c *JobsCLI
	_, err := c.Trigger(context.Background(), jobs.TaskStaleSessionScan, TriggerOptions{})
	require.Error(t, err)
	_, err = c.InspectQueue(context.Background())
	require.Error(t, err)
	_, err = c.ListScheduled(context.Background(), 0)
	require.Error(t, err)
}
