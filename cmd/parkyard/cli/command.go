package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
)

// JobsAPI is the part of JobsCLI the command runner needs.
type JobsAPI interface {
	Trigger(ctx context.Context, name string, opts TriggerOptions) (*asynq.TaskInfo, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
}

// RunJobs executes `parkyard jobs <trigger|stats>` and returns the exit code.
func RunJobs(ctx context.Context, api JobsAPI, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "jobs: expected subcommand trigger or stats")
		return 1
	}
	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("jobs trigger", flag.ContinueOnError)
		fs.SetOutput(stderr)
		var opts TriggerOptions
		fs.Int64Var(&opts.SessionID, "session", 0, "cash session id for ledger:warmup")
		fs.DurationVar(&opts.Threshold, "threshold", 0, "open-longer-than threshold for cashsession:stale_scan")
		fs.DurationVar(&opts.Retention, "retention", 0, "key retention for idempotency:cleanup")
		if err := fs.Parse(args[1:]); err != nil {
			return 1
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(stderr, "jobs trigger: expected exactly one job name")
			return 1
		}
		info, err := api.Trigger(ctx, fs.Arg(0), opts)
		if err != nil {
			fmt.Fprintf(stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return 0
	case "stats":
		stats, err := api.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "jobs stats: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	default:
		fmt.Fprintf(stderr, "jobs: unknown subcommand %q\n", args[0])
		return 1
	}
}
