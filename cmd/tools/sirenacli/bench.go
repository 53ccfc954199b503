package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sirena/pkg/client"
	"sirena/pkg/proto/envelope"
)

type benchOptions struct {
	queryOptions
	numExecutor     int
	runningTime     time.Duration
	numReqPerSecond int
	statOutputRate  time.Duration
}

func newBenchCmd() *cobra.Command {
	var o benchOptions
	cmd := &cobra.Command{
		Use:   "bench METHOD [BODY]",
		Short: "Send the same query from parallel executors and report latency",
		Example: `  sirenacli -c client.toml bench order '<regnum>ABC123</regnum>' -n 4 -t 30s -r 50`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := o.request(args[0], args[1:])
			if err != nil {
				return err
			}
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			conf.UsePool = true
			if conf.Pool.MaxSize < o.numExecutor {
				conf.Pool.MaxSize = o.numExecutor
			}
			cli, err := client.New(conf)
			if err != nil {
				return err
			}
			defer cli.Close()
			return o.run(cmd, cli, request)
		},
	}
	o.addFlags(cmd)
	cmd.Flags().IntVarP(&o.numExecutor, "num-executor", "n", 1, "number of executors running in parallel")
	cmd.Flags().DurationVarP(&o.runningTime, "running-time", "t", 10*time.Second, "how long to run")
	cmd.Flags().IntVarP(&o.numReqPerSecond, "num-req-per-second", "r", 0, "expected throughput, 0 for as fast as possible")
	cmd.Flags().DurationVarP(&o.statOutputRate, "stat-output-rate", "o", 5*time.Second, "how often to print statistics")
	return cmd
}

func (o *benchOptions) run(cmd *cobra.Command, cli client.IClient, request envelope.IRequest) error {
	if o.numExecutor <= 0 {
		o.numExecutor = 1
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.runningTime)
	defer cancel()

	var interval time.Duration
	if o.numReqPerSecond > 0 {
		interval = time.Duration(o.numExecutor) * time.Second / time.Duration(o.numReqPerSecond)
	}
	stats := cli.Stats()
	stats.Reset()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < o.numExecutor; i++ {
		g.Go(func() error {
			return o.execute(ctx, cli, request, interval)
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(o.statOutputRate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				stats.PrettyPrint(cmd.OutOrStdout())
			}
		}
	})
	err := g.Wait()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d executor(s), %s\n", o.numExecutor, stats.Elapsed().Round(time.Millisecond))
	stats.PrettyPrint(cmd.OutOrStdout())
	return err
}

// execute stops on errors no repetition can fix.
func (o *benchOptions) execute(ctx context.Context, cli client.IClient, request envelope.IRequest, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}
	opts := o.options()
	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		_, err := cli.Query(ctx, request, opts...)
		switch {
		case err == nil, ctx.Err() != nil:
		case errors.Is(err, client.ErrConfig), errors.Is(err, client.ErrPoolClosed):
			return err
		default:
			if glog.V(1) {
				glog.Infof("bench: %s", err)
			}
		}
	}
}
