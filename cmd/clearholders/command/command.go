// Package command declares the clearholders CLI surface: a urfave/cli v1
// App with three subcommands (tree, assert-clear, clear), mirroring the
// teacher's cmd/gpud/command flag-and-subcommand layout.
package command

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"

	"github.com/curtinfy/clearholders/cmd/clearholders/common"
	"github.com/curtinfy/clearholders/pkg/holders"
	"github.com/curtinfy/clearholders/pkg/holders/metrics"
	"github.com/curtinfy/clearholders/pkg/holders/report"
	"github.com/curtinfy/clearholders/pkg/log"
	"github.com/curtinfy/clearholders/pkg/runnerexec"
	"github.com/curtinfy/clearholders/pkg/sysfs"
)

var (
	logLevel string
	logFile  string
	output   string
	dryRun   bool

	metricsAddr string
)

const usage = `
# tear down every virtual storage layer stacked on a device
sudo clearholders clear sda

# print the holders tree rooted at a device without tearing anything down
clearholders tree sda

# fail if anything but disks/partitions remains on top of a device
clearholders assert-clear sda
`

// App builds the clearholders urfave/cli v1 application.
func App() *cli.App {
	app := cli.NewApp()
	app.Name = "clearholders"
	app.Usage = "discover and tear down virtual storage layers on block devices"
	app.Description = usage

	sharedFlags := []cli.Flag{
		cli.StringFlag{
			Name:        "log-level, l",
			Usage:       "set the logging level [debug, info, warn, error]",
			Destination: &logLevel,
			Value:       "info",
		},
		cli.StringFlag{
			Name:        "log-file",
			Usage:       "set the log file path (leave empty for stderr)",
			Destination: &logFile,
		},
		cli.StringFlag{
			Name:        "output, o",
			Usage:       "output format: plain or json",
			Destination: &output,
			Value:       common.OutputFormatPlain,
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "tree",
			Usage:     "print the holders tree rooted at one or more base devices",
			ArgsUsage: "<base> [<base>...]",
			Action:    cmdTree,
			Flags:     sharedFlags,
		},
		{
			Name:      "assert-clear",
			Usage:     "fail unless only disks and partitions remain above the given bases",
			ArgsUsage: "<base> [<base>...]",
			Action:    cmdAssertClear,
			Flags:     sharedFlags,
		},
		{
			Name:      "clear",
			Usage:     "tear down every virtual storage layer above the given bases",
			ArgsUsage: "<base> [<base>...]",
			Action:    cmdClear,
			Flags: append(sharedFlags,
				cli.BoolFlag{
					Name:        "dry-run",
					Usage:       "build the tree and print the schedule without dispatching any action",
					Destination: &dryRun,
				},
				cli.StringFlag{
					Name:        "metrics-addr",
					Usage:       "if set, serve prometheus metrics on this address for the duration of the run (e.g. :9090)",
					Destination: &metricsAddr,
				},
			),
		},
	}

	return app
}

func setupLogger() error {
	level, err := log.ParseLogLevel(logLevel)
	if err != nil {
		return err
	}
	log.Logger = log.CreateLogger(level, logFile)
	return nil
}

// setup runs the shared per-invocation setup: it configures the logger and
// validates/normalizes the --output flag, rejecting an unrecognized format
// instead of silently falling back to plain output.
func setup() error {
	if err := setupLogger(); err != nil {
		return err
	}
	normalized, err := common.ParseOutputFormat(output)
	if err != nil {
		return err
	}
	output = normalized
	return nil
}

// bases collects the positional base-device arguments, letting each one
// carry a comma-separated list of device designators (e.g.
// "clearholders tree sda,sdb sdc" and "clearholders tree sda sdb sdc" are
// equivalent).
func bases(c *cli.Context) ([]string, error) {
	args := c.Args()
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one base device designator is required")
	}

	devices := make([]string, 0, len(args))
	for _, arg := range args {
		devices = append(devices, common.ParseBases(arg)...)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("at least one base device designator is required")
	}
	return devices, nil
}

func newEngine() *holders.Engine {
	runner := runnerexec.New()
	return holders.NewEngine(sysfs.New(), runner)
}

func cmdTree(c *cli.Context) error {
	if err := setup(); err != nil {
		return err
	}
	devices, err := bases(c)
	if err != nil {
		return common.WrapOutputError(output, "invalid_args", err)
	}

	engine := newEngine()
	for _, d := range devices {
		tree, err := engine.GenHoldersTree(context.Background(), d)
		if err != nil {
			return common.WrapOutputError(output, "tree_failed", err)
		}
		if output == common.OutputFormatJSON {
			if err := common.WriteJSON(report.FlattenKinds(tree)); err != nil {
				return err
			}
			continue
		}
		fmt.Println(report.FormatTree(tree))
	}
	return nil
}

func cmdAssertClear(c *cli.Context) error {
	if err := setup(); err != nil {
		return err
	}
	devices, err := bases(c)
	if err != nil {
		return common.WrapOutputError(output, "invalid_args", err)
	}

	engine := newEngine()
	if err := engine.AssertClear(context.Background(), devices); err != nil {
		return common.WrapOutputError(output, "not_clear", err)
	}
	if output == common.OutputFormatJSON {
		return common.WriteJSON(map[string]bool{"clear": true})
	}
	fmt.Println("clear")
	return nil
}

func cmdClear(c *cli.Context) error {
	if err := setup(); err != nil {
		return err
	}
	devices, err := bases(c)
	if err != nil {
		return common.WrapOutputError(output, "invalid_args", err)
	}

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Logger.Warnw("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
	}

	engine := newEngine()
	ctx := context.Background()

	if dryRun {
		trees := make([]*holders.Node, 0, len(devices))
		for _, d := range devices {
			tree, err := engine.GenHoldersTree(ctx, d)
			if err != nil {
				return common.WrapOutputError(output, "tree_failed", err)
			}
			trees = append(trees, tree)
		}
		schedule := holders.PlanShutdownHolderTrees(trees)
		if output == common.OutputFormatJSON {
			return common.WriteJSON(schedule)
		}
		for _, entry := range schedule {
			fmt.Printf("%d\t%s\t%s\n", entry.Level, entry.Kind, entry.Device)
		}
		return nil
	}

	if err := engine.ClearHolders(ctx, devices); err != nil {
		return common.WrapOutputError(output, "clear_failed", err)
	}
	if output == common.OutputFormatJSON {
		return common.WriteJSON(map[string]bool{"cleared": true})
	}
	fmt.Println("cleared")
	return nil
}
