package demo

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/crash"
	"github.com/sthembisoo/reportit/hooks"
	"github.com/sthembisoo/reportit/utils/logger"
)

var (
	flagWorkers   int
	flagBridge    string
	flagLogFile   string
	flagEndpoint  string
	flagStorePath string
	flagConfig    string
	flagPanicMain bool
	flagLogLevel  string
)

func NewCmdDemo() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Raise errors on worker goroutines and report them",
		Long: `Raise errors on worker goroutines and report them.

Reporting is enabled for the duration of the command even when
CURSOR_EXCEPTION_REPORTING is unset. Each worker divides by zero; the panic is
reported through the configured bridges and then printed the way Go prints an
unrecovered panic, without terminating the process.

Examples:
  # Three failing workers written to .cursor/exceptions.log
  reportit demo --workers 3

  # Deliver to a collector started with "reportit serve"
  reportit demo --bridge http --endpoint http://localhost:7331/exception

  # Finish with an unrecovered panic on the main goroutine
  reportit demo --panic-main`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(os.Stderr)
		},
	}

	cmd.Flags().IntVarP(&flagWorkers, "workers", "w", 3, "Number of failing worker goroutines")
	cmd.Flags().StringVarP(&flagBridge, "bridge", "b", "", "Bridge type (file, http, both, sqlite, none)")
	cmd.Flags().StringVar(&flagLogFile, "log-file", "", "File bridge destination")
	cmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "HTTP bridge endpoint")
	cmd.Flags().StringVar(&flagStorePath, "store", "", "SQLite bridge database")
	cmd.Flags().StringVarP(&flagConfig, "config", "c", "", "TOML or YAML config file")
	cmd.Flags().BoolVar(&flagPanicMain, "panic-main", false, "Panic on the main goroutine after the workers finish")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func start(stderr io.Writer) (err error) {
	crash.SetLogger(logger.NewWithWriter(stderr, logger.Config{Level: flagLogLevel, Component: "demo"}))

	// Workers must not take the process down; the main path keeps the
	// runtime behaviour.
	prev := hooks.Global().SetGoroutineHandler(hooks.PrintHandler(stderr))
	defer hooks.Global().SetGoroutineHandler(prev)

	if err := crash.Enable(overrides()); err != nil {
		return err
	}
	defer func() {
		if cerr := crash.Disable(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close bridges: %w", cerr)
		}
	}()
	defer crash.Guard()

	runWorkers(flagWorkers)

	crash.Report(errors.New("demo: manual report after workers finished"), "worker")
	fmt.Fprintf(stderr, "reported %d worker failures\n", flagWorkers)

	if flagPanicMain {
		panic("demo: unrecovered panic on the main goroutine")
	}
	return nil
}

func overrides() config.Overrides {
	return config.Overrides{
		Enabled:      config.Bool(true),
		Bridge:       config.BridgeType(flagBridge),
		LogFile:      flagLogFile,
		HTTPEndpoint: flagEndpoint,
		StorePath:    flagStorePath,
		File:         flagConfig,
	}
}

func runWorkers(n int) {
	done := make([]<-chan struct{}, 0, n)
	for i := 0; i < n; i++ {
		done = append(done, crash.Go(fmt.Sprintf("worker-%d", i+1), func() {
			divide(10, i-i)
		}))
	}
	for _, d := range done {
		<-d
	}
}

//go:noinline
func divide(a, b int) int {
	return a / b
}
