package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	configcmd "github.com/sthembisoo/reportit/cmd/config"
	"github.com/sthembisoo/reportit/cmd/demo"
	"github.com/sthembisoo/reportit/cmd/reports"
	"github.com/sthembisoo/reportit/cmd/serve"
	"github.com/sthembisoo/reportit/crash"
)

var rootCmd = &cobra.Command{
	Use:          "reportit",
	Short:        "Uncaught error reporting for Go programs",
	SilenceUsage: true,
}

func main() {
	defer crash.Guard()

	rootCmd.AddCommand(demo.NewCmdDemo())
	rootCmd.AddCommand(serve.NewCmdServe())
	rootCmd.AddCommand(reports.NewCmdReports())
	rootCmd.AddCommand(configcmd.NewCmdConfig())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
