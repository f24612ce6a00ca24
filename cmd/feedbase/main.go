package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "feedbase",
		Short: "Ingest and aggregate server feedback reports",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(processCmd())
	root.AddCommand(serverFactsCmd())
	root.AddCommand(uploadFactsCmd())
	root.AddCommand(chartsCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Normalize pending raw reports into servers, uploads and data points",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess()
		},
	}
}

func serverFactsCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "server-facts <start> <end>",
		Short: "Extract server-scoped facts over a date range (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServerFacts(args[0], args[1], workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "max concurrent 24h sub-windows (default: from config)")
	return cmd
}

func uploadFactsCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "upload-facts <start> <end>",
		Short: "Extract upload-scoped facts over a date range (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUploadFacts(args[0], args[1], workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "max concurrent 24h sub-windows (default: from config)")
	return cmd
}

func chartsCmd() *cobra.Command {
	var (
		chartID  string
		recreate bool
	)

	cmd := &cobra.Command{
		Use:   "charts",
		Short: "Compute monthly charts from processed data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCharts(chartID, recreate)
		},
	}

	cmd.Flags().StringVar(&chartID, "chart", "all", "chart id to compute, or 'all'")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "rebuild the chart from scratch")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only chart API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with periodic batch jobs and the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
