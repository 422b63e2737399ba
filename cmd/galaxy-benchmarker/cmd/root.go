package cmd

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "galaxy-benchmarker command",
	Short: "Command line utility to benchmark workflow execution on Galaxy instances",
	Long: `
Command line utility to benchmark workflow execution on Galaxy instances.

Benchmarks are described in a config file listing the destinations to measure
and the workflows to run against them.

Example structure:

destinations:
  - name: cluster-a
    url: https://galaxy-a.example.org
    apiKey: secret
    maxConcurrentRuns: 2
    timeout: 30m
benchmarks:
  - name: mapping
    workflow: wf-mapping
    destinations: [cluster-a]
    repetitions: 5
    sweep:
      inputSize: [1G, 10G]
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
