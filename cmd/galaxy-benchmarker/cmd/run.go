package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/benchmarker"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/configuration"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/metrics"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/report"
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("output-dir", "", "If set, the full result set is written to this directory")
	runCmd.Flags().String("format", "json", "Result file format, json or yaml")
	runCmd.Flags().Uint16("metrics-port", 0, "If set, prometheus metrics are exposed on this port for the duration of the session")
	viper.BindPFlag("outputDir", runCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("format", runCmd.Flags().Lookup("format"))
	viper.BindPFlag("metricsPort", runCmd.Flags().Lookup("metrics-port"))
}

var runCmd = &cobra.Command{
	Use:   "run ./path/to/benchmark.yaml",
	Short: "Run the benchmarks described in a config file",
	Long: `Run the benchmarks described in a config file.

All runs are executed against their destinations, respecting per-destination
concurrency limits, and a summary is printed per destination, workflow and
parameter combination. Interrupting the program cancels in-flight runs and
reports the partial results collected so far.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := configuration.Load(args[0])
		if err != nil {
			log.Error(err)
			os.Exit(1)
		}

		if port := uint16(viper.GetUint32("metricsPort")); port > 0 {
			shutdownMetricServer := metrics.Serve(port)
			defer shutdownMetricServer()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app := benchmarker.New()
		session, err := app.Start(ctx, config)
		if err != nil {
			log.Error(err)
			os.Exit(1)
		}

		set, err := session.Wait(ctx)
		if err != nil {
			log.Error(err)
			os.Exit(1)
		}

		if err := report.Summarize(app.Out, set); err != nil {
			log.Error(err)
			os.Exit(1)
		}

		if dir := viper.GetString("outputDir"); dir != "" {
			format := report.Format(viper.GetString("format"))
			path, err := report.WriteFile(dir, "benchmark", set, format)
			if err != nil {
				log.Error(err)
				os.Exit(1)
			}
			log.Infof("results written to %s", path)
		}

		if set.Partial {
			os.Exit(2)
		}
	},
}
