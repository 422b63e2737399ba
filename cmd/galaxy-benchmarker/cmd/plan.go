package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/configuration"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/destination"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/plan"
)

func init() {
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:   "plan ./path/to/benchmark.yaml",
	Short: "Print the expanded run plan without executing anything",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := configuration.Load(args[0])
		if err != nil {
			log.Error(err)
			os.Exit(1)
		}

		registry := destination.NewRegistry()
		for _, dc := range config.Destinations {
			if err := registry.Register(destination.FromConfig(dc)); err != nil {
				log.Error(err)
				os.Exit(1)
			}
		}
		registry.Freeze()

		requests, err := plan.Expand(config, registry)
		if err != nil {
			log.Error(err)
			os.Exit(1)
		}

		for _, request := range requests {
			kind := "run"
			if request.Warmup {
				kind = "warmup"
			}
			line := fmt.Sprintf("%4d  %-8s %s -> %s rep %d", request.Index, kind, request.Workflow, request.Destination, request.Repetition)
			if request.ParamSignature != "" {
				line += "  " + request.ParamSignature
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%d runs total\n", len(requests))
	},
}
