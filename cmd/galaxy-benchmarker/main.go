package main

import (
	"github.com/usegalaxy-eu/galaxy-benchmarker/cmd/galaxy-benchmarker/cmd"
	"github.com/usegalaxy-eu/galaxy-benchmarker/internal/common/logging"
)

func main() {
	logging.ConfigureCliLogging()
	cmd.Execute()
}
