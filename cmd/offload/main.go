// Command offload runs the offload HTTP server, worker and tooling.
//
//	offload serve             # HTTP API (add --worker to process jobs in-process)
//	offload worker            # worker pool plus cron beat
//	offload seed              # fill the product catalog
//	offload submit dataset 500
//	offload status <task-id> --wait
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
