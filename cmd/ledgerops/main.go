// Command ledgerops serves health and resilience endpoints for the ledger
// and moves records through the export workflow. With a JWT secret or API
// keys configured, serve also exposes an authenticated records API:
//
//	POST /records                      {"id": "..."}
//	GET  /records/{id}
//	POST /records/{id}/transitions     {"from": "...", "to": "..."}
//	GET  /records/{id}/history
//
// Usage:
//
//	ledgerops [flags] [serve]
//	ledgerops [flags] create ID
//	ledgerops [flags] transition [-org ORG] ID FROM TO
//	ledgerops [flags] show ID
//	ledgerops [flags] history ID
//	ledgerops [flags] token [-role ROLE] ORG SUBJECT
//
// Settings come from LEDGEROPS_* environment variables; flags override them.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}
	log.SetPrefix("[LEDGEROPS] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Execute(ctx, cfg, flag.Args(), os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}
