package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/jonwraymond/ledgerops/auth"
	"github.com/jonwraymond/ledgerops/config"
	"github.com/jonwraymond/ledgerops/ledger"
	"github.com/jonwraymond/ledgerops/workflow"
)

// ErrUsage is returned for a malformed command line.
var ErrUsage = errors.New("usage: ledgerops [flags] [serve | create ID | transition [-org ORG] ID FROM TO | show ID | history ID | token [-role ROLE] ORG SUBJECT]")

// Execute runs the subcommand named by args[0], or serve when args is
// empty. Command output is written to out as JSON.
func Execute(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "serve" {
		return Run(ctx, cfg)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	return a.command(ctx, args, out)
}

func (a *app) command(ctx context.Context, args []string, out io.Writer) error {
	name, rest := args[0], args[1:]
	switch name {
	case "create":
		if len(rest) != 1 {
			return ErrUsage
		}
		receipt, err := a.client.Create(ctx, rest[0])
		if err != nil {
			return fmt.Errorf("create %s: %w", rest[0], err)
		}
		return writeJSON(out, receipt)

	case "transition":
		fs := flag.NewFlagSet("transition", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		org := fs.String("org", string(workflow.OrgExporter), "requesting organization")
		if err := fs.Parse(rest); err != nil || fs.NArg() != 3 {
			return ErrUsage
		}
		req := ledger.TransitionRequest{
			RecordID: fs.Arg(0),
			From:     workflow.State(fs.Arg(1)),
			To:       workflow.State(fs.Arg(2)),
			Org:      workflow.Org(*org),
		}
		receipt, err := a.client.Transition(ctx, req)
		if err != nil {
			return fmt.Errorf("transition %s: %w", req.RecordID, err)
		}
		return writeJSON(out, receipt)

	case "show":
		if len(rest) != 1 {
			return ErrUsage
		}
		view, err := a.client.View(ctx, rest[0])
		if err != nil {
			return fmt.Errorf("show %s: %w", rest[0], err)
		}
		return writeJSON(out, view)

	case "history":
		if len(rest) != 1 {
			return ErrUsage
		}
		receipts, err := a.store.History(ctx, rest[0])
		if err != nil {
			return fmt.Errorf("history %s: %w", rest[0], err)
		}
		if receipts == nil {
			receipts = []ledger.Receipt{}
		}
		return writeJSON(out, receipts)

	case "token":
		fs := flag.NewFlagSet("token", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		role := fs.String("role", "", "role claim")
		if err := fs.Parse(rest); err != nil || fs.NArg() != 2 {
			return ErrUsage
		}
		if a.tokens == nil {
			return fmt.Errorf("token: %w", auth.ErrNoSecret)
		}
		token, err := a.tokens.Issue(fs.Arg(1), workflow.Org(fs.Arg(0)), *role)
		if err != nil {
			return fmt.Errorf("token: %w", err)
		}
		return writeJSON(out, map[string]string{"token": token})

	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
