package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/docugen/pkg/client"
)

var (
	requestsFile     string
	dryRun           bool
	requiredRevision string
	targetRevision   string
)

var applyCmd = &cobra.Command{
	Use:   "apply <document-id>",
	Short: "Order, validate and submit a batch of requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, err := readRequests(requestsFile)
		if err != nil {
			return err
		}
		var opts []client.BatchOption
		if requiredRevision != "" {
			opts = append(opts, client.WithRequiredRevision(requiredRevision))
		}
		if targetRevision != "" {
			opts = append(opts, client.WithTargetRevision(targetRevision))
		}

		c := newClient()
		if dryRun {
			plan, err := c.Plan(cmd.Context(), args[0], reqs, opts...)
			exitOnError(err)
			if outputJSON {
				printJSON(plan)
				return nil
			}
			fmt.Printf("Dry run: %d operations, %d bytes\n", len(plan.Order), plan.Bytes)
			printOrder(plan.Order)
			return nil
		}

		res, err := c.Apply(cmd.Context(), args[0], reqs, opts...)
		exitOnError(err)
		if outputJSON {
			printJSON(res)
			return nil
		}
		fmt.Printf("Batch %s applied to %s (%d attempts)\n", res.BatchID, res.DocumentID, res.Attempts)
		if res.RevisionID != "" {
			fmt.Printf("Revision: %s\n", res.RevisionID)
		}
		printOrder(res.Order)
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <document-id>",
	Short: "Simulate a batch against the document body without submitting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reqs, err := readRequests(requestsFile)
		if err != nil {
			return err
		}
		res, err := newClient().Preview(cmd.Context(), args[0], reqs)
		exitOnError(err)
		if outputJSON {
			printJSON(res)
			return nil
		}
		fmt.Printf("Revision: %s\n", res.RevisionID)
		if res.Skipped > 0 {
			fmt.Printf("Not simulated: %d operations\n", res.Skipped)
		}
		if res.Diff == "" {
			fmt.Println("No body text changes.")
			return nil
		}
		fmt.Print(res.Diff)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <document-id>",
	Short: "Fetch a document snapshot (through the server cache)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, hit, err := newClient().Document(cmd.Context(), args[0])
		exitOnError(err)
		if hit {
			fmt.Fprintln(os.Stderr, "(cached)")
		}
		printJSON(doc)
		return nil
	},
}

func printOrder(order []client.PlannedOp) {
	fmt.Printf("%-4s %-6s %-28s %s\n", "#", "INPUT", "REQUEST", "ANCHOR")
	for i, p := range order {
		anchor := p.Anchor
		if !p.Positional {
			anchor = "-"
		}
		fmt.Printf("%-4d %-6d %-28s %s\n", i, p.Input, p.Request, anchor)
	}
}

func init() {
	for _, cmd := range []*cobra.Command{applyCmd, previewCmd} {
		cmd.Flags().StringVarP(&requestsFile, "file", "f", "-", "JSON file with the requests (- for stdin)")
	}
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the submission order without submitting")
	applyCmd.Flags().StringVar(&requiredRevision, "required-revision", "", "Fail unless the document is at this revision")
	applyCmd.Flags().StringVar(&targetRevision, "target-revision", "", "Apply against this revision, merging later edits")

	addClientFlags(applyCmd, previewCmd, getCmd)
	rootCmd.AddCommand(applyCmd, previewCmd, getCmd)
}
