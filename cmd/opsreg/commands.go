package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"opsreg/internal/ops"
	"opsreg/internal/registry"
	"opsreg/internal/scanner"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	deleteID   string
	deleteName string
	deleteURL  string
	deleteTags []string
	fetchTag   string
)

func init() {
	getCmd.Flags().StringVar(&fetchTag, "tag", "", "tag to fetch (defaults to \"default\")")

	deleteCmd.Flags().StringVar(&deleteID, "id", "", "id of the operation to delete")
	deleteCmd.Flags().StringVar(&deleteName, "name", "", "name of the operation to delete")
	deleteCmd.Flags().StringVar(&deleteURL, "url", "", "url of the operation to delete")
	deleteCmd.Flags().StringArrayVar(&deleteTags, "tag", nil, "tag the operation is registered under (repeatable)")
	_ = deleteCmd.MarkFlagRequired("id")
	_ = deleteCmd.MarkFlagRequired("name")
	_ = deleteCmd.MarkFlagRequired("url")
}

// lsCmd scans the declaration tree and prints what it finds, without
// touching any store.
var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "Scan the declaration tree and print discovered operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := scanner.New().Scan(cmd.Context(), scanDir)
		if err != nil {
			return err
		}
		printDiagnostics(result.Diagnostics)
		printRecords(result.Records)
		return nil
	},
}

// registerCmd scans the declaration tree and synchronizes every
// discovered operation into the registry.
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Scan the declaration tree and register discovered operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := scanner.New().Scan(cmd.Context(), scanDir)
		if err != nil {
			return err
		}
		printDiagnostics(result.Diagnostics)

		sync := registry.New(st)
		res := sync.RegisterOperations(cmd.Context(), owner, result.Records)
		fmt.Println(res.Message)
		if !res.Success {
			os.Exit(1)
		}
		logger.Info("registered operations",
			zap.Int("count", len(result.Records)), zap.String("owner", owner))
		return nil
	},
}

// getCmd lists the operations visible to an owner for a tag, including
// the shared system fallback.
var getCmd = &cobra.Command{
	Use:   "get",
	Short: "List registered operations for an owner and tag",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		res := registry.New(st).ListOperations(cmd.Context(), owner, fetchTag)
		if !res.Success {
			return fmt.Errorf("%s", res.Message)
		}
		printRecords(res.Data)
		return nil
	},
}

// deleteCmd removes one operation from every partition it occupies.
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a registered operation by id, name and url",
	Long: `Deletes the operation matching the given id, name and url from every
tag partition it is registered under. All three fields must match; this
guards against deleting an unrelated operation that reuses an id.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		ref := ops.Reference{ID: deleteID, Name: deleteName, URL: deleteURL, Tags: deleteTags}
		res := registry.New(st).DeleteOperation(cmd.Context(), owner, ref)
		fmt.Println(res.Message)
		if !res.Success {
			os.Exit(1)
		}
		return nil
	},
}

// watchCmd keeps the registry synchronized with the declaration tree,
// re-registering after each settled burst of edits.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the declaration tree and re-register on changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		sc := scanner.New()
		sync := registry.New(st)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		rescan := func() {
			result, err := sc.Scan(ctx, scanDir)
			if err != nil {
				logger.Error("rescan failed", zap.Error(err))
				return
			}
			printDiagnostics(result.Diagnostics)
			res := sync.RegisterOperations(ctx, owner, result.Records)
			if res.Success {
				logger.Info("re-registered operations", zap.Int("count", len(result.Records)))
			} else {
				logger.Error("re-registration failed", zap.String("message", res.Message))
			}
		}

		// Initial sync before watching
		rescan()

		w, err := scanner.NewWatcher(scanDir, sc, rescan)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		fmt.Printf("Watching %s for declaration changes (Ctrl-C to stop)\n", scanDir)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		return nil
	},
}

// printRecords prints operations in the registry's long form.
func printRecords(records []ops.Record) {
	for _, rec := range records {
		fmt.Println("Operation Details:")
		fmt.Printf("  Name       : %s\n", rec.Name)
		fmt.Printf("  URL        : %s\n", rec.URL)
		fmt.Printf("  Method     : %s\n", rec.Method)
		fmt.Printf("  Description: %s\n", rec.Description)
		fmt.Printf("  ID         : %s\n", rec.ID)
		fmt.Printf("  Tags       : %v\n", rec.Tags)
		if len(rec.Params) > 0 {
			fmt.Println("  Params:")
			for _, p := range rec.Params {
				fmt.Printf("    - %s : %s\n", p.Name, p.Description)
			}
		}
		fmt.Printf("  Include Access Token: %v\n", rec.IncludeAccessToken)
		fmt.Printf("  Type       : %s\n", rec.Type)
		fmt.Println()
	}
	if len(records) == 0 {
		fmt.Println("No operations found.")
	}
}

// printDiagnostics reports scan diagnostics to stderr.
func printDiagnostics(diags []scanner.Diagnostic) {
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "warning: %s\n", d)
	}
}
