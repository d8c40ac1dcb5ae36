package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filen-go/filen-cli/internal/batch"
	"github.com/filen-go/filen-cli/internal/model"
	"github.com/filen-go/filen-cli/internal/transfer"
)

// loadOrBuildBatch resumes a previously persisted batch under id if one
// exists, otherwise calls build and persists the freshly built state
// (spec §4.6's batch resume contract).
func loadOrBuildBatch(a *app, id string, build func() (*model.BatchState, error)) (*model.BatchState, error) {
	state, err := a.store.LoadBatchState(id)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	state, err = build()
	if err != nil {
		return nil, err
	}
	if err := a.store.SaveBatchState(id, state); err != nil {
		return nil, err
	}
	return state, nil
}

func printBatchSummary(state *model.BatchState) {
	counts := state.Counts()
	fmt.Printf("%d completed, %d skipped, %d errors (of %d)\n", counts.Completed, counts.Skipped, counts.Errors, len(state.Tasks))
}

// finishBatch deletes the persisted state once every task reached a
// terminal, non-error outcome, matching the original client's
// delete-state-on-clean-completion policy.
func finishBatch(a *app, id string, state *model.BatchState) {
	for _, t := range state.Tasks {
		if !t.Status.IsTerminal() {
			return
		}
	}
	_ = a.store.DeleteBatchState(id)
}

func progressPrinter() func(batch.Progress) {
	return func(p batch.Progress) {
		if p.Task == nil {
			return
		}
		fmt.Printf("[%d/%d] %s -> %s\n", p.Index+1, p.Total, p.Task.RemotePath, p.Task.Status)
	}
}

var uploadCmd = &cobra.Command{
	Use:   "upload <path...>",
	Short: "Upload one or more local files or folders",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		target := flagTarget
		if target == "" {
			target = "/"
		}
		opts := batch.UploadOptions{
			Sources: args, TargetPath: target, Recursive: flagRecursive,
			Conflict: conflictPolicy(), PreserveTimestamps: flagPreserveTimestamps,
			Include: flagInclude, Exclude: flagExclude,
		}
		id := batch.GenerateID(model.OperationUpload, args, target)
		state, err := loadOrBuildBatch(a, id, func() (*model.BatchState, error) { return a.batch.BuildUploadState(opts) })
		if err != nil {
			return err
		}
		if err := a.batch.RunUpload(cmd.Context(), id, state, a.creds.LatestMasterKey(), opts, progressPrinter()); err != nil {
			return err
		}
		printBatchSummary(state)
		finishBatch(a, id, state)
		return nil
	},
}

func downloadOptionsFromArgs(target string) batch.DownloadOptions {
	return batch.DownloadOptions{
		RemotePath: target, LocalDestination: flagOutput, Recursive: flagRecursive,
		Conflict: conflictPolicy(), PreserveTimestamps: flagPreserveTimestamps,
		Include: flagInclude, Exclude: flagExclude,
	}
}

var downloadCmd = &cobra.Command{
	Use:   "download <remote-path>",
	Short: "Download a single remote file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		opts := downloadOptionsFromArgs(args[0])
		id := batch.GenerateID(model.OperationDownload, []string{args[0]}, flagOutput)
		state, err := loadOrBuildBatch(a, id, func() (*model.BatchState, error) { return a.batch.BuildDownloadState(cmd.Context(), opts) })
		if err != nil {
			return err
		}
		if err := a.batch.RunDownload(cmd.Context(), id, state, opts, progressPrinter()); err != nil {
			return err
		}
		printBatchSummary(state)
		finishBatch(a, id, state)
		return nil
	},
}

var downloadPathCmd = &cobra.Command{
	Use:   "download-path <remote-path>",
	Short: "Recursively download a remote folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		opts := downloadOptionsFromArgs(args[0])
		opts.Recursive = true
		id := batch.GenerateID(model.OperationDownload, []string{args[0]}, flagOutput)
		state, err := loadOrBuildBatch(a, id, func() (*model.BatchState, error) { return a.batch.BuildDownloadState(cmd.Context(), opts) })
		if err != nil {
			return err
		}
		if err := a.batch.RunDownload(cmd.Context(), id, state, opts, progressPrinter()); err != nil {
			return err
		}
		printBatchSummary(state)
		finishBatch(a, id, state)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <local-path> <remote-path>",
	Short: "Verify a local file against the server's recorded hash without downloading it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		node, err := a.resolver.Resolve(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		if node.Type != model.NodeFile {
			return fmt.Errorf("filen-cli: verify: %q is not a file", args[1])
		}
		ok, err := transfer.VerifyUpload(args[0], node.Meta.Hash)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("filen-cli: verification failed: local and remote hashes differ")
		}
		fmt.Println("verified: hashes match")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd, downloadCmd, downloadPathCmd, verifyCmd)
}
