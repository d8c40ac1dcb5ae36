package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/filen-go/filen-cli/internal/model"
)

var mvCmd = &cobra.Command{
	Use:   "mv <path> <new-path>",
	Short: "Move and/or rename a file or folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		node, err := a.resolver.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		newParentPath := path.Dir(args[1])
		newName := path.Base(args[1])

		newParent, err := a.resolver.Resolve(cmd.Context(), newParentPath)
		if err != nil {
			return err
		}
		if newParent.UUID != node.Parent {
			if err := a.resolver.Move(cmd.Context(), node, newParent.UUID); err != nil {
				return err
			}
			node.Parent = newParent.UUID
		}
		if newName != "" && newName != node.Name {
			if err := a.resolver.Rename(cmd.Context(), node, newName, a.creds.LatestMasterKey()); err != nil {
				return err
			}
		}
		return nil
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <path> <new-path>",
	Short: "Copy a file by downloading and re-uploading it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		destParentPath := path.Dir(args[1])
		newName := path.Base(args[1])

		destParent, err := a.resolver.Resolve(cmd.Context(), destParentPath)
		if err != nil {
			return err
		}
		result, err := a.fsops.CopyFile(cmd.Context(), args[0], destParent.UUID, newName, a.creds.LatestMasterKey())
		if err != nil {
			return err
		}
		fmt.Println(result.UUID)
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <path> <new-name>",
	Short: "Rename a file or folder in place",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		node, err := a.resolver.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.resolver.Rename(cmd.Context(), node, args[1], a.creds.LatestMasterKey())
	},
}

var trashCmd = &cobra.Command{
	Use:   "trash <path>",
	Short: "Move a file or folder to the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		node, err := a.resolver.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.resolver.Trash(cmd.Context(), node)
	},
}

var deletePathCmd = &cobra.Command{
	Use:   "delete-path <path>",
	Short: "Permanently delete a file or folder, bypassing the trash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		if !flagForce {
			ok, err := confirm(fmt.Sprintf("permanently delete %q? this cannot be undone [y/N] ", args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		node, err := a.resolver.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return a.resolver.DeletePermanent(cmd.Context(), node)
	},
}

var listTrashCmd = &cobra.Command{
	Use:   "list-trash",
	Short: "List every folder and file currently in the trash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		folders, files, err := a.resolver.ListTrash(cmd.Context())
		if err != nil {
			return err
		}
		for _, f := range folders {
			fmt.Printf("%s\t%s/\n", f.UUID, f.Name)
		}
		for _, f := range files {
			fmt.Printf("%s\t%s\n", f.UUID, f.Name)
		}
		return nil
	},
}

var restoreUUIDCmd = &cobra.Command{
	Use:   "restore-uuid <uuid> <folder|file>",
	Short: "Restore a trashed item by uuid and node type",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		nodeType, err := parseNodeType(args[1])
		if err != nil {
			return err
		}
		return a.resolver.Restore(cmd.Context(), args[0], nodeType)
	},
}

var restorePathCmd = &cobra.Command{
	Use:   "restore-path <path>",
	Short: "Restore the first trashed item (folders before files) whose name is the path's last segment; the parent path is not compared",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		folders, files, err := a.resolver.ListTrash(cmd.Context())
		if err != nil {
			return err
		}
		name := path.Base(args[0])
		for _, f := range folders {
			if f.Name == name {
				return a.resolver.Restore(cmd.Context(), f.UUID, model.NodeFolder)
			}
		}
		for _, f := range files {
			if f.Name == name {
				return a.resolver.Restore(cmd.Context(), f.UUID, model.NodeFile)
			}
		}
		return fmt.Errorf("filen-cli: %q not found in trash: %w", args[0], model.ErrNotFound)
	},
}

func parseNodeType(s string) (model.NodeType, error) {
	switch s {
	case "folder":
		return model.NodeFolder, nil
	case "file":
		return model.NodeFile, nil
	default:
		return 0, fmt.Errorf("filen-cli: node type must be \"folder\" or \"file\", got %q", s)
	}
}

func confirm(prompt string) (bool, error) {
	answer, err := readLine(prompt)
	if err != nil {
		return false, err
	}
	return answer == "y" || answer == "Y" || answer == "yes", nil
}

func init() {
	rootCmd.AddCommand(mvCmd, cpCmd, renameCmd, trashCmd, deletePathCmd, listTrashCmd, restoreUUIDCmd, restorePathCmd)
}
