package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filen-go/filen-cli/internal/model"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a folder's contents",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		node, err := a.resolver.Resolve(cmd.Context(), path)
		if err != nil {
			return err
		}
		folderUUID := node.UUID
		if node.Type == model.NodeFile {
			fmt.Println(node.Name)
			return nil
		}
		folders, files, err := a.resolver.List(cmd.Context(), folderUUID)
		if err != nil {
			return err
		}
		for _, f := range folders {
			fmt.Printf("%s/\n", f.Name)
		}
		for _, f := range files {
			fmt.Printf("%s\t%d\n", f.Name, f.Meta.Size)
		}
		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder, creating parents as needed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		_, err = a.resolver.CreateFolderRecursive(cmd.Context(), args[0], a.creds.LatestMasterKey())
		return err
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Resolve a path to its node uuid and type",
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
		fmt.Printf("%s\t%s\t%s\n", node.UUID, node.Type, node.Name)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <substring> [path]",
	Short: "Search recursively for files whose name contains a substring",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		path := "/"
		if len(args) == 2 {
			path = args[1]
		}
		results, err := a.resolver.Search(cmd.Context(), path, args[0])
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Println(r.FullPath)
		}
		return nil
	},
}

var findDepth int

var findCmd = &cobra.Command{
	Use:   "find <pattern> [path]",
	Short: "Find files matching a glob pattern",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		path := "/"
		if len(args) == 2 {
			path = args[1]
		}
		results, err := a.resolver.Find(cmd.Context(), path, args[0], findDepth)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Println(r.FullPath)
		}
		return nil
	},
}

var treeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print a folder tree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		lines, err := a.resolver.Tree(cmd.Context(), path, treeDepth)
		if err != nil {
			return err
		}
		for _, l := range lines {
			fmt.Println(l.Text)
		}
		return nil
	},
}

func init() {
	findCmd.Flags().IntVar(&findDepth, "max-depth", -1, "maximum recursion depth (-1 for unbounded)")
	treeCmd.Flags().IntVar(&treeDepth, "max-depth", 3, "maximum recursion depth")
	rootCmd.AddCommand(lsCmd, mkdirCmd, resolveCmd, searchCmd, findCmd, treeCmd)
}
