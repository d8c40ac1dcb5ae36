package resolver

import (
	"context"
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/filen-go/filen-cli/internal/model"
)

// FoundFile is one match returned by Find.
type FoundFile struct {
	Node     model.Node
	FullPath string
}

// Find walks startPath (a folder) recursively up to maxDepth (-1 for
// unbounded) and returns every file whose name matches pattern, a
// fnmatch-style glob (spec §6's `find` command, grounded in drive.py's
// find_files).
func (r *Resolver) Find(ctx context.Context, startPath, pattern string, maxDepth int) ([]FoundFile, error) {
	root, err := r.Resolve(ctx, startPath)
	if err != nil {
		return nil, err
	}
	if root.Type != model.NodeFolder {
		return nil, fmt.Errorf("resolver: find: %q is not a folder", startPath)
	}

	var results []FoundFile
	var walk func(folderUUID, currentPath string, depth int) error
	walk = func(folderUUID, currentPath string, depth int) error {
		if maxDepth != -1 && depth > maxDepth {
			return nil
		}
		folders, files, err := r.List(ctx, folderUUID)
		if err != nil {
			return err
		}
		for _, f := range files {
			if ok, _ := doublestar.Match(pattern, f.Name); ok {
				results = append(results, FoundFile{Node: f, FullPath: path.Join(currentPath, f.Name)})
			}
		}
		for _, d := range folders {
			if err := walk(d.UUID, path.Join(currentPath, d.Name), depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root.UUID, startPath, 0); err != nil {
		return nil, err
	}
	return results, nil
}

// Search is Find with an unbounded depth and a substring match instead
// of a glob pattern (spec §6's `search` command).
func (r *Resolver) Search(ctx context.Context, startPath, substring string) ([]FoundFile, error) {
	return r.Find(ctx, startPath, "*"+substring+"*", -1)
}

// TreeLine is one printable row of Tree's output.
type TreeLine struct {
	Text string
}

// Tree walks startPath recursively up to maxDepth and returns a list of
// already-indented lines, each "├──"/"└──"-prefixed the way the original
// client's print_tree renders a folder tree (spec §6's `tree` command).
func (r *Resolver) Tree(ctx context.Context, startPath string, maxDepth int) ([]TreeLine, error) {
	root, err := r.Resolve(ctx, startPath)
	if err != nil {
		return nil, err
	}
	var lines []TreeLine
	var walk func(folderUUID string, depth int, prefix string) error
	walk = func(folderUUID string, depth int, prefix string) error {
		if depth >= maxDepth {
			return nil
		}
		folders, files, err := r.List(ctx, folderUUID)
		if err != nil {
			return err
		}
		all := make([]model.Node, 0, len(folders)+len(files))
		all = append(all, folders...)
		all = append(all, files...)
		for i, item := range all {
			isLast := i == len(all)-1
			connector := "├── "
			childPrefix := prefix + "│   "
			if isLast {
				connector = "└── "
				childPrefix = prefix + "    "
			}
			if item.Type == model.NodeFolder {
				lines = append(lines, TreeLine{Text: prefix + connector + item.Name + "/"})
				if err := walk(item.UUID, depth+1, childPrefix); err != nil {
					return err
				}
			} else {
				lines = append(lines, TreeLine{Text: prefix + connector + item.Name})
			}
		}
		return nil
	}
	if err := walk(root.UUID, 0, ""); err != nil {
		return nil, err
	}
	return lines, nil
}
