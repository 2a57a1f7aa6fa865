package source

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// ScanRoots walks every root recursively and returns all *.jsonl files in
// lexical path order. Missing or unreadable roots contribute nothing.
// A file reachable from two roots is listed once.
func ScanRoots(roots []string) []DiscoveredFile {
	var files []DiscoveredFile
	for _, root := range lo.Uniq(roots) {
		files = append(files, scanRoot(root)...)
	}

	files = lo.UniqBy(files, func(f DiscoveredFile) string { return f.Path })
	slices.SortFunc(files, func(a, b DiscoveredFile) int { return strings.Compare(a.Path, b.Path) })
	return files
}

func scanRoot(root string) []DiscoveredFile {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil
	}

	var files []DiscoveredFile
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // intentionally skip unreadable entries
		}
		if d.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}

		df := DiscoveredFile{Path: path, Root: root}
		if fi, err := d.Info(); err == nil {
			df.Size = fi.Size()
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			parts := strings.Split(rel, string(filepath.Separator))
			if len(parts) >= 2 {
				df.Project = decodeProjectName(parts[0])
			}
		}
		files = append(files, df)
		return nil
	})
	return files
}

// decodeProjectName extracts a human-readable project name from the encoded directory name.
// Claude Code encodes absolute paths by replacing "/" with "-", so:
//
//	"-Users-me-projects-gitlore" -> "gitlore"
//	"-Users-me-projects-my-cool-project" -> "my-cool-project"
func decodeProjectName(dirName string) string {
	parts := strings.Split(dirName, "-")

	knownParents := map[string]bool{
		"projects": true, "repos": true, "src": true,
		"code": true, "workspace": true, "dev": true,
	}

	for i := len(parts) - 2; i >= 0; i-- {
		if knownParents[strings.ToLower(parts[i])] {
			if name := strings.Join(parts[i+1:], "-"); name != "" {
				return name
			}
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return dirName
}

// CountProjects returns the number of unique projects in a set of discovered files.
func CountProjects(files []DiscoveredFile) int {
	return len(lo.Uniq(lo.Map(files, func(f DiscoveredFile, _ int) string { return f.Project })))
}
