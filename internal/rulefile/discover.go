package rulefile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/nao1215/iocchecker/internal/model"
)

// Discovery is the outcome of expanding scan directories.
type Discovery struct {
	// Files are the rule files in discovery order: directories in the
	// order given, files sorted within each directory. A file reachable
	// from two directories is listed once, under the first.
	Files []string

	// Directories maps each scan directory to the rule files found below it.
	Directories map[string]model.DirectoryInfo

	// Empty lists scan directories that contained no rule files.
	Empty []string
}

// Discover walks every directory recursively and collects files with the
// given extension. Directories may contain glob wildcards, including "**".
// A directory that does not exist yields no files and is listed in Empty.
func Discover(directories []string, extension string) (*Discovery, error) {
	d := &Discovery{
		Files:       make([]string, 0),
		Directories: make(map[string]model.DirectoryInfo),
	}
	seen := make(map[string]struct{})

	for _, dir := range directories {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}

		pattern := filepath.Join(dir, "**", "*")
		matches, err := doublestar.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", dir, err)
		}
		sort.Strings(matches)

		var info model.DirectoryInfo
		for _, path := range matches {
			if !strings.EqualFold(filepath.Ext(path), extension) {
				continue
			}
			st, err := os.Stat(path)
			if err != nil || !st.Mode().IsRegular() {
				continue
			}

			info.AddFile(st.Size())

			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}
			d.Files = append(d.Files, path)
		}

		d.Directories[dir] = info
		if info.NumberOfFiles == 0 {
			d.Empty = append(d.Empty, dir)
		}
	}

	return d, nil
}
