package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// sqlFiles returns the non-empty .sql files under dir in lexical order.
func sqlFiles(fsys fs.FS, dir string) ([]string, []string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	var files, bodies []string
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		files = append(files, name)
		bodies = append(bodies, string(data))
	}
	return files, bodies, nil
}
