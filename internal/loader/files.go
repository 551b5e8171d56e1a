// Package loader reads academic source files and loads them, with embeddings,
// into the sources table.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Entry is one source as written in a JSON or YAML file.
type Entry struct {
	Title           string  `json:"title" yaml:"title"`
	Authors         *string `json:"authors" yaml:"authors"`
	PublicationYear *int    `json:"publication_year" yaml:"publication_year"`
	Abstract        *string `json:"abstract" yaml:"abstract"`
	FullText        *string `json:"full_text" yaml:"full_text"`
	SourceType      string  `json:"source_type" yaml:"source_type"`
	URL             *string `json:"url" yaml:"url"`
}

// EmbeddingText is the text embedded for a source: its title, followed by the
// abstract when there is one.
func (e Entry) EmbeddingText() string {
	text := strings.TrimSpace(e.Title)
	if e.Abstract != nil && strings.TrimSpace(*e.Abstract) != "" {
		text += " " + strings.TrimSpace(*e.Abstract)
	}
	return text
}

// ExpandGlobs resolves patterns (which may use **) to a sorted, de-duplicated
// list of files. A pattern that matches nothing is an error.
func ExpandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			files = append(files, match)
		}
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile parses a JSON or YAML array of sources. YAML is chosen by the
// .yaml/.yml extension.
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = json.Unmarshal(data, &entries)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

// ReadFiles concatenates the entries of every file, in order.
func ReadFiles(paths []string) ([]Entry, error) {
	var all []Entry
	for _, path := range paths {
		entries, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	if len(all) == 0 {
		return nil, errors.New("no sources found in input files")
	}
	return all, nil
}
