// Package docstore implements the search tool port over a directory of
// plain-text rulebook documents. Results are plain strings shaped for a
// reasoning engine prompt, never structured data.
package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// maxLookupResults bounds filename lookup output so a broad query does
	// not flood the engine prompt.
	maxLookupResults = 50

	// contextLines is how many lines around a match are included, enough to
	// carry a full rule paragraph.
	contextLines = 20
)

// Library serves lookups and searches from one directory of documents.
type Library struct {
	dir string
}

// NewLibrary creates a Library over dir. The directory must exist.
func NewLibrary(dir string) (*Library, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("docstore: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("docstore: %s is not a directory", dir)
	}
	return &Library{dir: dir}, nil
}

// LookupFilenames returns document filenames whose name contains the query,
// case-insensitive, at most maxLookupResults of them.
func (l *Library) LookupFilenames(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return "", fmt.Errorf("docstore: list documents: %w", err)
	}

	q := strings.ToLower(query)
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(strings.ToLower(e.Name()), q) {
			matches = append(matches, e.Name())
		}
	}
	sort.Strings(matches)

	if len(matches) == 0 {
		return fmt.Sprintf("No documents found matching %q", query), nil
	}
	if len(matches) > maxLookupResults {
		return fmt.Sprintf("Found %d+ documents (showing first %d):\n%s",
			len(matches), maxLookupResults, strings.Join(matches[:maxLookupResults], "\n")), nil
	}
	return fmt.Sprintf("Found %d document(s):\n%s", len(matches), strings.Join(matches, "\n")), nil
}

// SearchInDocument finds lines matching the keyword expression and returns
// them with surrounding context. Keywords are space-separated AND terms;
// within a term, | separates OR alternatives and a leading dash excludes.
// Matching is case-insensitive.
func (l *Library) SearchInDocument(ctx context.Context, documentRef, keywords string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	content, err := l.readDocument(documentRef)
	if err != nil {
		return "", err
	}

	expr := parseKeywords(keywords)
	if len(expr.require) == 0 && len(expr.exclude) == 0 {
		return "No matches found", nil
	}

	lines := strings.Split(content, "\n")
	var matched []int
	for i, line := range lines {
		if expr.matches(strings.ToLower(line)) {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		return "No matches found", nil
	}

	return renderWindows(lines, matched), nil
}

// ExtractDocument returns the full text of a document. The search guard
// caps the size before the content reaches the engine.
func (l *Library) ExtractDocument(ctx context.Context, documentRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.readDocument(documentRef)
}

// ListDocuments returns every document filename in the library, sorted.
func (l *Library) ListDocuments(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("docstore: list documents: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// readDocument loads one document by bare filename. Refs carrying path
// separators are rejected so callers cannot escape the library directory.
func (l *Library) readDocument(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("docstore: invalid document ref %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(l.dir, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("docstore: document %q not found", ref)
		}
		return "", fmt.Errorf("docstore: read %q: %w", ref, err)
	}
	return string(data), nil
}

// keywordExpr is the parsed form of a keyword query: every require group
// must match (any alternative within it), no exclude term may match.
type keywordExpr struct {
	require [][]string
	exclude []string
}

func parseKeywords(keywords string) keywordExpr {
	var expr keywordExpr
	for _, tok := range strings.Fields(keywords) {
		if neg, ok := strings.CutPrefix(tok, "-"); ok {
			if neg != "" {
				expr.exclude = append(expr.exclude, strings.ToLower(neg))
			}
			continue
		}
		var alts []string
		for _, alt := range strings.Split(tok, "|") {
			if alt != "" {
				alts = append(alts, strings.ToLower(alt))
			}
		}
		if len(alts) > 0 {
			expr.require = append(expr.require, alts)
		}
	}
	return expr
}

func (e keywordExpr) matches(lowerLine string) bool {
	for _, alts := range e.require {
		found := false
		for _, alt := range alts {
			if strings.Contains(lowerLine, alt) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, neg := range e.exclude {
		if strings.Contains(lowerLine, neg) {
			return false
		}
	}
	return true
}

// renderWindows expands matched line indexes into context windows, merging
// overlapping ones, and joins them with a separator line.
func renderWindows(lines []string, matched []int) string {
	type window struct{ from, to int }
	var windows []window
	for _, idx := range matched {
		from := max(idx-contextLines, 0)
		to := min(idx+contextLines, len(lines)-1)
		if n := len(windows); n > 0 && from <= windows[n-1].to+1 {
			windows[n-1].to = to
			continue
		}
		windows = append(windows, window{from: from, to: to})
	}

	var sb strings.Builder
	for i, w := range windows {
		if i > 0 {
			sb.WriteString("\n--\n")
		}
		sb.WriteString(strings.Join(lines[w.from:w.to+1], "\n"))
	}
	return sb.String()
}
