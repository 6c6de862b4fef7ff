// Package imdb streams records out of the raw IMDB TSV dumps.
//
// The dumps are large (title.principals alone is tens of millions of rows),
// so every reader here works row by row over a buffered scanner and never
// holds a whole file in memory. Malformed rows are skipped and counted, not
// fatal; a run only fails when the skip ratio crosses the configured
// threshold or a source cannot be read at all.
package imdb

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Column names in the IMDB dumps.
const (
	colTitleID    = "tconst"
	colTitleType  = "titleType"
	colTitleName  = "primaryTitle"
	colPersonID   = "nconst"
	colCategory   = "category"
	colPersonName = "primaryName"
)

// nullField is the IMDB marker for a missing value.
const nullField = `\N`

// DefaultTitleTypes are the title types that qualify as movies.
var DefaultTitleTypes = []string{"movie", "tvMovie"}

// DefaultJobCategories are the credit categories that qualify as cast.
var DefaultJobCategories = []string{"actor", "actress"}

// Options controls row filtering and failure thresholds, shared by all three
// source readers.
type Options struct {
	// TitleTypes qualifies rows of the title.basics dump. Empty means
	// DefaultTitleTypes.
	TitleTypes []string

	// JobCategories qualifies rows of the title.principals dump. Empty means
	// DefaultJobCategories.
	JobCategories []string

	// MaxSkipRatio aborts a scan once skipped/total exceeds it. Zero disables
	// the check.
	MaxSkipRatio float64

	// MinRowsForRatio delays the ratio check until enough rows have been seen
	// to make it meaningful. Defaults to 1000 when MaxSkipRatio is set.
	MinRowsForRatio int64
}

func (o Options) titleTypes() map[string]struct{}    { return toSet(o.TitleTypes, DefaultTitleTypes) }
func (o Options) jobCategories() map[string]struct{} { return toSet(o.JobCategories, DefaultJobCategories) }

func (o Options) minRows() int64 {
	if o.MinRowsForRatio > 0 {
		return o.MinRowsForRatio
	}
	return 1000
}

func toSet(vals, fallback []string) map[string]struct{} {
	if len(vals) == 0 {
		vals = fallback
	}
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}

// ScanStats counts the outcome of one source scan.
type ScanStats struct {
	Rows    int64 // data rows seen, excluding the header
	Skipped int64 // rows dropped as malformed or incomplete
	Kept    int64 // rows passed to the caller
}

// SkipRatio returns the fraction of rows skipped, 0 for an empty scan.
func (s ScanStats) SkipRatio() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.Skipped) / float64(s.Rows)
}

// ThresholdError reports a scan whose skip ratio exceeded the configured
// maximum. It aborts the build: a dump this malformed is more likely
// truncated or mis-specified than merely dirty.
type ThresholdError struct {
	Source string
	Stats  ScanStats
	Max    float64
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("ingest %s: skip ratio %.3f exceeds maximum %.3f (%d of %d rows skipped)",
		e.Source, e.Stats.SkipRatio(), e.Max, e.Stats.Skipped, e.Stats.Rows)
}

// TitleRecord is one qualifying row of title.basics.
type TitleRecord struct {
	ID   string
	Name string
}

// PrincipalRecord is one qualifying cast-membership row of title.principals.
type PrincipalRecord struct {
	TitleID  string
	PersonID string
}

// NameRecord is one row of name.basics.
type NameRecord struct {
	ID   string
	Name string
}

// outcome classifies one data row. Filtered rows fail an intentional
// predicate (wrong title type, unreferenced ID) and are not held against the
// source; skipped rows are malformed or incomplete and count toward the
// threshold.
type outcome int

const (
	rowKept outcome = iota
	rowFiltered
	rowSkipped
)

// ReadTitles streams the qualifying rows of a title.basics dump. fn may
// return an error to abort the scan.
func ReadTitles(path string, opts Options, fn func(TitleRecord) error) (ScanStats, error) {
	types := opts.titleTypes()
	return scan(path, opts, []string{colTitleID, colTitleType, colTitleName},
		func(fields []string) (outcome, error) {
			id, titleType, name := fields[0], fields[1], fields[2]
			if _, ok := types[titleType]; !ok {
				return rowFiltered, nil
			}
			if id == "" || name == "" {
				return rowSkipped, nil
			}
			return rowKept, fn(TitleRecord{ID: id, Name: name})
		})
}

// ReadPrincipals streams the qualifying cast rows of a title.principals dump.
// keepTitle filters rows to titles that survived the title scan, so the cast
// mapping never grows beyond the qualifying title set.
func ReadPrincipals(path string, opts Options, keepTitle func(string) bool, fn func(PrincipalRecord) error) (ScanStats, error) {
	categories := opts.jobCategories()
	return scan(path, opts, []string{colTitleID, colPersonID, colCategory},
		func(fields []string) (outcome, error) {
			titleID, personID, category := fields[0], fields[1], fields[2]
			if _, ok := categories[category]; !ok {
				return rowFiltered, nil
			}
			if titleID == "" || personID == "" {
				return rowSkipped, nil
			}
			if !keepTitle(titleID) {
				return rowFiltered, nil
			}
			return rowKept, fn(PrincipalRecord{TitleID: titleID, PersonID: personID})
		})
}

// ReadNames streams the rows of a name.basics dump for the person IDs
// accepted by keep.
func ReadNames(path string, opts Options, keep func(string) bool, fn func(NameRecord) error) (ScanStats, error) {
	return scan(path, opts, []string{colPersonID, colPersonName},
		func(fields []string) (outcome, error) {
			id, name := fields[0], fields[1]
			if id == "" || name == "" {
				return rowSkipped, nil
			}
			if !keep(id) {
				return rowFiltered, nil
			}
			return rowKept, fn(NameRecord{ID: id, Name: name})
		})
}

// scan drives one pass over a TSV source. columns names the fields handle
// needs, in order; handle classifies each complete row. Rows missing any
// required column are skipped without reaching handle.
func scan(path string, opts Options, columns []string, handle func(fields []string) (outcome, error)) (ScanStats, error) {
	var stats ScanStats

	r, closer, err := open(path)
	if err != nil {
		return stats, err
	}
	defer closer()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return stats, fmt.Errorf("read %s header: %w", path, err)
		}
		return stats, fmt.Errorf("read %s: empty source", path)
	}
	indices, err := columnIndices(sc.Text(), columns)
	if err != nil {
		return stats, fmt.Errorf("read %s: %w", path, err)
	}

	fields := make([]string, len(columns))
	for sc.Scan() {
		stats.Rows++
		row := strings.Split(sc.Text(), "\t")

		ok := true
		for i, idx := range indices {
			if idx >= len(row) {
				ok = false
				break
			}
			f := row[idx]
			if f == nullField {
				f = ""
			}
			fields[i] = f
		}
		if !ok {
			stats.Skipped++
			if err := checkThreshold(path, stats, opts); err != nil {
				return stats, err
			}
			continue
		}

		res, err := handle(fields)
		if err != nil {
			return stats, err
		}
		switch res {
		case rowKept:
			stats.Kept++
		case rowSkipped:
			stats.Skipped++
			if err := checkThreshold(path, stats, opts); err != nil {
				return stats, err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read %s: %w", path, err)
	}
	if err := checkThreshold(path, stats, opts); err != nil {
		return stats, err
	}
	return stats, nil
}

func checkThreshold(source string, stats ScanStats, opts Options) error {
	if opts.MaxSkipRatio <= 0 || stats.Rows < opts.minRows() {
		return nil
	}
	if stats.SkipRatio() > opts.MaxSkipRatio {
		return &ThresholdError{Source: source, Stats: stats, Max: opts.MaxSkipRatio}
	}
	return nil
}

// columnIndices resolves the required column names against the header row.
func columnIndices(header string, columns []string) ([]int, error) {
	names := strings.Split(header, "\t")
	byName := make(map[string]int, len(names))
	for i, n := range names {
		byName[n] = i
	}
	indices := make([]int, len(columns))
	for i, c := range columns {
		idx, ok := byName[c]
		if !ok {
			return nil, fmt.Errorf("missing column %q in header", c)
		}
		indices[i] = idx
	}
	return indices, nil
}

// open opens a dump, decompressing transparently when the path ends in .gz.
func open(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, f.Close, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("open gzip source %s: %w", path, err)
	}
	return gz, func() error {
		gz.Close()
		return f.Close()
	}, nil
}
