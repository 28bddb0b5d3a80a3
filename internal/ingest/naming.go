package ingest

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	nonWordOrSpace = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	spaceRun       = regexp.MustCompile(`\s+`)
	nonWordRun     = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
)

// maxStemRunes keeps generated table names under the 63/64 identifier limit
// of PostgreSQL and MySQL, counter suffix included.
const maxStemRunes = 38

// NormalizeColumnName turns a raw header into a lower-case identifier.
// Labels that clean down to nothing become column_<index+1>.
func NormalizeColumnName(label string, index int) string {
	name := nonWordOrSpace.ReplaceAllString(label, "")
	name = strings.TrimSpace(name)
	name = spaceRun.ReplaceAllString(name, "_")
	name = strings.ToLower(name)
	if name == "" {
		return fmt.Sprintf("column_%d", index+1)
	}
	return name
}

// NormalizeColumnNames normalizes every label and suffixes repeats with
// _2, _3, ... so the result is usable as a column list.
func NormalizeColumnNames(labels []string) []string {
	bases := make([]string, len(labels))
	reserved := make(map[string]bool, len(labels))
	for i, label := range labels {
		bases[i] = NormalizeColumnName(label, i)
		reserved[bases[i]] = true
	}

	out := make([]string, len(labels))
	taken := make(map[string]bool, len(labels))
	for i, base := range bases {
		name := base
		if taken[name] {
			for n := 2; taken[name] || reserved[name]; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
			}
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

// TableName builds data_<stem>_<YYYYMMDDHHMMSS> from an uploaded filename.
// The stem is lower-cased so unquoted references resolve on every dialect.
func TableName(filename string, at time.Time) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	stem := base
	if i := strings.Index(base, "."); i >= 0 {
		stem = base[:i]
	}
	stem = strings.ToLower(nonWordRun.ReplaceAllString(stem, "_"))
	if utf8.RuneCountInString(stem) > maxStemRunes {
		stem = string([]rune(stem)[:maxStemRunes])
	}
	return fmt.Sprintf("data_%s_%s", stem, at.Format("20060102150405"))
}
