package nl2sql

import (
	"strings"
	"unicode"
)

const (
	sqlQueryMarker  = "SQLQuery:"
	sqlResultMarker = "SQLResult:"
	fence           = "```"
)

// ExtractSQL pulls the statement out of a raw model reply. Replies in the
// Question/SQLQuery/SQLResult format keep only the text after the last
// SQLQuery marker; fenced blocks keep only the first block's body.
func ExtractSQL(raw string) string {
	sql := strings.TrimSpace(raw)
	if i := strings.LastIndex(sql, sqlQueryMarker); i >= 0 {
		sql = strings.TrimSpace(sql[i+len(sqlQueryMarker):])
	}
	if strings.Contains(sql, fence) {
		parts := strings.SplitN(sql, fence, 3)
		sql = parts[1]
		sql = stripLanguageTag(sql)
	}
	sql = strings.ReplaceAll(sql, "`", "")
	if i := strings.Index(sql, sqlResultMarker); i >= 0 {
		sql = sql[:i]
	}
	sql = strings.TrimSpace(sql)
	sql = strings.TrimSuffix(sql, ";")
	return strings.TrimSpace(sql)
}

// stripLanguageTag drops an info string such as "sql" directly after a fence.
func stripLanguageTag(block string) string {
	trimmed := strings.TrimLeft(block, " \t")
	end := strings.IndexFunc(trimmed, unicode.IsSpace)
	if end < 0 {
		end = len(trimmed)
	}
	tag := trimmed[:end]
	if tag == "" || IsReadStatement(tag) || strings.ContainsFunc(tag, isNotAlnum) {
		return block
	}
	return trimmed[end:]
}

func isNotAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// IsReadStatement reports whether sql starts with SELECT or WITH, ignoring case.
func IsReadStatement(sql string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}
