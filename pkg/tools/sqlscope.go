package tools

import (
	"fmt"
	"regexp"
	"strings"
)

// tableRefRe finds every table identifier a query references via FROM or
// JOIN, optionally schema-qualified (schema.table) and optionally quoted.
// Identifiers are restricted to the characters Postgres allows unquoted, so
// a match can never hide a second statement or comment.
var tableRefRe = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+("?[A-Za-z_][A-Za-z0-9_]*"?(?:\s*\.\s*"?[A-Za-z_][A-Za-z0-9_]*"?)?)`)

// cteNameRe finds every name a WITH clause binds to a subquery. A CTE name
// is a query-local alias over an already-scoped subquery, not a real table,
// so it's exempt from the ownership check below.
var cteNameRe = regexp.MustCompile(`(?i)(?:\bWITH\b|,)\s*("?[A-Za-z_][A-Za-z0-9_]*"?)\s+AS\s*\(`)

// assertOwnedTables scans query for every table identifier it references
// and rejects the query unless each one carries the caller's
// __user_<ownerID>_ prefix. A bare table name, a table prefixed for a
// different owner, and a cross-user reference are all rejected the same
// way — this is a defense-in-depth check in front of the relational store,
// not a substitute for a real SQL parser, but it closes both the
// cross-owner case and the no-prefix-at-all case the tool contract forbids.
func assertOwnedTables(query, ownerID string) error {
	required := "__user_" + ownerID + "_"

	exempt := make(map[string]bool)
	for _, m := range cteNameRe.FindAllStringSubmatch(query, -1) {
		exempt[unquoteIdent(m[1])] = true
	}

	for _, m := range tableRefRe.FindAllStringSubmatch(query, -1) {
		ident := lastSegment(m[1])
		if exempt[ident] {
			continue
		}
		if !strings.HasPrefix(ident, required) {
			return fmt.Errorf("table %q is not owned by caller", ident)
		}
	}
	return nil
}

// lastSegment strips quoting and, for a schema-qualified reference, returns
// only the table-name segment.
func lastSegment(ref string) string {
	parts := strings.Split(ref, ".")
	return unquoteIdent(parts[len(parts)-1])
}

func unquoteIdent(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
