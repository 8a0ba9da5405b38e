package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/casebros/case-engine/migrations"
)

// tableColumns parses the column names out of a CREATE TABLE block in an
// embedded migration file. pgxmock matches SQL text only, so this is the one
// place where repository statements are held against the real schema.
func tableColumns(t *testing.T, file, table string) map[string]bool {
	t.Helper()
	raw, err := migrations.FS.ReadFile(file)
	require.NoError(t, err)

	marker := "CREATE TABLE " + table + " ("
	start := strings.Index(string(raw), marker)
	require.GreaterOrEqualf(t, start, 0, "table %s not found in %s", table, file)
	body := string(raw)[start+len(marker):]
	end := strings.Index(body, ");")
	require.GreaterOrEqual(t, end, 0)

	cols := map[string]bool{}
	for _, line := range strings.Split(body[:end], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name := strings.Fields(line)[0]
		switch name {
		case "PRIMARY", "UNIQUE", "CONSTRAINT", "CHECK", "FOREIGN":
			continue
		}
		cols[strings.ToLower(name)] = true
	}
	return cols
}

func splitColumnList(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		out = append(out, strings.ToLower(strings.TrimSpace(c)))
	}
	return out
}

func insertColumns(t *testing.T, sql string) []string {
	t.Helper()
	lo := strings.Index(sql, "(")
	hi := strings.Index(sql, ")")
	require.True(t, lo >= 0 && hi > lo, "INSERT has no column list")
	return splitColumnList(sql[lo+1 : hi])
}

func selectColumns(t *testing.T, sql string) []string {
	t.Helper()
	lo := strings.Index(sql, "SELECT")
	hi := strings.Index(sql, "FROM")
	require.True(t, lo >= 0 && hi > lo, "statement is not a SELECT")
	return splitColumnList(sql[lo+len("SELECT") : hi])
}

func TestOpensSQLMatchesMigration(t *testing.T) {
	t.Parallel()

	cols := tableColumns(t, "0003_opens.sql", "opens")

	for _, c := range insertColumns(t, insOpenSQL) {
		require.Truef(t, cols[c], "INSERT INTO opens uses column %q which the migration does not create", c)
	}
	for _, c := range selectColumns(t, selOpenSQL) {
		require.Truef(t, cols[c], "opens SELECT reads column %q which the migration does not create", c)
	}
}
