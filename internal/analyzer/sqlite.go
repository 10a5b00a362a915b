package analyzer

import (
	"strings"

	"github.com/coregx/gravity/internal/util"
)

// parseSQLiteRows reads the detail column of EXPLAIN QUERY PLAN output.
func parseSQLiteRows(rows []map[string]any) *QueryPlan {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, util.ToString(row["detail"]))
	}
	plan := parseSQLiteExplain(lines)
	plan.RawOutput = strings.Join(lines, "\n")
	return plan
}

// parseSQLiteExplain parses EXPLAIN QUERY PLAN detail lines such as
//
//	SCAN users
//	SEARCH users USING INDEX email_idx (email=?)
//	SEARCH users USING INTEGER PRIMARY KEY (rowid=?)
func parseSQLiteExplain(lines []string) *QueryPlan {
	plan := &QueryPlan{Database: "sqlite"}

	for _, line := range lines {
		upper := strings.ToUpper(strings.TrimSpace(line))

		switch {
		case strings.Contains(upper, "USING COVERING INDEX"), strings.Contains(upper, "USING INDEX"):
			plan.UsesIndex = true
			setIndexNameIfEmpty(plan, extractIndexName(line))
		case strings.Contains(upper, "USING INTEGER PRIMARY KEY"), strings.Contains(upper, "USING PRIMARY KEY"):
			plan.UsesIndex = true
			setIndexNameIfEmpty(plan, "PRIMARY KEY")
		case strings.Contains(upper, "USING AUTOMATIC"):
			plan.UsesIndex = true
			setIndexNameIfEmpty(plan, "AUTOMATIC INDEX")
		case strings.HasPrefix(upper, "SCAN "):
			plan.FullScan = true
		}

		if strings.Contains(upper, "USE TEMP B-TREE") {
			plan.UsingTemporary = true
		}
	}

	return plan
}

func setIndexNameIfEmpty(plan *QueryPlan, name string) {
	if name != "" && plan.IndexName == "" {
		plan.IndexName = name
	}
}

// extractIndexName returns the word following USING [COVERING] INDEX.
func extractIndexName(detail string) string {
	upper := strings.ToUpper(detail)
	for _, marker := range []string{"USING COVERING INDEX ", "USING INDEX "} {
		if i := strings.Index(upper, marker); i != -1 {
			rest := strings.TrimSpace(detail[i+len(marker):])
			if end := strings.IndexAny(rest, " ("); end != -1 {
				rest = rest[:end]
			}
			return rest
		}
	}
	return ""
}
