package fields

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/compliance-sync/internal/core/domain"
)

// cellSplitter separates table columns: a tab or three or more spaces.
var cellSplitter = regexp.MustCompile(`\t|\s{3,}`)

// DetectTables finds runs of consecutive column-aligned lines.
// The first line of a run is the header row. Runs of a single line are
// not tables.
func DetectTables(text string) []domain.Table {
	var tables []domain.Table
	var current [][]string

	flush := func() {
		if len(current) > 1 {
			tables = append(tables, domain.Table{
				Headers: current[0],
				Rows:    current[1:],
			})
		}
		current = nil
	}

	for _, line := range splitLines(text) {
		if !strings.Contains(line, "\t") && !cellSplitter.MatchString(line) {
			flush()
			continue
		}
		var cols []string
		for _, c := range cellSplitter.Split(line, -1) {
			if c = strings.TrimSpace(c); c != "" {
				cols = append(cols, c)
			}
		}
		if len(cols) > 1 {
			current = append(current, cols)
		}
	}
	flush()

	if tables == nil {
		return []domain.Table{}
	}
	return tables
}
