package publish

import (
	"strings"

	"git.home.luguber.info/inful/docpublish/internal/category"
)

// CommitMessage summarizes published titles grouped by category in table
// order, e.g. "Added A, B and C to Maamarei Mordechai; Added D to Kaarah".
func CommitMessage(items []Published) string {
	byCat := make(map[string][]string)
	for _, it := range items {
		byCat[it.Category] = append(byCat[it.Category], it.Title)
	}
	var clauses []string
	for _, c := range category.All() {
		titles := byCat[c.Key()]
		if len(titles) == 0 {
			continue
		}
		clauses = append(clauses, "Added "+joinTitles(titles)+" to "+c.String())
	}
	return strings.Join(clauses, "; ")
}

func joinTitles(titles []string) string {
	switch len(titles) {
	case 0:
		return ""
	case 1:
		return titles[0]
	default:
		return strings.Join(titles[:len(titles)-1], ", ") + " and " + titles[len(titles)-1]
	}
}
