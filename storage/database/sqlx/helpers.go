package sqlxrepos

import (
	"strconv"
	"strings"

	"github.com/zenabi/tuzo/core"
)

func itoa(n int) string { return strconv.Itoa(n) }

// orderByClause renders an ORDER BY clause from the requested ordering,
// falling back to dflt when none is given. Field names come from bindings
// validated upstream, never from raw user input.
func orderByClause(ordering []core.DBOrdering, dflt string) string {
	if len(ordering) == 0 {
		if dflt == "" {
			return ""
		}
		return " ORDER BY " + dflt
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
