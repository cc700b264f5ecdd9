/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cron

import (
	"fmt"
	"strconv"
	"strings"
)

var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// weekdayNames uses Monday=0, matching Expression's weekday indexing.
var weekdayNames = map[string]int{
	"mon": 0, "monday": 0,
	"tue": 1, "tuesday": 1,
	"wed": 2, "wednesday": 2,
	"thu": 3, "thursday": 3,
	"fri": 4, "friday": 4,
	"sat": 5, "saturday": 5,
	"sun": 6, "sunday": 6,
}

// Parse turns a set of strings into a single Expression. Each string
// may itself contain comma-separated tokens; the result is the Union
// of every token across every input string. Parse has no knowledge of
// which field it is parsing; call Validate afterward with the target
// field to enforce field-specific rules.
func Parse(values []string) (Expression, error) {
	var exprs []Expression
	for _, v := range values {
		for _, tok := range strings.Split(v, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			e, err := parseToken(tok)
			if err != nil {
				return Expression{}, fmt.Errorf("parsing token %q: %w", tok, err)
			}
			exprs = append(exprs, e)
		}
	}
	if len(exprs) == 0 {
		return All(), nil
	}
	return Union(exprs...), nil
}

func parseToken(tok string) (Expression, error) {
	lower := strings.ToLower(tok)

	if lower == "*" || lower == "?" {
		return All(), nil
	}
	if lower == "l" {
		return SingleLast(), nil
	}

	if strings.HasSuffix(lower, "l") && len(lower) > 1 {
		if day, ok := parseWeekdayName(lower[:len(lower)-1]); ok {
			return LastWeekday(day), nil
		}
	}

	if strings.HasSuffix(lower, "w") && len(lower) > 1 {
		n, err := strconv.Atoi(lower[:len(lower)-1])
		if err == nil {
			return NearestWeekday(n), nil
		}
	}

	if day, n, ok := parseNthWeekday(lower); ok {
		return NthWeekday(day, n), nil
	}

	if idx := strings.Index(lower, "/"); idx >= 0 {
		base, stepStr := lower[:idx], lower[idx+1:]
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return Expression{}, fmt.Errorf("invalid step %q", stepStr)
		}
		if base == "*" || base == "?" {
			return Range(0, nil, step), nil
		}
		if dashIdx := strings.Index(base, "-"); dashIdx >= 0 {
			start, end, err := parseBoundedRange(base, dashIdx)
			if err != nil {
				return Expression{}, err
			}
			return Range(start, &end, step), nil
		}
		start, err := parseNumericOrName(base)
		if err != nil {
			return Expression{}, err
		}
		return Range(start, nil, step), nil
	}

	if dashIdx := strings.Index(lower, "-"); dashIdx >= 0 {
		start, end, err := parseBoundedRange(lower, dashIdx)
		if err != nil {
			return Expression{}, err
		}
		return Range(start, &end, 1), nil
	}

	v, err := parseNumericOrName(lower)
	if err != nil {
		return Expression{}, err
	}
	return SingleNumeric(v), nil
}

func parseBoundedRange(s string, dashIdx int) (int, int, error) {
	start, err := parseNumericOrName(s[:dashIdx])
	if err != nil {
		return 0, 0, err
	}
	end, err := parseNumericOrName(s[dashIdx+1:])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// parseNthWeekday recognizes "<weekday>#<n>" (e.g. "mon#2") and its
// "<weekday>d<n>" dialect variant.
func parseNthWeekday(s string) (day, n int, ok bool) {
	for _, sep := range []string{"#", "d"} {
		if idx := strings.Index(s, sep); idx > 0 {
			name := s[:idx]
			rest := s[idx+len(sep):]
			d, known := parseWeekdayName(name)
			if !known {
				continue
			}
			nv, err := strconv.Atoi(rest)
			if err != nil {
				continue
			}
			return d, nv, true
		}
	}
	return 0, 0, false
}

func parseWeekdayName(s string) (int, bool) {
	d, ok := weekdayNames[s]
	return d, ok
}

func parseNumericOrName(s string) (int, error) {
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	if v, ok := monthNames[s]; ok {
		return v, nil
	}
	if v, ok := weekdayNames[s]; ok {
		return v, nil
	}
	return 0, fmt.Errorf("not a recognized numeric or name token: %q", s)
}
