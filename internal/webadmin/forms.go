// ABOUTME: Form parsing helpers shared by the panes
// ABOUTME: Race number ranges ("1-3,5"), integers, divisions and dates

package webadmin

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"

	"github.com/techscore/techscore/internal/regatta"
)

var errBadForm = errors.New("invalid form value")

func invalid(field, message string) error {
	return regatta.Invalid(errBadForm, field, message)
}

// maxRaces is the most races a division may have.
const maxRaces = 99

// parseNumbers reads a list of race numbers such as "1-3, 5 7", each
// between 1 and maxRaces.
func parseNumbers(s string) ([]int, error) {
	seen := make(map[int]bool)
	var out []int
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' })
	for _, f := range fields {
		lo, hi := f, f
		if i := strings.Index(f, "-"); i > 0 {
			lo, hi = f[:i], f[i+1:]
		}
		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errBadForm, f)
		}
		b, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errBadForm, f)
		}
		if a < 1 || b < a || b > maxRaces {
			return nil, fmt.Errorf("%w: %q", errBadForm, f)
		}
		for n := a; n <= b; n++ {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}

// formatNumbers is the inverse of parseNumbers: [1 2 3 5] is "1-3, 5".
func formatNumbers(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)

	var parts []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, n := range sorted[1:] {
		if n == prev {
			continue
		}
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return strings.Join(parts, ", ")
}

// formInt reads an integer field, returning def when it is blank.
func formInt(r *http.Request, field string, def int) (int, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, invalid(field, fmt.Sprintf("%q is not a number.", v))
	}
	return n, nil
}

// formDate reads a YYYY-MM-DD field.
func formDate(r *http.Request, field string) (time.Time, error) {
	v := strings.TrimSpace(r.FormValue(field))
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, invalid(field, "Dates must be written as YYYY-MM-DD.")
	}
	return t, nil
}

// formDivisions reads the checked divisions, limited to those the regatta
// sails, each listed once. An empty selection means all of them.
func formDivisions(r *http.Request, reg *regatta.Regatta) ([]regatta.Division, error) {
	values := r.Form["division"]
	if len(values) == 0 || (len(values) == 1 && values[0] == "") {
		return reg.Divisions, nil
	}
	var out []regatta.Division
	seen := make(map[regatta.Division]bool)
	for _, v := range values {
		d, err := regatta.ParseDivision(v)
		if err != nil || !reg.HasDivision(d) {
			return nil, invalid("division", fmt.Sprintf("Invalid division %q.", v))
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// formBoat reads the boat field, which must name one of boats. A blank
// field falls back to the configured default boat.
func formBoat(r *http.Request, boats []regatta.Boat, def string) (string, error) {
	id := strings.TrimSpace(r.FormValue("boat"))
	if id == "" {
		return defaultBoat(boats, def), nil
	}
	for _, b := range boats {
		if b.ID == id {
			return id, nil
		}
	}
	return "", invalid("boat", "Unknown boat.")
}

// englishRaces returns "1 race" or "n races".
func englishRaces(n int) string {
	return english.Plural(n, "race", "")
}
