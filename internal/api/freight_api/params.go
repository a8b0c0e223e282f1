package freight_api

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/FreightBox/internal/apperr"
	"github.com/samber/lo"
)

// ParseIDList parses "1, 2,3" into ids. Blank items are skipped, duplicates dropped.
func ParseIDList(s string) ([]uint64, error) {
	return parseList(s, false)
}

func parseList(s string, allowZero bool) ([]uint64, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil || (n == 0 && !allowZero) {
			return nil, apperr.Malformed("Invalid id %q.", p)
		}
		out = append(out, n)
	}
	return lo.Uniq(out), nil
}

// values reads request parameters and remembers the first parse failure.
type values struct {
	get func(name string) string
	err error
}

func formValues(r *http.Request) *values {
	return &values{get: r.PostFormValue}
}

func queryValues(r *http.Request) *values {
	q := r.URL.Query()
	return &values{get: q.Get}
}

func (v *values) fail(name string) {
	if v.err == nil {
		v.err = apperr.Malformed("Invalid value of %s.", name).With("field", name)
	}
}

func (v *values) str(name string) string {
	return strings.TrimSpace(v.get(name))
}

func (v *values) uint(name string) uint64 {
	s := v.str(name)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		v.fail(name)
	}
	return n
}

func (v *values) optUint(name string) *uint64 {
	if v.str(name) == "" {
		return nil
	}
	n := v.uint(name)
	return &n
}

func (v *values) int(name string) int64 {
	s := v.str(name)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		v.fail(name)
	}
	return n
}

func (v *values) int32(name string) int32 {
	s := v.str(name)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		v.fail(name)
		return 0
	}
	return int32(n)
}

func (v *values) float(name string) float64 {
	s := v.str(name)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	// NaN и Inf парсятся без ошибки
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		v.fail(name)
		return 0
	}
	return f
}

func (v *values) ids(name string) []uint64 {
	ids, err := ParseIDList(v.get(name))
	if err != nil {
		v.fail(name)
	}
	return ids
}

// codes reads a list of enum values, where 0 is valid.
func (v *values) codes(name string) []uint64 {
	out, err := parseList(v.get(name), true)
	if err != nil {
		v.fail(name)
	}
	return out
}

func (v *values) date(name string) time.Time {
	s := v.str(name)
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
	if err != nil {
		v.fail(name)
	}
	return t
}

func (v *values) optDate(name string) *time.Time {
	if v.str(name) == "" {
		return nil
	}
	t := v.date(name)
	return &t
}
