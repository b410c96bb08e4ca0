// Package version compares dotted version strings such as "1.10.2" or
// "4.5.0-rc1". Components are compared numerically, so "1.10" sorts after
// "1.9". A component with a non-numeric suffix compares by its numeric
// prefix first, then by the suffix as text.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Compare returns -1, 0 or 1 as a is older than, equal to or newer than b.
// Missing trailing components count as zero.
func Compare(a, b string) int {
	pa, pb := split(a), split(b)
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var ca, cb string
		if i < len(pa) {
			ca = pa[i]
		}
		if i < len(pb) {
			cb = pb[i]
		}
		if c := compareComponent(ca, cb); c != 0 {
			return c
		}
	}
	return 0
}

// Check evaluates "a op b" for op one of ==, !=, <, <=, >, >=.
func Check(a, op, b string) (bool, error) {
	c := Compare(a, b)
	switch op {
	case "==":
		return c == 0, nil
	case "!=":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("version: unknown operator %q", op)
}

func split(v string) []string {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil
	}
	return strings.FieldsFunc(v, func(r rune) bool { return r == '.' || r == '-' })
}

func compareComponent(a, b string) int {
	na, sa := numericPrefix(a)
	nb, sb := numericPrefix(b)
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}
	// "3.4" is newer than "3.4rc".
	switch {
	case sa == sb:
		return 0
	case sa == "":
		return 1
	case sb == "":
		return -1
	case sa < sb:
		return -1
	default:
		return 1
	}
}

func numericPrefix(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(s[:i])
	return n, s[i:]
}
