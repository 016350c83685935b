package correct

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Recognition providers sometimes misread digits; these checks flag values
// that cannot be right without touching the text.
const (
	maxMonth      = 12
	maxDay        = 31
	maxAttendance = 10_000
)

var (
	monthExpr      = regexp.MustCompile(`(\d{1,3})월`)
	dayExpr        = regexp.MustCompile(`(\d{1,3})일`)
	attendanceExpr = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d+)\s?명`)
)

// checkPlausibility scans text for numerically impossible values. Findings
// are warnings only; the values are never altered.
func checkPlausibility(text string) []Warning {
	var warnings []Warning

	for _, m := range monthExpr.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil && v > maxMonth {
			warnings = append(warnings, Warning{
				Kind:    "implausible_month",
				Value:   m[0],
				Message: fmt.Sprintf("month %d exceeds 12", v),
			})
		}
	}

	for _, m := range dayExpr.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil && v > maxDay {
			warnings = append(warnings, Warning{
				Kind:    "implausible_day",
				Value:   m[0],
				Message: fmt.Sprintf("day %d exceeds 31", v),
			})
		}
	}

	for _, m := range attendanceExpr.FindAllStringSubmatch(text, -1) {
		raw := strings.ReplaceAll(m[1], ",", "")
		if v, err := strconv.Atoi(raw); err == nil && v >= maxAttendance {
			warnings = append(warnings, Warning{
				Kind:    "implausible_attendance",
				Value:   m[0],
				Message: fmt.Sprintf("attendance %d is implausibly large", v),
			})
		}
	}

	return warnings
}
