package newsletter

import "fmt"

// The issue numbering anchor: issue 412 was published January 2018 and
// every month since has produced exactly one issue. The formula below is
// a bijection between (year, month) and issue numbers, which is what makes
// IssueNo safe as a dedup key across discovery sources.
const (
	epochYear    = 2018
	epochMonth   = 1
	epochIssueNo = 412
)

// IssueNoFor returns the issue number for a given publication year and month.
func IssueNoFor(year, month int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("month out of range: %d", month)
	}
	n := (year-epochYear)*12 + (month - epochMonth) + epochIssueNo
	if n < 1 {
		return 0, fmt.Errorf("date %d-%02d predates issue numbering", year, month)
	}
	return n, nil
}

// DateForIssueNo inverts IssueNoFor, recovering (year, month) from an issue number.
func DateForIssueNo(issueNo int) (year, month int, err error) {
	if issueNo < 1 {
		return 0, 0, fmt.Errorf("invalid issue number: %d", issueNo)
	}
	offset := issueNo - epochIssueNo
	year = epochYear + offset/12
	month = epochMonth + offset%12
	if month < 1 {
		month += 12
		year--
	}
	if month > 12 {
		month -= 12
		year++
	}
	return year, month, nil
}
