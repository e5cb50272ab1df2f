package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	fullDatePattern  = regexp.MustCompile(`^(\d{4})\.\s*(\d{1,2})\.\s*(\d{1,2})`)
	daysAgoPattern   = regexp.MustCompile(`^(\d+)일\s*전`)
	adminDatePattern = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{2})`)
)

// ParsePostDate normalizes a post list date to YYYY-MM-DD. It accepts
// "2026. 2. 10.", relative hours or minutes (today) and "N일 전".
func ParsePostDate(raw string, today time.Time) (string, bool) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), ".")

	if m := fullDatePattern.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		return fmt.Sprintf("%s-%02d-%02d", m[1], month, day), true
	}
	if strings.Contains(s, "시간 전") || strings.Contains(s, "분 전") {
		return today.Format(dateLayout), true
	}
	if m := daysAgoPattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n).Format(dateLayout), true
	}
	return "", false
}

// ParseAdminDate converts the admin table's YY.MM.DD to YYYY-MM-DD. It
// returns "" for anything else, including "-".
func ParseAdminDate(raw string) string {
	s := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	m := adminDatePattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("20%s-%s-%s", m[1], m[2], m[3])
}

// CutoffOrToday returns cutoff, or today's date when cutoff is empty.
func CutoffOrToday(cutoff string, today time.Time) string {
	if cutoff != "" {
		return cutoff
	}
	return today.Format(dateLayout)
}
