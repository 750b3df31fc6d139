package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Часовой пояс площадки.
var platformZone = time.FixedZone("CST", 8*3600)

var (
	prefixes  = []string{"编辑于", "发布于"}
	justNow   = []string{"刚刚"}
	today     = []string{"今天"}
	yesterday = []string{"昨天"}
	dayBefore = []string{"前天"}

	reAgo      = regexp.MustCompile(`(\d+)\s*(分钟|小时|天)前`)
	reFullDate = regexp.MustCompile(`(\d{4})[-./年](\d{1,2})[-./月](\d{1,2})`)
	reShort    = regexp.MustCompile(`^(\d{1,2})[-./月](\d{1,2})`)
)

// DateParser разбирает даты публикации площадки ("3天前", "昨天 12:30", "10-18", "2024-10-18").
type DateParser struct {
	now func() time.Time
}

func NewDateParser(now func() time.Time) *DateParser {
	if now == nil {
		now = time.Now
	}
	return &DateParser{now: now}
}

// Parse возвращает дату публикации (UTC, время 00:00:00).
func (dp *DateParser) Parse(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" || dateStr == Unknown {
		return time.Time{}, fmt.Errorf("empty date string")
	}
	for _, p := range prefixes {
		dateStr = strings.TrimSpace(strings.TrimPrefix(dateStr, p))
	}

	now := dp.now().In(platformZone)
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	if containsAny(dateStr, justNow) || containsAny(dateStr, today) {
		return day(now), nil
	}
	if containsAny(dateStr, yesterday) {
		return day(now.AddDate(0, 0, -1)), nil
	}
	if containsAny(dateStr, dayBefore) {
		return day(now.AddDate(0, 0, -2)), nil
	}

	if m := reAgo.FindStringSubmatch(dateStr); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid amount: %q: %w", m[1], err)
		}
		switch m[2] {
		case "分钟":
			return day(now.Add(-time.Duration(n) * time.Minute)), nil
		case "小时":
			return day(now.Add(-time.Duration(n) * time.Hour)), nil
		default:
			return day(now.AddDate(0, 0, -n)), nil
		}
	}

	if m := reFullDate.FindStringSubmatch(dateStr); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := reShort.FindStringSubmatch(dateStr); m != nil {
		return buildDate(strconv.Itoa(now.Year()), m[1], m[2])
	}

	return time.Time{}, fmt.Errorf("unknown date format: %s", dateStr)
}

func buildDate(y, m, d string) (time.Time, error) {
	year, err := strconv.Atoi(y)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year: %q: %w", y, err)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month: %q: %w", m, err)
	}
	dayNum, err := strconv.Atoi(d)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day: %q: %w", d, err)
	}
	if month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("invalid month: %d", month)
	}
	if dayNum < 1 || dayNum > 31 {
		return time.Time{}, fmt.Errorf("invalid day: %d", dayNum)
	}
	t := time.Date(year, time.Month(month), dayNum, 0, 0, 0, 0, time.UTC)
	if t.Day() != dayNum {
		return time.Time{}, fmt.Errorf("invalid date: %04d-%02d-%02d", year, month, dayNum)
	}
	return t, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
