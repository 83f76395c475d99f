package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/simroster/simroster/pkg/money"
)

// DateFormat is the operator-facing date layout (DD.MM.YYYY HH:MM).
const DateFormat = "02.01.2006 15:04"

var (
	ErrInvalidPhone       = errors.New("invalid_phone")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidTariffLabel = errors.New("invalid_tariff_label")

	phoneRe       = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
	phoneStripRe  = regexp.MustCompile(`[\s\-()]`)
	parenRe       = regexp.MustCompile(`\((.*?)\)`)
	tariffLabelRe = regexp.MustCompile(`^(.*?) \((\d+(?:\.\d+)?) AED / (\d+) дн\.\)$`)
)

// NormalizePhone strips whitespace, hyphens and parentheses. It is
// idempotent.
func NormalizePhone(raw string) string {
	return phoneStripRe.ReplaceAllString(strings.TrimSpace(raw), "")
}

// IsValidPhone reports whether phone has E.164 shape: "+" followed by 8-15
// digits, first digit non-zero.
func IsValidPhone(phone string) bool {
	return phoneRe.MatchString(phone)
}

// ExtractPhone pulls a phone number out of a selection label such as
// "Имя (+971501234567)"; plain input is normalized as-is.
func ExtractPhone(text string) string {
	if strings.Contains(text, "(") && strings.Contains(text, ")") {
		if m := parenRe.FindStringSubmatch(text); m != nil {
			return NormalizePhone(m[1])
		}
	}
	return NormalizePhone(text)
}

// TariffLabel renders the fixed selection label for a tariff.
func TariffLabel(name string, costMinor int64, durationDays int) string {
	return fmt.Sprintf("%s (%s AED / %d дн.)", name, money.FormatMinor(costMinor), durationDays)
}

// ParseTariffLabel parses a selection label back into its snapshot values.
// Any text outside the fixed pattern is a format error.
func ParseTariffLabel(text string) (name string, costMinor int64, durationDays int, err error) {
	m := tariffLabelRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", 0, 0, ErrInvalidTariffLabel
	}
	costMinor, err = money.ParseAmountMinor(m[2])
	if err != nil {
		return "", 0, 0, ErrInvalidTariffLabel
	}
	durationDays, err = strconv.Atoi(m[3])
	if err != nil || durationDays <= 0 {
		return "", 0, 0, ErrInvalidTariffLabel
	}
	return m[1], costMinor, durationDays, nil
}

// ParseConnectionDate resolves operator date input: the "today" sentinel
// (case-insensitive, Russian or English) becomes now in the operating zone
// truncated to the minute; anything else must match DateFormat in that zone.
func ParseConnectionDate(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	input := strings.TrimSpace(raw)
	switch strings.ToLower(input) {
	case "сегодня", "today":
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(DateFormat, input, loc)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}
