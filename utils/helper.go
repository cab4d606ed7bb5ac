package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// StartOfDayUTC truncates t to 00:00:00 UTC.
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDayUTC moves t to 23:59:59.999999999 UTC so BETWEEN-style range
// filters include every row written during that day.
func EndOfDayUTC(t time.Time) time.Time {
	return StartOfDayUTC(t).Add(24*time.Hour - time.Nanosecond)
}

// ParseDateString parses a YYYY-MM-DD query parameter.
func ParseDateString(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date string")
	}
	return time.Parse("2006-01-02", value)
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return dec, nil
}
