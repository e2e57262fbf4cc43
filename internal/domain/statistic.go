package domain

import (
	"fmt"
	"strings"
)

// StatisticType is the reduction applied to a series of values.
type StatisticType string

const (
	Min StatisticType = "min"
	Max StatisticType = "max"
	Avg StatisticType = "avg"
	Sum StatisticType = "sum"
)

// Valid reports whether s is a known statistic.
func (s StatisticType) Valid() bool {
	switch s {
	case Min, Max, Avg, Sum:
		return true
	}
	return false
}

// Validate returns ErrValidation for an unknown statistic.
func (s StatisticType) Validate() error {
	if !s.Valid() {
		return fmt.Errorf("%w: unknown statistic %q", ErrValidation, s)
	}
	return nil
}

// ParseStatistic parses a statistic name, case-insensitively.
func ParseStatistic(s string) (StatisticType, error) {
	st := StatisticType(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown statistic %q", ErrValidation, s)
	}
	return st, nil
}

// SQLFunc returns the SQL aggregate function implementing s.
func (s StatisticType) SQLFunc() (string, error) {
	switch s {
	case Min:
		return "MIN", nil
	case Max:
		return "MAX", nil
	case Avg:
		return "AVG", nil
	case Sum:
		return "SUM", nil
	}
	return "", fmt.Errorf("%w: unknown statistic %q", ErrValidation, s)
}

// Reduce applies s to values. An unknown statistic or an empty input is an
// error; callers never emit results for empty groups.
func (s StatisticType) Reduce(values []float64) (float64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("%w: no values to reduce", ErrValidation)
	}

	switch s {
	case Min:
		m := values[0]
		for _, v := range values[1:] {
			if v < m {
				m = v
			}
		}
		return m, nil
	case Max:
		m := values[0]
		for _, v := range values[1:] {
			if v > m {
				m = v
			}
		}
		return m, nil
	}

	var total float64
	for _, v := range values {
		total += v
	}
	if s == Avg {
		return total / float64(len(values)), nil
	}
	return total, nil
}
