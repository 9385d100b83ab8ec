package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Period is the sampling frequency of a return series.
// The zero value means no period was given.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

var (
	// ErrUnsupportedPeriod is returned for conversions other than identity,
	// annualisation of a sub-year period, or de-annualisation to a sub-year period.
	ErrUnsupportedPeriod = errors.New("unsupported input/output period combination")

	// ErrUnknownPeriod is returned by ParsePeriod for an unrecognised label.
	ErrUnknownPeriod = errors.New("unknown period")
)

// ParsePeriod converts a label such as "monthly" into a Period.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case Daily, Weekly, Monthly, Yearly:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
}

// PeriodsPerYear returns how many periods of p make up a year.
// Only sub-year periods report ok.
func (p Period) PeriodsPerYear() (float64, bool) {
	switch p {
	case Daily:
		return 252, true
	case Weekly:
		return 52, true
	case Monthly:
		return 12, true
	default:
		return 0, false
	}
}

// ConvertMean converts a percentage mean return between periods using compounding.
//
//	annualised   = ((1 + r/100)^k - 1) * 100
//	de-annualised = ((1 + r/100)^(1/k) - 1) * 100
func ConvertMean(value float64, input, output Period) (float64, error) {
	if input == output {
		return value, nil
	}
	if output == Yearly {
		if k, ok := input.PeriodsPerYear(); ok {
			return (math.Pow(1+value/100, k) - 1) * 100, nil
		}
	}
	if input == Yearly {
		if k, ok := output.PeriodsPerYear(); ok {
			return (math.Pow(1+value/100, 1/k) - 1) * 100, nil
		}
	}
	return 0, fmt.Errorf("%w: %q to %q", ErrUnsupportedPeriod, input, output)
}

// ConvertStdDev converts a percentage standard deviation between periods using the
// square-root-of-time rule.
func ConvertStdDev(value float64, input, output Period) (float64, error) {
	if input == output {
		return value, nil
	}
	if output == Yearly {
		if k, ok := input.PeriodsPerYear(); ok {
			return value * math.Sqrt(k), nil
		}
	}
	if input == Yearly {
		if k, ok := output.PeriodsPerYear(); ok {
			return value / math.Sqrt(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q to %q", ErrUnsupportedPeriod, input, output)
}

// ConvertMeans applies ConvertMean to every symbol.
func ConvertMeans(values map[string]float64, input, output Period) (map[string]float64, error) {
	return convertAll(values, input, output, ConvertMean)
}

// ConvertStdDevs applies ConvertStdDev to every symbol.
func ConvertStdDevs(values map[string]float64, input, output Period) (map[string]float64, error) {
	return convertAll(values, input, output, ConvertStdDev)
}

func convertAll(
	values map[string]float64,
	input, output Period,
	convert func(float64, Period, Period) (float64, error),
) (map[string]float64, error) {
	out := make(map[string]float64, len(values))
	for symbol, v := range values {
		c, err := convert(v, input, output)
		if err != nil {
			return nil, err
		}
		out[symbol] = c
	}
	// An empty map still reports an unsupported combination.
	if len(values) == 0 {
		if _, err := convert(0, input, output); err != nil {
			return nil, err
		}
	}
	return out, nil
}
