package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Month identifies a calendar year+month.
type Month struct {
	Year  int
	Month int // 1-12
}

// MonthlySummary holds the income/expense figures for a single month.
type MonthlySummary struct {
	Month        Month `json:"month"`
	Income       Money `json:"income"`
	Expense      Money `json:"expense"`
	Net          Money `json:"net"`
	JobCount     int   `json:"jobCount"`
	PaymentCount int   `json:"paymentCount"`
	// Skipped counts in-month records whose amount could not be parsed.
	Skipped int `json:"skipped"`
}

func NewMonth(year, month int) (Month, error) {
	m := Month{Year: year, Month: month}
	if err := m.Validate(); err != nil {
		return Month{}, err
	}
	return m, nil
}

// MonthOf returns the month a date falls in.
func MonthOf(d Date) Month {
	return Month{Year: d.Year(), Month: int(d.Time.Month())}
}

// ParseMonth parses "YYYY-MM".
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	y, m, ok := strings.Cut(s, "-")
	if !ok || len(y) != 4 || len(m) != 2 {
		return Month{}, fmt.Errorf("%w %q", ErrInvalidMonth, s)
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return Month{}, fmt.Errorf("%w %q", ErrInvalidMonth, s)
	}
	month, err := strconv.Atoi(m)
	if err != nil {
		return Month{}, fmt.Errorf("%w %q", ErrInvalidMonth, s)
	}
	return NewMonth(year, month)
}

func (m Month) Validate() error {
	if m.Month < 1 || m.Month > 12 {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidMonth, m.Month)
	}
	if m.Year < 1 || m.Year > 9999 {
		return fmt.Errorf("%w: year %d out of range", ErrInvalidMonth, m.Year)
	}
	return nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

// Contains reports whether the date falls within the month.
func (m Month) Contains(d Date) bool {
	return !d.IsZero() && d.Year() == m.Year && d.Time.Month() == time.Month(m.Month)
}

func (m Month) FirstDay() Date {
	return NewDate(m.Year, m.Month, 1)
}

func (m Month) LastDay() Date {
	return Date{Time: m.FirstDay().AddDate(0, 1, -1)}
}

func (m Month) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Month) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Summarize computes income from jobs and expense from payments dated within
// month. Malformed amounts contribute zero and are counted in Skipped.
func Summarize(jobs []Job, payments []Payment, month Month) MonthlySummary {
	s := MonthlySummary{Month: month}
	for _, j := range jobs {
		if !month.Contains(j.Date) {
			continue
		}
		c, err := j.Amount.Cents()
		if err != nil {
			s.Skipped++
			continue
		}
		s.Income.Cents += c
		s.JobCount++
	}
	for _, p := range payments {
		if !month.Contains(p.Date) {
			continue
		}
		c, err := p.Amount.Cents()
		if err != nil {
			s.Skipped++
			continue
		}
		s.Expense.Cents += c
		s.PaymentCount++
	}
	s.Net.Cents = s.Income.Cents - s.Expense.Cents
	return s
}
