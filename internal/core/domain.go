package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"

	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"

	DateFormatISO     DateFormat = "YYYY-MM-DD"
	DateFormatEU      DateFormat = "DD/MM/YYYY"
	DateFormatUS      DateFormat = "MM/DD/YYYY"
	DateFormatDMYDash DateFormat = "DD-MM-YYYY"
)

const dateLayout = "2006-01-02"

type (
	Role       string
	Theme      string
	DateFormat string

	// Date is a calendar date without time of day, always UTC.
	Date struct {
		time.Time
	}

	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Password string `json:"password"` // plaintext
		Role     Role   `json:"role"`
	}

	Job struct {
		ID          string `json:"id"`
		Date        Date   `json:"date"`
		ClientName  string `json:"clientName"`
		Vendor      string `json:"vendor"` // product name, not enforced
		Amount      Amount `json:"amount"`
		Description string `json:"description"`
	}

	Payment struct {
		ID          string `json:"id"`
		Date        Date   `json:"date"`
		Vendor      string `json:"vendor"`
		Amount      Amount `json:"amount"`
		Description string `json:"description"`
	}

	Product struct {
		Name        string `json:"name"`
		Rate        Amount `json:"rate"`
		Description string `json:"description"`
	}

	Settings struct {
		CompanyName string     `json:"companyName"`
		Currency    string     `json:"currency"`
		DateFormat  DateFormat `json:"dateFormat"`
		Theme       Theme      `json:"theme"`
	}

	// Snapshot is the full persisted state at a point in time.
	Snapshot struct {
		Users    []User
		Jobs     []Job
		Payments []Payment
		Products []Product
		Settings Settings
	}
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrPersistence        = errors.New("persistence failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrClosed             = errors.New("store is not open")

	ErrDuplicateUsername = fmt.Errorf("%w: username already exists", ErrValidation)
	ErrDuplicateProduct  = fmt.Errorf("%w: product name already exists", ErrValidation)
	ErrLastAdmin         = fmt.Errorf("%w: cannot delete the last admin user", ErrValidation)
	ErrInvalidAmount     = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrInvalidDate       = fmt.Errorf("%w: invalid date", ErrValidation)
	ErrInvalidMonth      = fmt.Errorf("%w: invalid month", ErrValidation)
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

// DefaultSettings is used when no settings record has been stored.
func DefaultSettings() Settings {
	return Settings{
		CompanyName: "Your Company",
		Currency:    "INR",
		DateFormat:  DateFormatDMYDash,
		Theme:       ThemeLight,
	}
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidDate)
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Format renders the date using one of the configured display formats.
func (f DateFormat) Format(d Date) string {
	if d.IsZero() {
		return ""
	}
	switch f {
	case DateFormatEU:
		return d.Time.Format("02/01/2006")
	case DateFormatUS:
		return d.Time.Format("01/02/2006")
	case DateFormatDMYDash:
		return d.Time.Format("02-01-2006")
	default:
		return d.Time.Format(dateLayout)
	}
}

func (f DateFormat) Valid() bool {
	switch f {
	case DateFormatISO, DateFormatEU, DateFormatUS, DateFormatDMYDash:
		return true
	}
	return false
}

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return invalid("username is required")
	}
	if u.Password == "" {
		return invalid("password is required")
	}
	if !u.Role.Valid() {
		return invalid("invalid role %q", u.Role)
	}
	return nil
}

func (j Job) Validate() error {
	if err := j.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(j.ClientName) == "" {
		return invalid("client name is required")
	}
	if _, err := j.Amount.Cents(); err != nil {
		return err
	}
	if len(j.Description) > 500 {
		return invalid("description too long (max 500 characters)")
	}
	return nil
}

func (p Payment) Validate() error {
	if err := p.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Vendor) == "" {
		return invalid("vendor is required")
	}
	if _, err := p.Amount.Cents(); err != nil {
		return err
	}
	if len(p.Description) > 500 {
		return invalid("description too long (max 500 characters)")
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("product name is required")
	}
	if _, err := p.Rate.Cents(); err != nil {
		return err
	}
	return nil
}

func (s Settings) Validate() error {
	if strings.TrimSpace(s.CompanyName) == "" {
		return invalid("company name is required")
	}
	if !validCurrency(s.Currency) {
		return invalid("currency %q is not an ISO 4217 code", s.Currency)
	}
	if !s.DateFormat.Valid() {
		return invalid("unsupported date format %q", s.DateFormat)
	}
	if !s.Theme.Valid() {
		return invalid("unsupported theme %q", s.Theme)
	}
	return nil
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
