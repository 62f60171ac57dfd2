// This file implements decoding and validation of JSON request bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"ledger/internal/core"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks bodies that are not decodable at all.
var errBadRequest = errors.New("malformed request")

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
}

type jobRequest struct {
	Date        string      `json:"date" validate:"required,datetime=2006-01-02"`
	ClientName  string      `json:"clientName" validate:"required,max=200"`
	Vendor      string      `json:"vendor" validate:"max=200"`
	Amount      core.Amount `json:"amount" validate:"required,max=32"`
	Description string      `json:"description" validate:"max=500"`
}

type paymentRequest struct {
	Date        string      `json:"date" validate:"required,datetime=2006-01-02"`
	Vendor      string      `json:"vendor" validate:"required,max=200"`
	Amount      core.Amount `json:"amount" validate:"required,max=32"`
	Description string      `json:"description" validate:"max=500"`
}

type productRequest struct {
	Name        string      `json:"name" validate:"required,max=200"`
	Rate        core.Amount `json:"rate" validate:"required,max=32"`
	Description string      `json:"description" validate:"max=500"`
}

type userRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=200"`
	Role     string `json:"role" validate:"required,oneof=admin staff"`
}

type settingsRequest struct {
	CompanyName string `json:"companyName" validate:"required,max=200"`
	Currency    string `json:"currency" validate:"required,len=3,uppercase"`
	DateFormat  string `json:"dateFormat" validate:"required,oneof=YYYY-MM-DD DD/MM/YYYY MM/DD/YYYY DD-MM-YYYY"`
	Theme       string `json:"theme" validate:"required,oneof=light dark"`
}

// requestValidator wraps go-playground/validator and turns its errors into
// core.ErrValidation with readable messages.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
		return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(msgs, "; "))
	}
	return err
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	case "uppercase":
		return field + " must be upper-case"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// decodeJSON reads a single JSON value from the body into dst and
// validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", errBadRequest, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errBadRequest)
		default:
			return fmt.Errorf("%w: invalid JSON", errBadRequest)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON body", errBadRequest)
	}
	return s.validate.Validate(dst)
}

func (req jobRequest) toJob(id string) (core.Job, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Job{}, err
	}
	return core.Job{
		ID:          id,
		Date:        date,
		ClientName:  sanitizeInput(req.ClientName),
		Vendor:      sanitizeInput(req.Vendor),
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
	}, nil
}

func (req paymentRequest) toPayment(id string) (core.Payment, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Payment{}, err
	}
	return core.Payment{
		ID:          id,
		Date:        date,
		Vendor:      sanitizeInput(req.Vendor),
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
	}, nil
}

func (req productRequest) toProduct() core.Product {
	return core.Product{
		Name:        sanitizeInput(req.Name),
		Rate:        req.Rate,
		Description: sanitizeInput(req.Description),
	}
}

func (req userRequest) toUser() core.User {
	return core.User{
		Username: sanitizeInput(req.Username),
		Password: req.Password,
		Role:     core.Role(req.Role),
	}
}

func (req settingsRequest) toSettings() core.Settings {
	return core.Settings{
		CompanyName: sanitizeInput(req.CompanyName),
		Currency:    req.Currency,
		DateFormat:  core.DateFormat(req.DateFormat),
		Theme:       core.Theme(req.Theme),
	}
}

// parseMonthParam reads ?month=YYYY-MM, defaulting to the current month.
func parseMonthParam(r *http.Request, now time.Time) (core.Month, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return core.MonthOf(core.NewDate(now.Year(), int(now.Month()), 1)), nil
	}
	return core.ParseMonth(v)
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
