package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrEmptyAddress = errors.New("shipping address is required")
	ErrMalformed    = errors.New("malformed shipping address")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Form is the structured shipping-address modal. It is only ever sent to the
// backend as the single string produced by Format.
type Form struct {
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Street   string `json:"street" validate:"required"`
	Landmark string `json:"landmark"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	Pincode  string `json:"pincode" validate:"required"`
}

// FieldErrors maps the json name of each invalid field to a message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for _, name := range fieldOrder {
		if _, ok := fe[name]; ok {
			fields = append(fields, name)
		}
	}
	return "missing required address fields: " + strings.Join(fields, ", ")
}

var fieldOrder = []string{"fullName", "phone", "street", "city", "state", "pincode"}

var jsonNames = map[string]string{
	"FullName": "fullName",
	"Phone":    "phone",
	"Street":   "street",
	"City":     "city",
	"State":    "state",
	"Pincode":  "pincode",
}

func (f Form) trimmed() Form {
	return Form{
		FullName: strings.TrimSpace(f.FullName),
		Phone:    strings.TrimSpace(f.Phone),
		Street:   strings.TrimSpace(f.Street),
		Landmark: strings.TrimSpace(f.Landmark),
		City:     strings.TrimSpace(f.City),
		State:    strings.TrimSpace(f.State),
		Pincode:  strings.TrimSpace(f.Pincode),
	}
}

// Validate checks every required field is non-blank. The returned error is a
// FieldErrors when fields are missing.
func (f Form) Validate() error {
	err := validate.Struct(f.trimmed())
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range ve {
		name, ok := jsonNames[fe.StructField()]
		if !ok {
			name = strings.ToLower(fe.StructField())
		}
		out[name] = "This field is required."
	}
	return out
}

// Format joins the form into the shipping address string:
//
//	{name}, {phone}
//	{street}[, {landmark}]
//	{city}, {state} - {pincode}
func (f Form) Format() string {
	t := f.trimmed()
	street := t.Street
	if t.Landmark != "" {
		street += ", " + t.Landmark
	}
	return fmt.Sprintf("%s, %s\n%s\n%s, %s - %s", t.FullName, t.Phone, street, t.City, t.State, t.Pincode)
}

// Build validates the form and returns its formatted address.
func (f Form) Build() (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f.Format(), nil
}

// FromPrompt accepts the free-text variant of the address input.
func FromPrompt(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyAddress
	}
	return s, nil
}

// Parse splits a formatted address back into a Form. Values containing the
// separators themselves cannot be recovered unambiguously; the first ", " on
// the name and street lines and the last " - " on the city line win.
func Parse(s string) (Form, error) {
	lines := strings.Split(s, "\n")
	if len(lines) != 3 {
		return Form{}, ErrMalformed
	}

	name, phone, ok := strings.Cut(lines[0], ", ")
	if !ok {
		return Form{}, ErrMalformed
	}
	street, landmark, _ := strings.Cut(lines[1], ", ")

	sep := strings.LastIndex(lines[2], " - ")
	if sep < 0 {
		return Form{}, ErrMalformed
	}
	city, state, ok := strings.Cut(lines[2][:sep], ", ")
	if !ok {
		return Form{}, ErrMalformed
	}

	return Form{
		FullName: name,
		Phone:    phone,
		Street:   street,
		Landmark: landmark,
		City:     city,
		State:    state,
		Pincode:  lines[2][sep+3:],
	}, nil
}
