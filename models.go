package library

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Identity is who the session belongs to. It is derived from the token at
// login and read back from storage afterwards; the client never authors it.
type Identity struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
}

// IsAdmin is true only for a normalized admin role
func (i Identity) IsAdmin() bool {
	return NormalizeRole(string(i.Role)).IsAdmin()
}

// DisplayName joins first and last name
func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// User is the admin view of an account. It shares the identity shape.
type User = Identity

// Credentials is the login payload
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, is.Email),
		validation.Field(&c.Password, validation.Required),
	)
}

// RegisterRequest is the sign up payload
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
		validation.Field(&r.FirstName, validation.Required),
		validation.Field(&r.LastName, validation.Required),
	)
}

// UserUpdate is what an admin sends to change an account
type UserUpdate struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      Role   `json:"role"`
	Password  string `json:"password,omitempty"`
}

func (u UserUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Email, validation.Required, is.Email),
		validation.Field(&u.FirstName, validation.Required),
		validation.Field(&u.LastName, validation.Required),
		validation.Field(&u.Role, validation.Required, validation.In(RoleUser, RoleAdmin)),
	)
}

// Book is the server's catalog record. AvailableCount and StockCount are
// only ever read; the backend changes them.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Category        string `json:"category"`
	PublicationYear int    `json:"publicationYear"`
	StockCount      int    `json:"stockCount"`
	AvailableCount  int    `json:"availableCount"`
}

// Consistent reports 0 <= available <= stock
func (b Book) Consistent() bool {
	return b.AvailableCount >= 0 && b.AvailableCount <= b.StockCount
}

// Available reports whether at least one copy appears free in this snapshot
func (b Book) Available() bool {
	return b.AvailableCount > 0
}

// BookInput is the add/update catalog payload
type BookInput struct {
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Category        string `json:"category"`
	PublicationYear int    `json:"publicationYear"`
	StockCount      int    `json:"stockCount"`
}

// Validate applies the catalog form rules as of now
func (b BookInput) Validate() error {
	return b.ValidateAt(time.Now())
}

// ValidateAt applies the catalog form rules; the publication year may not be
// later than now's year.
func (b BookInput) ValidateAt(now time.Time) error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.Required),
		validation.Field(&b.Author, validation.Required),
		validation.Field(&b.ISBN, validation.Required, validation.Length(10, 0)),
		validation.Field(&b.Category, validation.Required),
		validation.Field(&b.PublicationYear, validation.Required, validation.Min(1000), validation.Max(now.Year())),
		validation.Field(&b.StockCount, validation.Required, validation.Min(1)),
	)
}

// Loan is a borrow record. Returned and ReturnDate move together and only
// once, from open to returned.
type Loan struct {
	ID         int64    `json:"id"`
	User       Identity `json:"user"`
	Book       Book     `json:"book"`
	BorrowDate Date     `json:"borrowDate"`
	DueDate    Date     `json:"dueDate"`
	ReturnDate *Date    `json:"returnDate"`
	Returned   bool     `json:"returned"`
}

// Consistent reports returned == (returnDate != nil)
func (l Loan) Consistent() bool {
	return l.Returned == (l.ReturnDate != nil)
}

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// Date accepts the backend's plain dates as well as full timestamps.
// Plain dates are read as UTC midnight.
type Date struct {
	time.Time
}

// NewDate truncates t to its UTC calendar day
func NewDate(t time.Time) Date {
	u := t.UTC()
	return Date{Time: time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t.UTC()}, nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q", s)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d Date) String() string {
	u := d.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return u.Format(dateLayout)
	}
	return u.Format(time.RFC3339)
}
