package library

import (
	"strings"
	"time"
)

// IsOverdue is computed on demand and never stored: an open loan whose due
// date is before now.
func IsOverdue(loan Loan, now time.Time) bool {
	return !loan.Returned && loan.DueDate.Before(now)
}

// IsActive reports whether the loan is still open
func IsActive(loan Loan) bool {
	return !loan.Returned
}

// DaysOverdue is the number of whole days past the due date, 0 when the loan
// is not overdue.
func DaysOverdue(loan Loan, now time.Time) int {
	if !IsOverdue(loan, now) {
		return 0
	}
	return int(now.Sub(loan.DueDate.Time) / (24 * time.Hour))
}

// LoanStats summarizes a loan list for the loans screen
type LoanStats struct {
	Active  int
	Overdue int
	Total   int
}

// Stats counts active and overdue loans as of now
func Stats(loans []Loan, now time.Time) LoanStats {
	stats := LoanStats{Total: len(loans)}
	for _, loan := range loans {
		if !IsActive(loan) {
			continue
		}
		stats.Active++
		if IsOverdue(loan, now) {
			stats.Overdue++
		}
	}
	return stats
}

// SplitLoans separates open loans from returned ones, keeping order
func SplitLoans(loans []Loan) (active, past []Loan) {
	active = make([]Loan, 0, len(loans))
	past = make([]Loan, 0)
	for _, loan := range loans {
		if IsActive(loan) {
			active = append(active, loan)
		} else {
			past = append(past, loan)
		}
	}
	return active, past
}

// FilterLoans matches query against book title or author, case insensitive
func FilterLoans(loans []Loan, query string) []Loan {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]Loan(nil), loans...)
	}

	out := make([]Loan, 0, len(loans))
	for _, loan := range loans {
		if strings.Contains(strings.ToLower(loan.Book.Title), q) ||
			strings.Contains(strings.ToLower(loan.Book.Author), q) {
			out = append(out, loan)
		}
	}
	return out
}

// FilterBooks matches query against title, author, isbn or category
func FilterBooks(books []Book, query string) []Book {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return append([]Book(nil), books...)
	}

	out := make([]Book, 0, len(books))
	for _, book := range books {
		if strings.Contains(strings.ToLower(book.Title), q) ||
			strings.Contains(strings.ToLower(book.Author), q) ||
			strings.Contains(strings.ToLower(book.ISBN), q) ||
			strings.Contains(strings.ToLower(book.Category), q) {
			out = append(out, book)
		}
	}
	return out
}

// AvailableBooks narrows the borrow picker to books that look free in this
// snapshot. It is a display filter only: the backend still decides whether a
// borrow succeeds.
func AvailableBooks(books []Book) []Book {
	out := make([]Book, 0, len(books))
	for _, book := range books {
		if book.Available() {
			out = append(out, book)
		}
	}
	return out
}
