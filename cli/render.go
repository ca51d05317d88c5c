package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	library "github.com/goliatone/go-library-client"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func renderBooks(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tCATEGORY\tYEAR\tAVAILABLE")
	for _, b := range books {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d/%d\n",
			b.ID, b.Title, b.Author, b.Category, b.PublicationYear, b.AvailableCount, b.StockCount)
	}
	tw.Flush()
}

func renderLoans(w io.Writer, loans []library.Loan, now time.Time, withUser bool) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No loans.")
		return
	}
	tw := newTable(w)
	if withUser {
		fmt.Fprintln(tw, "ID\tUSER\tBOOK\tBORROWED\tDUE\tSTATUS")
	} else {
		fmt.Fprintln(tw, "ID\tBOOK\tBORROWED\tDUE\tSTATUS")
	}
	for _, l := range loans {
		if withUser {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				l.ID, l.User.Email, l.Book.Title, l.BorrowDate, l.DueDate, loanStatus(l, now))
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
				l.ID, l.Book.Title, l.BorrowDate, l.DueDate, loanStatus(l, now))
		}
	}
	tw.Flush()
}

func loanStatus(l library.Loan, now time.Time) string {
	switch {
	case l.Returned && l.ReturnDate != nil:
		return "returned " + l.ReturnDate.String()
	case l.Returned:
		return "returned"
	case library.IsOverdue(l, now):
		return fmt.Sprintf("OVERDUE %d days", library.DaysOverdue(l, now))
	default:
		return "active"
	}
}

func renderStats(w io.Writer, stats library.LoanStats) {
	fmt.Fprintf(w, "Active: %d  Overdue: %d  Total: %d\n", stats.Active, stats.Overdue, stats.Total)
}

func renderUsers(w io.Writer, users []library.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, "No users.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.DisplayName(), u.Email, u.Role)
	}
	tw.Flush()
}
