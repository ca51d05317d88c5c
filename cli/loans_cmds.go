package cli

import (
	"fmt"

	library "github.com/goliatone/go-library-client"
	"github.com/spf13/cobra"
)

func newLoansCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Borrow, return and review loans",
	}
	cmd.AddCommand(
		newLoansMyCmd(a),
		newLoansBorrowCmd(a),
		newLoansReturnCmd(a),
		newLoansOverdueCmd(a),
		newLoansActiveCmd(a),
		newLoansUserCmd(a),
	)
	return cmd
}

func newLoansMyCmd(a *App) *cobra.Command {
	var search string
	var refresh bool
	cmd := &cobra.Command{
		Use:   "my",
		Short: "Show your loan history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh {
				if err := a.Client.Cache.Refresh(cmd.Context(), library.KeyMyLoans); err != nil {
					return err
				}
			}
			loans, err := a.Client.Cache.ListMyLoans(cmd.Context())
			if err != nil {
				return err
			}
			now := a.now()
			renderStats(a.out, library.Stats(loans, now))

			active, past := library.SplitLoans(library.FilterLoans(loans, search))
			fmt.Fprintln(a.out, "\nActive loans")
			renderLoans(a.out, active, now, false)
			fmt.Fprintln(a.out, "\nHistory")
			renderLoans(a.out, past, now, false)
			return nil
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by title or author")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch your loans again")
	return screen(cmd, library.ScreenLoans)
}

func newLoansBorrowCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "borrow <bookId>",
		Short: "Borrow a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book id")
			if err != nil {
				return err
			}
			loan, err := a.Client.Cache.Borrow(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Borrowed %q, due %s (loan %d)\n", loan.Book.Title, loan.DueDate, loan.ID)
			return nil
		},
	}
	cmd = screen(cmd, library.ScreenBooks)
	return affordance(cmd, library.AffordanceBorrowBook)
}

func newLoansReturnCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "return <loanId>",
		Short: "Return a borrowed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "loan id")
			if err != nil {
				return err
			}
			loan, err := a.Client.Cache.Return(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Returned %q\n", loan.Book.Title)
			return nil
		},
	}
	cmd = screen(cmd, library.ScreenLoans)
	return affordance(cmd, library.AffordanceReturnBook)
}

func newLoansOverdueCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List every overdue loan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, err := a.Client.Cache.ListOverdueLoans(cmd.Context())
			if err != nil {
				return err
			}
			renderLoans(a.out, loans, a.now(), true)
			return nil
		},
	}
	cmd = screen(cmd, library.ScreenLoans)
	return affordance(cmd, library.AffordanceViewOverdueLoans)
}

func newLoansActiveCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "active",
		Short: "List every open loan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, err := a.Client.Cache.ListActiveLoans(cmd.Context())
			if err != nil {
				return err
			}
			now := a.now()
			renderStats(a.out, library.Stats(loans, now))
			renderLoans(a.out, loans, now, true)
			return nil
		},
	}
	cmd = screen(cmd, library.ScreenLoans)
	return affordance(cmd, library.AffordanceViewActiveLoans)
}

func newLoansUserCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user <userId>",
		Short: "Show one user's loan history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user id")
			if err != nil {
				return err
			}
			loans, err := a.Client.Cache.ListUserLoans(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderLoans(a.out, loans, a.now(), false)
			return nil
		},
	}
	cmd = screen(cmd, library.ScreenLoans)
	return affordance(cmd, library.AffordanceViewUserLoans)
}
