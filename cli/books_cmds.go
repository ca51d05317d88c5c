package cli

import (
	"fmt"

	library "github.com/goliatone/go-library-client"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newBooksCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Browse and manage the catalog",
	}
	cmd.AddCommand(
		newBooksListCmd(a),
		newBooksSearchCmd(a),
		newBooksAddCmd(a),
		newBooksUpdateCmd(a),
		newBooksDeleteCmd(a),
	)
	return cmd
}

func newBooksListCmd(a *App) *cobra.Command {
	var available, refresh bool
	var search string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if refresh {
				if err := a.Client.Cache.Refresh(cmd.Context(), library.KeyBooks); err != nil {
					return err
				}
			}
			books, err := a.Client.Cache.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			if available {
				books = library.AvailableBooks(books)
			}
			renderBooks(a.out, library.FilterBooks(books, search))
			return nil
		},
	}
	cmd.Flags().BoolVar(&available, "available", false, "only books with free copies")
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by title, author, isbn or category")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the catalog again")
	return screen(cmd, library.ScreenBooks)
}

func newBooksSearchCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog by title or author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := a.Client.API.SearchBooks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderBooks(a.out, books)
			return nil
		},
	}
	return screen(cmd, library.ScreenBooks)
}

func bookFlags(flags *pflag.FlagSet, in *library.BookInput) {
	flags.StringVar(&in.Title, "title", "", "title")
	flags.StringVar(&in.Author, "author", "", "author")
	flags.StringVar(&in.ISBN, "isbn", "", "ISBN, at least 10 characters")
	flags.StringVar(&in.Category, "category", "", "category")
	flags.IntVar(&in.PublicationYear, "year", 0, "publication year")
	flags.IntVar(&in.StockCount, "stock", 1, "number of copies")
}

func newBooksAddCmd(a *App) *cobra.Command {
	var in library.BookInput
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := a.Client.Cache.AddBook(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Added book %d: %s\n", book.ID, book.Title)
			return nil
		},
	}
	bookFlags(cmd.Flags(), &in)
	cmd = screen(cmd, library.ScreenBooks)
	return affordance(cmd, library.AffordanceAddBook)
}

func newBooksUpdateCmd(a *App) *cobra.Command {
	var in library.BookInput
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a book, keeping fields that are not given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book id")
			if err != nil {
				return err
			}

			books, err := a.Client.Cache.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			current, ok := findBook(books, id)
			if !ok {
				return fmt.Errorf("book %d not found", id)
			}

			merged := library.BookInput{
				Title:           pick(cmd, "title", in.Title, current.Title),
				Author:          pick(cmd, "author", in.Author, current.Author),
				ISBN:            pick(cmd, "isbn", in.ISBN, current.ISBN),
				Category:        pick(cmd, "category", in.Category, current.Category),
				PublicationYear: pick(cmd, "year", in.PublicationYear, current.PublicationYear),
				StockCount:      pick(cmd, "stock", in.StockCount, current.StockCount),
			}

			book, err := a.Client.Cache.UpdateBook(cmd.Context(), id, merged)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated book %d: %s\n", book.ID, book.Title)
			return nil
		},
	}
	bookFlags(cmd.Flags(), &in)
	cmd = screen(cmd, library.ScreenBooks)
	return affordance(cmd, library.AffordanceEditBook)
}

func newBooksDeleteCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "book id")
			if err != nil {
				return err
			}
			if err := a.Client.Cache.DeleteBook(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted book %d\n", id)
			return nil
		},
	}
	cmd = screen(cmd, library.ScreenBooks)
	return affordance(cmd, library.AffordanceDeleteBook)
}

func findBook(books []library.Book, id int64) (library.Book, bool) {
	for _, b := range books {
		if b.ID == id {
			return b, true
		}
	}
	return library.Book{}, false
}

// pick returns given when the flag was set on the command line
func pick[T any](cmd *cobra.Command, flag string, given, current T) T {
	if cmd.Flags().Changed(flag) {
		return given
	}
	return current
}
