package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/absmach/rotor/store"
)

// One-shot schema bootstrap. Running it against an existing store is
// harmless, the migrations are idempotent.
func main() {
	path := flag.String("path", "rotor.db", "Path to the coordination store database file")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	db, err := store.NewDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to open coordination store: %w", err)
	}
	defer db.Close()

	if err := store.NewService(db).Init(context.Background()); err != nil {
		return fmt.Errorf("failed to initialize coordination store: %w", err)
	}

	fmt.Printf("coordination store initialized at %s\n", path)

	return nil
}
