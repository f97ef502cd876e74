// Command seed creates a user account or tops up its credit balance.
// Intended for local stacks and operational fixes, not end users.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	dbpkg "github.com/yourorg/bulk-verify/internal/db"
)

func main() {
	email := flag.String("email", "", "user email (required)")
	amount := flag.Int("credits", 0, "credits to grant")
	flag.Parse()
	if *email == "" {
		log.Fatal("usage: seed -email user@example.com -credits 1000")
	}

	ctx := context.Background()
	pool, err := dbpkg.Connect(ctx, dbpkg.FromEnv())
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	users := dbpkg.NewUserRepo(pool)
	u, err := users.Create(ctx, *email, *amount)
	if err != nil {
		if !errors.Is(err, dbpkg.ErrConflict) {
			log.Fatalf("create user: %v", err)
		}
		balance, err := users.AddCredits(ctx, *email, *amount)
		if err != nil {
			log.Fatalf("add credits: %v", err)
		}
		fmt.Printf("topped up %s: %d credits\n", *email, balance)
		return
	}
	fmt.Printf("created %s: %d credits\n", u.Email, u.Credits)
}
