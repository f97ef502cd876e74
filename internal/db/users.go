package db

import (
	"context"
)

// User represents an account row owning a credit balance.
type User struct {
	ID      int64
	Email   string
	Credits int
}

// UserRepository reads and seeds user rows. The credit debit itself is
// not here: it belongs to the settlement transaction (see credits.Ledger)
// so it can be atomic with the job-status write.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (User, error)
	// Create inserts a user with an initial credit balance.
	Create(ctx context.Context, email string, credits int) (User, error)
	// AddCredits tops up a balance and returns the new value.
	AddCredits(ctx context.Context, email string, amount int) (int, error)
}

// NewUserRepo returns a repository bound to the pool.
func NewUserRepo(p *Pool) UserRepository { return &userRepo{p: p} }

type userRepo struct{ p *Pool }

func (r *userRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const q = `select id, email, credits from users where email=$1`
	var u User
	err := r.p.QueryRow(ctx, q, email).Scan(&u.ID, &u.Email, &u.Credits)
	if err != nil {
		return User{}, mapRowErr(err)
	}
	return u, nil
}

func (r *userRepo) Create(ctx context.Context, email string, credits int) (User, error) {
	const q = `insert into users (email, credits) values ($1, $2) returning id, email, credits`
	var u User
	err := r.p.QueryRow(ctx, q, email, credits).Scan(&u.ID, &u.Email, &u.Credits)
	if err != nil {
		return User{}, mapPgErr(err)
	}
	return u, nil
}

func (r *userRepo) AddCredits(ctx context.Context, email string, amount int) (int, error) {
	const q = `update users set credits = credits + $1 where email=$2 returning credits`
	var credits int
	if err := r.p.QueryRow(ctx, q, amount, email).Scan(&credits); err != nil {
		return 0, mapRowErr(err)
	}
	return credits, nil
}
