package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"adminportal/requests/internal/crypto"
	"adminportal/requests/internal/db"
	"adminportal/requests/internal/model"
)

var seedPassword string

// seedAccounts are the accounts every deployment starts with. Their ids are
// fixed so other tooling can refer to them.
var seedAccounts = []db.UpsertUserParams{
	{ID: 1, Email: "admin@portal.local", FirstName: "Portal", LastName: "Admin", Role: model.RoleAdmin, Active: true},
	{ID: 2, Email: "secretary@portal.local", FirstName: "Portal", LastName: "Secretary", Role: model.RoleSecretary, Active: true},
	{ID: 3, Email: "teacher@portal.local", FirstName: "Portal", LastName: "Teacher", Role: model.RoleTeacher, Active: true},
	{ID: 4, Email: "staff@portal.local", FirstName: "Portal", LastName: "Staff", Role: model.RoleStaff, Active: true},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Provision the well-known accounts",
	Long: `Create or refresh the admin, secretary, teacher and staff accounts.

Examples:
  portalctl seed --password 'change-me'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		store := db.NewStore(pool)
		return store.WithTx(cmd.Context(), func(q db.Querier) error {
			users, err := seedUsers(cmd.Context(), q, seedPassword)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", u.ID, u.Role, u.Email)
			}
			return nil
		})
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "Password assigned to every seeded account")
	_ = seedCmd.MarkFlagRequired("password")
}

func seedUsers(ctx context.Context, q db.Querier, password string) ([]model.User, error) {
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	users := make([]model.User, 0, len(seedAccounts))
	for _, account := range seedAccounts {
		account.PasswordHash = hash
		user, err := q.UpsertUser(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("upsert %s: %w", account.Email, err)
		}
		users = append(users, user)
	}
	return users, nil
}
