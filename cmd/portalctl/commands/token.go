package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"adminportal/requests/internal/auth"
	"adminportal/requests/internal/db"
	"adminportal/requests/internal/model"
)

var (
	tokenUserID int64
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for an existing user",
	Long: `Mint an access token signed with JWT_SECRET for an active user.

Examples:
  portalctl token --user 2
  portalctl token --user 3 --ttl 30m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openPool(cmd.Context())
		if err != nil {
			return err
		}
		defer pool.Close()

		token, err := mintToken(cmd.Context(), db.New(pool), tokenUserID, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user", 0, "User id the token is issued for")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to ACCESS_TOKEN_TTL)")
	_ = tokenCmd.MarkFlagRequired("user")
}

type userLookup interface {
	GetUser(ctx context.Context, id int64) (model.User, error)
}

func mintToken(ctx context.Context, users userLookup, userID int64, ttl time.Duration) (string, error) {
	user, err := users.GetUser(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("user %d does not exist", userID)
	}
	if err != nil {
		return "", err
	}
	if !user.Active {
		return "", fmt.Errorf("user %d is inactive", userID)
	}
	if ttl <= 0 {
		ttl = cfg.AccessTokenTTL
	}
	token, _, err := auth.NewAccessToken(cfg.JWTSecret, cfg.JWTIssuer, ttl, user.ID)
	return token, err
}
