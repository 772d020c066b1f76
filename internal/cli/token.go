package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goliatone/go-profilesync/identity"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command used for local development.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		secret   string
		issuer   string
		audience string
		user     string
		key      string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the server secret",
		Long: `Mint an HMAC signed bearer token for development setups that share the
server signing key. A random user id is generated when --user is empty.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := uuid.New()
			if user != "" {
				parsed, err := uuid.Parse(user)
				if err != nil {
					return fmt.Errorf("invalid user id %q: %w", user, err)
				}
				userID = parsed
			}
			iss, err := identity.NewIssuer(identity.Config{
				Secret:   []byte(secret),
				Issuer:   issuer,
				Audience: audience,
			})
			if err != nil {
				return err
			}
			token, err := iss.Issue(userID, key, ttl)
			if err != nil {
				return err
			}
			result := map[string]string{"token": token, "userId": userID.String()}
			return formatterFor(cmd, rootOpts).Emit(result, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_SIGNING_KEY"), "signing key")
	cmd.Flags().StringVar(&issuer, "issuer", "go-profilesync", "token issuer")
	cmd.Flags().StringVar(&audience, "audience", "", "token audience")
	cmd.Flags().StringVar(&user, "user", "", "user id")
	cmd.Flags().StringVar(&key, "key", "", "profile key, usually the user's email")
	cmd.Flags().DurationVar(&ttl, "ttl", identity.DefaultTTL, "token lifetime")
	return cmd
}
