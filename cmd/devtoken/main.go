package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgo/bastion/pkg/jwt"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "devtoken",
		Short:        "Mint and inspect development access tokens",
		SilenceUsage: true,
	}
	root.AddCommand(newSignCmd(), newVerifyCmd(), newKeysCmd())
	return root
}

type signOptions struct {
	keyPath    string
	issuer     string
	userID     string
	email      string
	role       string
	expMins    int
	outputJSON bool
}

func newSignCmd() *cobra.Command {
	opts := signOptions{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an RS256 access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.keyPath, "key", "./keys/private.pem", "Path to JWT private key")
	f.StringVar(&opts.issuer, "issuer", "bastion.forgo.software", "JWT issuer")
	f.StringVar(&opts.userID, "user", "dev-user", "User ID for the token")
	f.StringVar(&opts.email, "email", "dev@bastion.local", "Email for the token")
	f.StringVar(&opts.role, "role", "user", "Role: user, moderator or admin")
	f.IntVar(&opts.expMins, "exp", 60*24, "Token expiration in minutes")
	f.BoolVar(&opts.outputJSON, "json", false, "Output as JSON")
	return cmd
}

func runSign(out io.Writer, opts signOptions) error {
	switch opts.role {
	case "user", "moderator", "admin":
	default:
		return fmt.Errorf("unknown role %q", opts.role)
	}

	service, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: opts.keyPath,
		Issuer:         opts.issuer,
		ExpirationMins: opts.expMins,
	})
	if err != nil {
		return fmt.Errorf("create JWT service (generate keys with `devtoken keys`): %w", err)
	}

	token, err := service.Sign(jwt.Claims{
		UserID: opts.userID,
		Email:  opts.email,
		Role:   opts.role,
	})
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	if opts.outputJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   opts.expMins * 60,
			"user_id":      opts.userID,
			"email":        opts.email,
			"role":         opts.role,
		})
	}

	expTime := time.Now().Add(time.Duration(opts.expMins) * time.Minute)
	fmt.Fprintln(out, "Token Generated")
	fmt.Fprintln(out, "===============")
	fmt.Fprintf(out, "User ID:  %s\n", opts.userID)
	fmt.Fprintf(out, "Email:    %s\n", opts.email)
	fmt.Fprintf(out, "Role:     %s\n", opts.role)
	fmt.Fprintf(out, "Expires:  %s\n", expTime.Format(time.RFC3339))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Token:")
	fmt.Fprintln(out, token)
	return nil
}

func newVerifyCmd() *cobra.Command {
	var keyPath, issuer string

	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Validate a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := jwt.NewService(jwt.Config{PublicKeyPath: keyPath, Issuer: issuer})
			if err != nil {
				return fmt.Errorf("create JWT service: %w", err)
			}
			claims, err := service.Validate(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(claims)
		},
	}

	cmd.Flags().StringVar(&keyPath, "key", "./keys/public.pem", "Path to JWT public key")
	cmd.Flags().StringVar(&issuer, "issuer", "bastion.forgo.software", "Expected JWT issuer")
	return cmd
}

func newKeysCmd() *cobra.Command {
	var privatePath, publicPath string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Generate an RSA key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := jwt.GenerateKeyPair(privatePath, publicPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", privatePath, publicPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&privatePath, "private", "./keys/private.pem", "Private key output path")
	cmd.Flags().StringVar(&publicPath, "public", "./keys/public.pem", "Public key output path")
	return cmd
}
