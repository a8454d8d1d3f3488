package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/auth"
	"github.com/OtmaneTouhami/budget-wise/internal/modules/session"
)

func newRegisterCmd(a *app) *cobra.Command {
	var req auth.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account. The account stays inactive until it is verified
with the code the server sends:

  budgetwise register --username jdoe --email jdoe@example.com \
    --first-name John --last-name Doe --country 2
  budgetwise verify jdoe 123456`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Password == "" {
				pw, err := readSecret(cmd, "Password: ")
				if err != nil {
					return err
				}
				req.Password = pw
			}
			if err := a.auth.Register(cmd.Context(), req); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Account %s created. Check %s for the verification code.\n", req.Username, req.Email)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.Username, "username", "", "username (3 to 50 characters)")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.Password, "password", "", "password, read from stdin when empty")
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.StringVar(&req.PhoneNumber, "phone", "", "phone number")
	f.Int64Var(&req.CountryID, "country", 0, "country id")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <username|email> <code>",
		Short: "Activate an account and log in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.auth.Verify(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Account verified. Logged in as %s.\n", profile.DisplayName())
			return nil
		},
	}
}

func newResendVerificationCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resend-verification <username|email>",
		Short: "Send a new verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.ResendVerification(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "A new verification code was sent.\n")
			return nil
		},
	}
}

func newLoginCmd(a *app) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username|email>",
		Short: "Log in and store the session",
		Long: `Log in and store the session in the configured backend.

The password is read from stdin when --password is not given, so it can
be piped without reaching the shell history:

  pass show budgetwise | budgetwise login jdoe`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				pw, err := readSecret(cmd, "Password: ")
				if err != nil {
					return err
				}
				password = pw
			}
			profile, err := a.auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Logged in as %s.\n", profile.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password, read from stdin when empty")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and clear the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Logged out.\n")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session without calling the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writeStatus(cmd.OutOrStdout(), a.auth.Status(), a.cfg.Session.Backend)
			return nil
		},
	}
}

func writeStatus(w io.Writer, st auth.Status, backend string) {
	if !st.Authenticated {
		printf(w, "Not logged in (session backend: %s).\n", backend)
		return
	}

	name := "unknown user"
	if st.Profile != nil {
		name = st.Profile.DisplayName()
	}
	printf(w, "Logged in as %s (session backend: %s).\n", name, backend)

	switch {
	case st.AccessTokenExpiry.IsZero():
		printf(w, "Access token expiry: unknown\n")
	case st.Expired:
		printf(w, "Access token expired at %s; the next request refreshes it.\n", st.AccessTokenExpiry.Format(time.RFC3339))
	default:
		printf(w, "Access token valid until %s\n", st.AccessTokenExpiry.Format(time.RFC3339))
	}
}

func writeProfile(w io.Writer, p *session.Profile) {
	printf(w, "ID:          %s\n", p.ID)
	printf(w, "Username:    %s\n", p.Username)
	printf(w, "Name:        %s\n", p.DisplayName())
	printf(w, "Email:       %s\n", p.Email)
	if p.PhoneNumber != "" {
		printf(w, "Phone:       %s\n", p.PhoneNumber)
	}
	if p.Country != "" {
		printf(w, "Country:     %s\n", p.Country)
	}
	if p.DateFormat != "" {
		printf(w, "Date format: %s\n", p.DateFormat)
	}
}

// readSecret reads one line from the command's stdin
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return "", fmt.Errorf("%w: password", errMissingArgument)
	}
	return line, nil
}
