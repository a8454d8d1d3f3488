package cmd

import (
	"github.com/spf13/cobra"

	"github.com/OtmaneTouhami/budget-wise/internal/modules/auth"
)

func newProfileCmd(a *app) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile of the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fetch := a.auth.Profile
			if cached {
				fetch = a.auth.EnsureProfile
			}
			profile, err := fetch(cmd.Context())
			if err != nil {
				return err
			}
			writeProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "print the stored profile when there is one")

	cmd.AddCommand(newProfileUpdateCmd(a), newChangePasswordCmd(a))
	return cmd
}

func newProfileUpdateCmd(a *app) *cobra.Command {
	var req auth.UpdateProfileRequest

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; omitted flags are left as they are",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := a.auth.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Profile updated.\n")
			writeProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.StringVar(&req.Email, "email", "", "email address")
	f.StringVar(&req.PhoneNumber, "phone", "", "phone number")
	f.StringVar(&req.DateFormat, "date-format", "", "DD/MM/YYYY, MM/DD/YYYY or YYYY-MM-DD")
	return cmd
}

func newChangePasswordCmd(a *app) *cobra.Command {
	var req auth.ChangePasswordRequest

	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the password; every session of the account ends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.ConfirmationPassword == "" {
				req.ConfirmationPassword = req.NewPassword
			}
			if err := a.auth.ChangePassword(cmd.Context(), req); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "Password changed. Log in again with the new password.\n")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.CurrentPassword, "current", "", "current password")
	f.StringVar(&req.NewPassword, "new", "", "new password (at least 8 characters)")
	f.StringVar(&req.ConfirmationPassword, "confirm", "", "new password again (default: --new)")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}
