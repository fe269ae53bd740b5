package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/warp/gym-credit/gym"
)

func init() {
	rootCmd.AddCommand(seedAdminCmd)
	rootCmd.AddCommand(expireCmd)

	seedAdminCmd.Flags().String("username", "", "Admin username (overrides ADMIN_USERNAME)")
	expireCmd.Flags().String("user", "", "User ID to sweep")
}

// ─── seed-admin ─────────────────────────────────────────────────────────────

var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create the admin user if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		username := a.cfg.Admin.Username
		if flag, _ := cmd.Flags().GetString("username"); flag != "" {
			username = flag
		}

		user, created, err := a.service.EnsureAdmin(cmd.Context(), username)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %q (%s)\n", user.Username, user.ID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q already exists (%s)\n", user.Username, user.ID)
		}
		return nil
	},
}

// ─── expire ─────────────────────────────────────────────────────────────────

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Run the credit expiry sweep for one user",
	Long: `Expire every purchase lot of the user whose end date has passed.
Balance reads already run this sweep; the command exists for operators who
want the ledger brought up to date without a read.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			return errors.New("--user is required")
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		expired, err := a.service.ExpireLots(cmd.Context(), gym.UserID(userID))
		if err != nil {
			return err
		}
		for _, lot := range expired {
			fmt.Fprintf(cmd.OutOrStdout(), "expired lot %s (ended %s, %d credits)\n",
				lot.Entry.ID, lot.Entry.EndDate, lot.Remaining)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d lot(s) expired\n", len(expired))
		return nil
	},
}
