package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hexfoundry/herald/internal/account"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management commands",
	}

	cmd.AddCommand(newAccountCreateCmd())
	cmd.AddCommand(newAccountPendingCmd())
	cmd.AddCommand(newAccountPromoteCmd())
	cmd.AddCommand(newAccountDemoteCmd())
	cmd.AddCommand(newAccountDeleteCmd())
	return cmd
}

func newAccountCreateCmd() *cobra.Command {
	var (
		configPath string
		lastName   string
		isAdmin    bool
	)

	cmd := &cobra.Command{
		Use:   "create <phone> <first-name>",
		Short: "Create a pending account and print its passcode",
		Long: `Creates an inactive account bound to a phone number and prints the
one-time passcode. Hand the code to the user out of band; the account
activates when they send it to the bot.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountCreate(cmd, configPath, args[0], args[1], lastName, isAdmin)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant admin rights on activation")
	return cmd
}

func runAccountCreate(cmd *cobra.Command, configPath, phone, firstName, lastName string, isAdmin bool) error {
	out := cmd.OutOrStdout()

	_, gdb, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	acct, code, err := account.CreatePending(gdb, account.CreatePendingOpts{
		FirstName: firstName,
		LastName:  lastName,
		Phone:     phone,
		IsAdmin:   isAdmin,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Created pending account #%d for %s (%s)\n", acct.ID, acct.DisplayName(), acct.PhoneNumber())
	fmt.Fprintf(out, "Passcode: %s\n", code)
	fmt.Fprintln(out, "The code works exactly once.")
	return nil
}

func newAccountPendingCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List accounts waiting for passcode redemption",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccountPending(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	return cmd
}

func runAccountPending(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	_, gdb, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	accts, err := account.ListPending(gdb)
	if err != nil {
		return err
	}
	if len(accts) == 0 {
		fmt.Fprintln(out, "No pending accounts.")
		return nil
	}
	for _, a := range accts {
		fmt.Fprintf(out, "#%d\t%s\t%s\tcreated %s\n",
			a.ID, a.DisplayName(), a.PhoneNumber(), a.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func newAccountPromoteCmd() *cobra.Command {
	return newSetAdminCmd(true)
}

func newAccountDemoteCmd() *cobra.Command {
	return newSetAdminCmd(false)
}

func newSetAdminCmd(isAdmin bool) *cobra.Command {
	var configPath string

	use, short := "promote <chat-id>", "Grant admin rights to an account"
	if !isAdmin {
		use, short = "demote <chat-id>", "Revoke admin rights from an account"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			if isAdmin {
				err = account.Promote(gdb, args[0])
			} else {
				err = account.Demote(gdb, args[0])
			}
			if err != nil {
				return err
			}
			verb := "promoted"
			if !isAdmin {
				verb = "demoted"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account bound to chat %s %s.\n", args[0], verb)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	return cmd
}

func newAccountDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pending account",
		Long:  "Deletes an account that has not redeemed its passcode yet. Active accounts cannot be deleted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("account id must be numeric, got %q", args[0])
			}
			_, gdb, err := openFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := account.DeletePending(gdb, uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted pending account #%d.\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to herald config file")
	return cmd
}
