package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wardenhq/warden/internal/auth"
	"github.com/wardenhq/warden/internal/model"
	"github.com/wardenhq/warden/internal/store"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create, list, and deactivate the admin accounts that can sign in to the dashboard.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminDeactivateCmd())

	return cmd
}

// openStore opens the configured store for a one-shot CLI operation.
func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Database.DataDir = dataDir
	}
	if cfg.Database.Driver == store.DriverSQLite && cfg.Database.DSN == "" && cfg.Database.DataDir == "" {
		home, _ := os.UserHomeDir()
		cfg.Database.DataDir = home + "/.warden"
	}
	return store.Open(cfg.Database.Driver, cfg.Database.DSN, cfg.Database.DataDir)
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		username  string
		email     string
		password  string
		accessKey string
		base      bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  warden admin create --username alice --email alice@example.com --password secret
  warden admin create --username alice --email alice@example.com  # prompts for password
  warden admin create --username root --email root@example.com --base`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(username, email, password, accessKey, base)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Login username (required)")
	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.Flags().StringVar(&accessKey, "access-key", "", "Second-factor access key (optional)")
	cmd.Flags().BoolVar(&base, "base", false, "Mark as base admin (bypasses the access-key check)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminCreate(username, email, password, accessKey string, base bool) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}

	// Prompt for password if not provided
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	if _, err := st.GetAdminByUsername(ctx, username); err == nil {
		return fmt.Errorf("admin %q already exists", username)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	admin := &model.Admin{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsBaseAdmin:  base,
	}
	if accessKey != "" {
		admin.AccessKey = &accessKey
	}

	if err := st.CreateAdmin(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	fmt.Printf("Created admin %q (id %d)\n", username, admin.ID)
	if base {
		fmt.Println("  base admin: access-key check bypassed at login")
	}
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(jsonOutput bool) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	admins, err := st.ListAdmins(context.Background())
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	if jsonOutput {
		out := make([]model.PublicAdmin, 0, len(admins))
		for _, a := range admins {
			out = append(out, a.Public())
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(admins) == 0 {
		fmt.Println("No admin accounts configured. Use 'warden admin create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-20s %-30s %-8s %-6s\n", "ID", "USERNAME", "EMAIL", "ACTIVE", "BASE")
	fmt.Printf("%-6s %-20s %-30s %-8s %-6s\n", "--", "--------", "-----", "------", "----")
	for _, a := range admins {
		active := "yes"
		if !a.IsActive {
			active = "no"
		}
		base := ""
		if a.IsBaseAdmin {
			base = "yes"
		}
		fmt.Printf("%-6d %-20s %-30s %-8s %-6s\n", a.ID, a.Username, a.Email, active, base)
	}

	return nil
}

// ---------- admin deactivate ----------

func newAdminDeactivateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deactivate <username>",
		Short: "Deactivate an admin account",
		Long:  "Deactivate an admin account. Existing sessions stop resolving immediately.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminDeactivate(args[0])
		},
	}
	return cmd
}

func runAdminDeactivate(username string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	admin, err := st.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("admin %q not found", username)
		}
		return err
	}
	if admin.IsBaseAdmin {
		return fmt.Errorf("refusing to deactivate the base admin %q", username)
	}

	if err := st.SetAdminActive(ctx, admin.ID, false); err != nil {
		return fmt.Errorf("deactivate admin: %w", err)
	}

	fmt.Printf("Deactivated admin %q\n", username)
	return nil
}
