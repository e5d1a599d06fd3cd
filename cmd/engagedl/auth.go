package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"engagedl/pkg/auth"
	"engagedl/pkg/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage API credentials",
	Long: `Manage stored API consumer keys and secrets.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (ENGAGEDL_CONSUMER_KEY, ENGAGEDL_CONSUMER_SECRET)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [account]",
	Short: "Store API credentials securely",
	Long: `Store an API consumer key and secret under an account name.

Without an account name the credentials are stored as 'default', which
download uses when --account is not given.`,
	Example: `  # Interactive login
  engagedl auth login

  # Store a second application under its own name
  engagedl auth login research`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [account]",
	Short: "Remove stored credentials",
	Long: `Remove stored credentials.

If no account is given, you will be shown a list of stored accounts to
choose from.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with masked credentials.`,
	Run:   runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	name := auth.DefaultAccount
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	auth.ShowCredentialGuide()

	if _, err := manager.Retrieve(name); err == nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("Enter your application credentials (input is hidden):")
	fmt.Println()

	key, err := readSecret(reader, "API key: ")
	if err != nil {
		ui.PrintError("Failed to read API key", err.Error())
		os.Exit(1)
	}
	secret, err := readSecret(reader, "API key secret: ")
	if err != nil {
		ui.PrintError("Failed to read API key secret", err.Error())
		os.Exit(1)
	}

	account := &auth.Account{Name: name, ConsumerKey: key, ConsumerSecret: secret}
	masked := auth.SanitizeAccount(account)
	fmt.Println("\nSummary:")
	fmt.Printf("   Account: %s\n", name)
	fmt.Printf("   API key: %s\n", masked.ConsumerKey)
	fmt.Printf("   Secret:  %s\n", masked.ConsumerSecret)

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Credentials stored for account " + name)
	fmt.Println("\nStart a download with:")
	if name == auth.DefaultAccount {
		fmt.Println("   $ engagedl download ids.txt --output totals.csv")
	} else {
		fmt.Printf("   $ engagedl download ids.txt --output totals.csv --account %s\n", name)
	}
	fmt.Println("\nNever share your credentials or config files!")
}

// readSecret reads without echo from a terminal and falls back to a plain
// line when stdin is piped.
func readSecret(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	if len(args) > 0 {
		removeAccount(manager, args[0])
		return
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintError("No stored accounts found", "")
		return
	}

	reader := bufio.NewReader(os.Stdin)
	if len(accounts) == 1 {
		fmt.Printf("Remove account '%s'? (y/N): ", accounts[0].Name)
		input, _ := reader.ReadString('\n')
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			removeAccount(manager, accounts[0].Name)
		}
		return
	}

	fmt.Println("Select account to remove:")
	for i, account := range accounts {
		fmt.Printf("  %d. %s\n", i+1, account.Name)
	}
	fmt.Printf("  0. Cancel\n\n")

	fmt.Print("Choice: ")
	input, _ := reader.ReadString('\n')

	var choice int
	fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)

	switch {
	case choice == 0:
		return
	case choice > 0 && choice <= len(accounts):
		removeAccount(manager, accounts[choice-1].Name)
	default:
		ui.PrintError("Invalid choice", "")
		os.Exit(1)
	}
}

func removeAccount(manager *auth.Manager, name string) {
	if err := manager.Delete(name); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + name)
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'engagedl auth login' to add an account")
		return
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Account: %s\n", i+1, sanitized.Name)
		fmt.Printf("   API key: %s\n", sanitized.ConsumerKey)
		fmt.Printf("   Secret:  %s\n", sanitized.ConsumerSecret)
		if !sanitized.LastModified.IsZero() {
			fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}
