// equi is the command-line interface for the EquiGive custody service.
//
// It lets platform operators onboard farms, record donations, trigger
// escrow releases, burn redeemed units, and inspect the audit chain.
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/equigive/equigive/internal/auth"
	"github.com/equigive/equigive/internal/ledger"
	"github.com/equigive/equigive/pkg/client"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serviceURL string
	cfgFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "equi",
	Short: "EquiGive custody CLI",
	Long: `equi is the command-line interface for the EquiGive custody service.

It lets you onboard farm vaults, record donations, release escrowed funds,
burn redeemed units, and inspect the custody audit chain.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.equi")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("EQUI")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serviceURL == "" {
			serviceURL = viper.GetString("service_url")
		}
		if serviceURL == "" {
			serviceURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serviceURL, "service", "", "custody service base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.equi/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(donateCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(burnCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(supplyCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(tokenCmd)

	vaultCmd.AddCommand(vaultCreateCmd)
	vaultCmd.AddCommand(vaultShowCmd)
	auditCmd.AddCommand(auditTailCmd)

	donateCmd.Flags().String("ref", "", "donor reference recorded in the audit log")
	burnCmd.Flags().String("ref", "", "redemption reference recorded in the audit log")
	auditTailCmd.Flags().Int("after", -1, "return events with seq greater than this")
	auditTailCmd.Flags().Int("limit", 20, "maximum number of events")
	tokenCmd.Flags().String("actor", "", "human-readable actor label")
	tokenCmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	tokenCmd.Flags().String("out", "", "write the token to a file instead of stdout")
}

// newClient builds an SDK client carrying the configured service token.
func newClient() (*client.Client, error) {
	return client.New(serviceURL, client.WithToken(viper.GetString("token")))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the equi version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("equi", version)
	},
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage farm custody vaults",
}

var vaultCreateCmd = &cobra.Command{
	Use:   "create <farm-id> <recipient-address>",
	Short: "Onboard a farm (operator only); idempotent",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		v, err := c.CreateVault(context.Background(), args[0], args[1])
		if err != nil {
			fail(err)
		}
		if v.Created {
			fmt.Printf("vault created for farm %s\n", v.FarmID)
		} else {
			fmt.Printf("farm %s already onboarded — existing vault returned\n", v.FarmID)
		}
		printVault(v)
	},
}

var vaultShowCmd = &cobra.Command{
	Use:   "show <farm-id>",
	Short: "Show a farm's vault and escrow balance",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		v, err := c.Vault(context.Background(), args[0])
		if err != nil {
			fail(err)
		}
		printVault(v)
	},
}

func printVault(v *client.VaultInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "farm\t%s\n", v.FarmID)
	fmt.Fprintf(w, "account\t%s\n", v.Account)
	fmt.Fprintf(w, "recipient\t%s\n", v.Recipient)
	if v.Balance != "" {
		fmt.Fprintf(w, "balance\t%s\n", v.Balance)
	}
	w.Flush() //nolint:errcheck
}

var donateCmd = &cobra.Command{
	Use:   "donate <farm-id> <amount>",
	Short: "Record a donation: mint units into the farm's vault (minter only)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		ref, _ := cmd.Flags().GetString("ref")
		res, err := c.Donate(context.Background(), args[0], args[1], ref)
		if err != nil {
			fail(err)
		}
		fmt.Printf("minted %s into vault of farm %s (escrow balance now %s)\n",
			res.Minted, res.FarmID, res.Balance)
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <farm-id> <amount>",
	Short: "Release escrowed units to the farm's recipient (recipient only)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		res, err := c.Release(context.Background(), args[0], args[1])
		if err != nil {
			fail(err)
		}
		fmt.Printf("released %s to %s (escrow balance now %s)\n",
			res.Released, res.Recipient, res.Balance)
	},
}

var burnCmd = &cobra.Command{
	Use:   "burn <account> <amount>",
	Short: "Burn redeemed units from an account (burner only)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		ref, _ := cmd.Flags().GetString("ref")
		res, err := c.Redeem(context.Background(), args[0], args[1], ref)
		if err != nil {
			fail(err)
		}
		fmt.Printf("burned %s from %s (balance now %s)\n", res.Burned, res.Account, res.Balance)
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <account>",
	Short: "Show an account's balance",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		bal, err := c.Balance(context.Background(), args[0])
		if err != nil {
			fail(err)
		}
		fmt.Println(bal)
	},
}

var supplyCmd = &cobra.Command{
	Use:   "supply",
	Short: "Show the total units in existence",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		supply, err := c.Supply(context.Background())
		if err != nil {
			fail(err)
		}
		fmt.Println(supply)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the custody audit chain",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		ctx := context.Background()
		ov, err := c.LedgerOverview(ctx)
		if err != nil {
			fail(err)
		}
		valid, detail, err := c.VerifyLedger(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Printf("events: %d\nroot:   %s\n", ov.Events, ov.Root)
		if valid {
			fmt.Println("chain:  intact")
		} else {
			fmt.Printf("chain:  BROKEN — %s\n", detail)
		}
	},
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "List recent audit events",
	Run: func(cmd *cobra.Command, args []string) {
		c, err := newClient()
		if err != nil {
			fail(err)
		}
		after, _ := cmd.Flags().GetInt("after")
		limit, _ := cmd.Flags().GetInt("limit")
		events, err := c.Events(context.Background(), after, limit)
		if err != nil {
			fail(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tKIND\tFROM\tTO\tAMOUNT\tREF")
		for _, e := range events {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				e.Seq, e.Kind, e.From, e.To, string(e.Amount), e.Ref)
		}
		w.Flush() //nolint:errcheck
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <address>",
	Short: "Issue a service token for a ledger address (requires the shared secret)",
	Long: `Issues an HMAC service token binding the bearer to a ledger address.
Requires "auth_secret" and optionally "issuer_url" in the equi config; the
secret must match the one custodyd runs with.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		secret := viper.GetString("auth_secret")
		if secret == "" {
			fail(fmt.Errorf("auth_secret not configured"))
		}
		issuerURL := viper.GetString("issuer_url")
		if issuerURL == "" {
			issuerURL = serviceURL
		}
		actor, _ := cmd.Flags().GetString("actor")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		issuer := auth.NewIssuer([]byte(secret), issuerURL, ttl)
		tok, err := issuer.Issue(ledger.Address(args[0]), actor)
		if err != nil {
			fail(err)
		}

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			if err := os.WriteFile(out, []byte(tok+"\n"), 0o600); err != nil {
				fail(err)
			}
			return
		}
		fmt.Println(tok)
	},
}
