package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/mtzanidakis/parlm/internal/config"
	"github.com/mtzanidakis/parlm/internal/store"
	"github.com/mtzanidakis/parlm/internal/vault"
)

// resolveAPIKey prefers an explicitly configured key, falling back to a
// sealed credential for the provider when a vault passphrase is set.
func resolveAPIKey(cfg *config.Config, db *store.Store) (string, error) {
	if cfg.LLM.APIKey != "" {
		return cfg.LLM.APIKey, nil
	}
	if cfg.Vault.Passphrase == "" {
		return "", fmt.Errorf("no API key configured: set PARLM_API_KEY or store a sealed credential")
	}

	cred, err := db.GetCredential("openai")
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		return "", fmt.Errorf("no API key configured and no sealed credential for openai")
	}

	key, err := vault.New(cfg.Vault.Passphrase).Open(cred.Value)
	if err != nil {
		return "", fmt.Errorf("open sealed credential: %w", err)
	}
	return string(key), nil
}

func runCredential(args []string) error {
	if len(args) == 0 {
		printCredentialUsage()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	switch args[0] {
	case "list":
		return credentialList(db)
	case "set":
		return credentialSet(db, cfg, args[1:])
	case "get":
		return credentialGet(db, cfg, args[1:])
	case "delete":
		return credentialDelete(db, args[1:])
	default:
		printCredentialUsage()
		return fmt.Errorf("unknown credential command: %s", args[0])
	}
}

func printCredentialUsage() {
	fmt.Fprintf(os.Stderr, `Usage: parlm credential <command>

Commands:
  list                                  List stored credentials (metadata only)
  set <provider> --value <key> [--name <label>]   Seal and store a credential
  get <provider>                        Unseal and print a credential
  delete <provider>                     Delete a credential

Environment:
  PARLM_VAULT_PASSPHRASE                Required for set and get.
`)
}

func openVault(cfg *config.Config) (*vault.Vault, error) {
	if cfg.Vault.Passphrase == "" {
		return nil, fmt.Errorf("PARLM_VAULT_PASSPHRASE environment variable is required")
	}
	return vault.New(cfg.Vault.Passphrase), nil
}

func credentialList(db *store.Store) error {
	creds, err := db.ListCredentials()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Println("No credentials stored.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tNAME\tUPDATED")
	for _, c := range creds {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Provider, c.Name, c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func credentialSet(db *store.Store, cfg *config.Config, args []string) error {
	if len(args) < 3 || args[1] != "--value" {
		return fmt.Errorf("usage: parlm credential set <provider> --value <key> [--name <label>]")
	}
	provider := args[0]
	value := args[2]

	name := provider
	for i := 3; i+1 < len(args); i++ {
		if args[i] == "--name" {
			name = args[i+1]
		}
	}

	v, err := openVault(cfg)
	if err != nil {
		return err
	}
	sealed, err := v.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}

	err = db.SaveCredential(&store.Credential{
		ID:       uuid.NewString(),
		Provider: provider,
		Name:     name,
		Value:    sealed,
	})
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}

	fmt.Printf("Credential for %s stored.\n", provider)
	return nil
}

func credentialGet(db *store.Store, cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parlm credential get <provider>")
	}

	v, err := openVault(cfg)
	if err != nil {
		return err
	}

	cred, err := db.GetCredential(args[0])
	if err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("no credential for provider: %s", args[0])
	}

	value, err := v.Open(cred.Value)
	if err != nil {
		return fmt.Errorf("open sealed credential: %w", err)
	}

	fmt.Println(string(value))
	return nil
}

func credentialDelete(db *store.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parlm credential delete <provider>")
	}
	if err := db.DeleteCredential(args[0]); err != nil {
		return err
	}
	fmt.Printf("Credential for %s deleted.\n", args[0])
	return nil
}
