package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/bluemods/xmppconn/connection"
	"github.com/bluemods/xmppconn/sasl"
	"github.com/bluemods/xmppconn/settings"
	"github.com/bluemods/xmppconn/trust"
	"github.com/bluemods/xmppconn/utils"
	"github.com/spf13/cobra"
)

var (
	configPath         string
	accountPath        string
	trustStorePath     string
	trustStorePass     string
	strictTrust        bool
	debug              bool
	forcePlainText     bool
	noCheckCertificate bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "xmppconn",
		Short:        "xmppconn derives XMPP connection parameters from stored account settings",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to settings file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account", "a", "", "Path to an XML account export, overrides the account section of --config")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log at debug level")
	rootCmd.PersistentFlags().BoolVar(&forcePlainText, "plain", false, "Only offer PLAIN authentication")

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the connection descriptor for the configured account",
		RunE:  runDescribe,
	}
	describeCmd.Flags().StringVar(&trustStorePath, "truststore", "", "Path to a .p12 or PEM file with certificates to trust")
	describeCmd.Flags().StringVar(&trustStorePass, "truststore-pass-file", "", "Path to a file containing the .p12 password")
	describeCmd.Flags().BoolVar(&strictTrust, "strict", false, "Fail when certificate trust cannot be fully applied")
	describeCmd.Flags().BoolVar(&noCheckCertificate, "no-check-certificate", false, "Accept any server certificate")

	mechanismsCmd := &cobra.Command{
		Use:   "mechanisms",
		Short: "List SASL mechanisms and whether they would be offered",
		RunE:  runMechanisms,
	}

	rootCmd.AddCommand(describeCmd, mechanismsCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDescribe(cmd *cobra.Command, args []string) error {
	logger := utils.NewLogger(os.Stderr, debug)
	file, global, err := loadSettings()
	if err != nil {
		return err
	}
	if file.Account.ServerName == "" {
		return fmt.Errorf("no account configured, pass --config or --account")
	}

	store := trust.NewMemoryStore(nil, logger)
	if trustStorePath != "" {
		n, err := loadTrustStore(store)
		if err != nil {
			return err
		}
		logger.Info("Loaded trusted certificates", "count", n, "path", trustStorePath)
	}

	n := connection.New().
		WithLogger(logger).
		WithGlobalSettings(global).
		WithTrustStore(store)
	if strictTrust {
		n.WithStrictTrust()
	}

	d, err := n.Build(file.Account)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), d.XML())
	return nil
}

func runMechanisms(cmd *cobra.Command, args []string) error {
	_, global, err := loadSettings()
	if err != nil {
		return err
	}
	reg := sasl.NewDefaultRegistry()
	policy := sasl.SetUp(reg, global.ConnectionUsePlainTextAuth())

	out := cmd.OutOrStdout()
	for _, name := range reg.Registered() {
		state := "blacklisted"
		if policy.Permits(name) {
			state = "permitted"
		}
		fmt.Fprintf(out, "%-16s %s\n", name, state)
	}
	return nil
}

// Reads the settings file and account export. Command line switches
// win over both the file and the environment.
func loadSettings() (*settings.File, settings.GlobalSettings, error) {
	file, v, err := settings.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if accountPath != "" {
		f, err := os.Open(accountPath)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		account, err := settings.DecodeAccount(f)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read account %s: %w", accountPath, err)
		}
		file.Account = *account
	}
	if forcePlainText {
		v.Set(settings.KEY_PLAIN_TEXT_AUTH, true)
	}
	if noCheckCertificate {
		v.Set(settings.KEY_CHECK_CERTIFICATE, false)
	}
	return file, settings.Live{V: v}, nil
}

func loadTrustStore(store *trust.MemoryStore) (int, error) {
	data, err := os.ReadFile(trustStorePath)
	if err != nil {
		return 0, err
	}
	if !strings.HasSuffix(strings.ToLower(trustStorePath), ".p12") {
		return store.LoadPEM(data)
	}
	password := ""
	if trustStorePass != "" {
		b, err := os.ReadFile(trustStorePass)
		if err != nil {
			return 0, err
		}
		password = strings.TrimSpace(string(b))
	}
	return store.LoadPKCS12(data, password)
}
