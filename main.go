package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evmsend/pkg/config"
	"evmsend/pkg/events"
	"evmsend/pkg/history"
	"evmsend/pkg/rpc"
	"evmsend/pkg/server"
	"evmsend/pkg/transfer"
	"evmsend/pkg/tui"
	"evmsend/pkg/wallet"

	"github.com/joho/godotenv"
)

// Version should be set during build
var Version = "dev"

const (
	envPrivateKey       = "EVMSEND_PRIVATE_KEY"
	envKeystorePassword = "EVMSEND_KEYSTORE_PASSWORD"
)

func main() {
	testFlag := flag.Bool("t", false, "Test configuration and exit")
	testLongFlag := flag.Bool("test", false, "Test configuration and exit")
	jsonFlag := flag.Bool("json", false, "Output test results as JSON")
	dryRunFlag := flag.Bool("dry-run", false, "Perform a trial run with no changes made")
	configFlag := flag.String("config", "", "Path to configuration file")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	serverFlag := flag.Bool("server", false, "Run in headless server mode")
	portFlag := flag.Int("port", 8080, "Port for API server")
	chainFlag := flag.String("chain", "", "Name of the chain to start on")
	restoreFlag := flag.Bool("restore", false, "Restore the most recent config backup and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("evmsend version %s\n", Version)
		os.Exit(0)
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfgInput := *configFlag
	if cfgInput == "" && len(flag.Args()) > 0 {
		cfgInput = flag.Args()[0]
	}
	path, err := config.GetConfigPath(cfgInput)
	if err != nil {
		fmt.Printf("Error determining config path: %v\n", err)
		os.Exit(1)
	}

	if *restoreFlag {
		if err := config.RestoreLastBackup(path); err != nil {
			fmt.Printf("Failed to restore backup: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Restored latest backup to %s\n", path)
		os.Exit(0)
	}

	walletCfg, chains, activeIdx, globalCfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		fmt.Printf("Error loading config from %s: %v\n", path, err)
		os.Exit(1)
	}

	if *testFlag || *testLongFlag {
		os.Exit(runConfigTest(os.Stdout, testInput{
			Path:   path,
			Wallet: walletCfg,
			Chains: chains,
			Active: activeIdx,
			Global: globalCfg,
			JSON:   *jsonFlag,
			DryRun: *dryRunFlag,
		}))
	}

	if len(chains) == 0 {
		fmt.Println("Error: No Chains found in configuration.")
		fmt.Printf("Please create a config file at %s with 'chains'.\n", path)
		os.Exit(1)
	}
	if *chainFlag != "" {
		activeIdx = config.SelectChain(chains, *chainFlag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()

	keystore, key, err := openWallet(walletCfg)
	if err != nil {
		fmt.Printf("Warning: %v\n", err)
	}

	session := wallet.NewSession()
	defer session.Disconnect()
	if key != nil {
		if err := connectSession(ctx, session, key, chains[activeIdx]); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
	}

	var store *history.Store
	if historyPath, err := config.HistoryPath(globalCfg); err != nil {
		fmt.Printf("Warning: transfer history disabled: %v\n", err)
	} else if store, err = history.Open(historyPath); err != nil {
		fmt.Printf("Warning: transfer history disabled: %v\n", err)
	}

	var journal <-chan struct{}
	if store != nil {
		var onErr func(error)
		if *serverFlag {
			onErr = func(err error) { fmt.Printf("Failed to record transfer: %v\n", err) }
		}
		journal = events.RecordTransfers(ctx, hub, store, onErr)
	}
	defer func() {
		stop()
		if journal != nil {
			<-journal
			_ = store.Close()
		}
	}()

	formOpts := transfer.Options{
		RequireConfirmation: globalCfg.ConfirmBeforeSend,
		WaitTimeout:         time.Duration(globalCfg.WaitTimeoutSeconds) * time.Second,
		Registry:            config.BuildRegistry(chains),
		OnChange:            hub.StateObserver(),
	}

	if *serverFlag {
		ui := server.NewInteractor(hub, globalCfg.APIAutoConfirm)
		form := transfer.NewForm(session, ui, formOpts)
		cfg := server.Config{Hub: hub, Form: form, Session: session.Info}
		if store != nil {
			cfg.History = store
		}
		fmt.Printf("Running in server mode on port %d...\n", *portFlag)
		if err := server.NewServer(cfg).Start(ctx, *portFlag); err != nil {
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ui := tui.NewInteractor(hub)
	opts := tui.Options{
		Form:       transfer.NewForm(session, ui, formOpts),
		Interactor: ui,
		Session:    session,
		Keystore:   keystore,
		Hub:        hub,
		Chains:     chains,
		ActiveIdx:  activeIdx,
		Wallet:     walletCfg,
		Global:     globalCfg,
		ConfigPath: path,
	}
	if store != nil {
		opts.History = store
	}
	tui.Start(opts, Version)
}

// openWallet opens the configured keystore and resolves the signing key from
// the environment. A raw private key wins over the keystore. Either result
// may be nil.
func openWallet(cfg config.WalletConfig) (*wallet.Keystore, wallet.KeySource, error) {
	var ks *wallet.Keystore
	if cfg.KeystoreDir != "" {
		k, err := wallet.OpenKeystore(cfg.KeystoreDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open keystore %s: %w", cfg.KeystoreDir, err)
		}
		ks = k
	}

	if hexKey := os.Getenv(envPrivateKey); hexKey != "" {
		key, err := wallet.ParsePrivateKey(hexKey)
		if err != nil {
			return ks, nil, fmt.Errorf("%s: %w", envPrivateKey, err)
		}
		return ks, key, nil
	}

	password, ok := os.LookupEnv(envKeystorePassword)
	if !ok || ks == nil {
		return ks, nil, nil
	}
	account, err := ks.Unlock(cfg.Address, password)
	if err != nil {
		return ks, nil, err
	}
	return ks, account, nil
}

func connectSession(ctx context.Context, session *wallet.Session, key wallet.KeySource, chain config.ChainConfig) error {
	dialCtx, cancel := context.WithTimeout(ctx, rpc.DialTimeout)
	defer cancel()
	client, err := wallet.Dial(dialCtx, chain)
	if err != nil {
		return fmt.Errorf("connect %s: %w", chain.Name, err)
	}
	session.Connect(wallet.NewKeySigner(client, key))
	return nil
}
