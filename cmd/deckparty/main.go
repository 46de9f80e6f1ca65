package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/noelys215/deckparty/internal/api"
	"github.com/noelys215/deckparty/internal/config"
	"github.com/noelys215/deckparty/internal/deck"
	"github.com/noelys215/deckparty/internal/logging"
	"github.com/noelys215/deckparty/internal/session"
	"github.com/noelys215/deckparty/internal/simulator"
	"github.com/noelys215/deckparty/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deckparty",
		Short: "Group swipe-to-decide session client",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Join the group session and swipe through the deck",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(cmd.Context())
		},
	}

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a local reference session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulator(cmd.Context())
		},
	}

	rootCmd.AddCommand(runCmd, simulateCmd)
	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("server-url", defaults.GetString("server.url"), "Session server base URL")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite client state path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("group-id", "", "Group to decide with")
	cmd.PersistentFlags().String("member-name", "", "Display name to join as")
	cmd.PersistentFlags().String("simulator-address", defaults.GetString("simulator.address"), "Simulator listen address")
	cmd.PersistentFlags().String("signing-secret", "", "Simulator token signing secret")

	bindFlag(cmd, "server.url", "server-url")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "group.id", "group-id")
	bindFlag(cmd, "member.name", "member-name")
	bindFlag(cmd, "simulator.address", "simulator-address")
	bindFlag(cmd, "simulator.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runSimulator(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	secret := appConfig.SigningSecret
	if secret == "" {
		secret = "deckparty-dev-secret"
		logger.Warn("no signing secret configured, using the development default")
	}

	sim, err := simulator.New(simulator.Config{
		SigningSecret: []byte(secret),
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	handler, err := simulator.NewHTTPHandler(simulator.Dependencies{
		Simulator: sim,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.SimulatorAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("simulator starting", zap.String("address", appConfig.SimulatorAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runClient(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if strings.TrimSpace(appConfig.GroupID) == "" {
		return fmt.Errorf("group.id is required")
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, err := storage.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := api.NewClient(api.ClientConfig{
		BaseURL:   appConfig.ServerURL,
		AuthToken: appConfig.AuthToken,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	joined, err := client.Join(ctx, api.JoinRequest{
		GroupID:    appConfig.GroupID,
		MemberName: appConfig.MemberName,
	})
	if err != nil {
		return err
	}
	client.SetAuthToken(joined.AccessToken)

	synchronizer, err := session.NewSynchronizer(session.SynchronizerConfig{
		API:       client,
		Store:     store,
		GroupID:   appConfig.GroupID,
		SessionID: joined.State.SessionID,
		IsLeader:  joined.IsLeader,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := synchronizer.Contexts().SetActiveSession(appConfig.GroupID, joined.State.SessionID); err != nil {
		logger.Warn("failed to persist active session pointer", zap.Error(err))
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	loopCtx, cancel := context.WithCancel(signalCtx)
	defer cancel()

	syncDone := make(chan error, 1)
	go func() {
		syncDone <- synchronizer.Run(loopCtx)
	}()

	fmt.Printf("joined session %s (leader=%v)\n", joined.State.SessionID, joined.IsLeader)
	fmt.Println("commands: yes, no, maybe, card, status, shortlist, tiebreak, link <url>, end, quit")

	commands := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			commands <- strings.TrimSpace(scanner.Text())
		}
		close(commands)
	}()

	for {
		select {
		case err := <-syncDone:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			printOutcome(synchronizer)
			return err
		case line, open := <-commands:
			if !open {
				cancel()
				<-syncDone
				return nil
			}
			if quit := handleCommand(loopCtx, synchronizer, line); quit {
				cancel()
				<-syncDone
				return nil
			}
		}
	}
}

func handleCommand(ctx context.Context, synchronizer *session.Synchronizer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "yes":
		swipe(ctx, synchronizer, deck.Offset{X: 200})
	case "no":
		swipe(ctx, synchronizer, deck.Offset{X: -200})
	case "maybe":
		swipe(ctx, synchronizer, deck.Offset{Y: -200})
	case "card":
		if card, ok := synchronizer.CurrentCard(); ok {
			fmt.Printf("up next: %s (%d) [%s]\n", card.Name, card.Year, card.MediaType)
			if card.Reason != "" {
				fmt.Printf("  why: %s\n", card.Reason)
			}
		} else {
			fmt.Println("deck exhausted, waiting on the rest of the group")
		}
	case "status":
		printStatus(synchronizer)
	case "shortlist":
		for _, card := range synchronizer.ShortlistCards() {
			fmt.Printf("  %s (%d)\n", card.Name, card.Year)
		}
	case "tiebreak":
		if err := synchronizer.ResolveTieBreak(ctx); err != nil {
			fmt.Printf("tie-break failed: %v\n", err)
		} else {
			printOutcome(synchronizer)
		}
	case "link":
		if len(fields) < 2 {
			fmt.Println("usage: link <url>")
			return false
		}
		url := fields[1]
		if err := synchronizer.SetWatchPartyLink(ctx, &url); err != nil {
			fmt.Println("unable to save link, try again")
		}
	case "end":
		if err := synchronizer.EndSession(ctx); err != nil {
			fmt.Printf("end failed: %v\n", err)
		}
	case "quit":
		return true
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
	return false
}

func swipe(ctx context.Context, synchronizer *session.Synchronizer, offset deck.Offset) {
	card, hasCard := synchronizer.CurrentCard()
	direction, err := synchronizer.Swipe(ctx, offset)
	if err != nil {
		fmt.Println("vote saved locally, waiting for the server to catch up")
		return
	}
	if direction == deck.DirectionNone || !hasCard {
		fmt.Println("nothing left to swipe")
		return
	}
	fmt.Printf("swiped %s on %s\n", direction, card.Name)
}

func printStatus(synchronizer *session.Synchronizer) {
	snap, ok := synchronizer.Snapshot()
	if !ok {
		fmt.Println("no session snapshot yet")
		return
	}
	fmt.Printf("phase=%s round=%d cards=%d cursor=%d\n",
		synchronizer.Phase(), snap.Round, len(snap.Cards), synchronizer.Cursor())
	if snap.WinnerID != "" {
		printOutcome(synchronizer)
	}
}

func printOutcome(synchronizer *session.Synchronizer) {
	snap, ok := synchronizer.Snapshot()
	if !ok || snap.WinnerID == "" {
		return
	}
	if index := snap.CardIndex(snap.WinnerID); index >= 0 {
		card := snap.Cards[index]
		fmt.Printf("winner: %s (%d)\n", card.Name, card.Year)
	} else {
		fmt.Printf("winner: %s\n", snap.WinnerID)
	}
	if snap.WatchPartyURL != "" {
		fmt.Printf("watch together: %s\n", snap.WatchPartyURL)
	}
}
