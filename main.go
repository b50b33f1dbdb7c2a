package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/lcm-policing/api"
	"github.com/linesmerrill/lcm-policing/api/handlers"
	"github.com/linesmerrill/lcm-policing/config"
	"github.com/linesmerrill/lcm-policing/databases"
	"github.com/linesmerrill/lcm-policing/decisions"
	"github.com/linesmerrill/lcm-policing/gateway"
	"github.com/linesmerrill/lcm-policing/queue"
)

const shutdownTimeout = 10 * time.Second

var configPath string

var rootCmd = &cobra.Command{
	Use:           "lcm-policing",
	Short:         "Community accountability incident resolution service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the policing pages, incident actions and notification bell",
	RunE:  runServe,
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Print the Verify Queue for a bearer token",
	Long: `Print the caller's Verify Queue, minus the incidents this device has ignored or
marked FALSE. The device's decisions are read from the configured device storage.`,
	RunE: runQueue,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")
	queueCmd.Flags().String("token", "", "bearer token of the signed-in user (required)")
	queueCmd.Flags().String("device", "cli", "device id whose local decisions apply")
	_ = queueCmd.MarkFlagRequired("token")

	rootCmd.AddCommand(serveCmd, queueCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	defer zap.L().Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := handlers.App{Config: *conf}
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", conf.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.Connect(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return a.Scheduler.Run(gctx) })
	g.Go(func() error {
		zap.S().Infow("lcm-policing is up and running", "port", conf.Port, "url", conf.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runQueue(cmd *cobra.Command, _ []string) error {
	token, _ := cmd.Flags().GetString("token")
	device, _ := cmd.Flags().GetString("device")

	conf, err := config.Load(configPath)
	if err != nil {
		return err
	}
	defer zap.L().Sync()

	userID, err := api.Subject(token, conf.JWTSecret)
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	ctx := gateway.WithAccessToken(cmd.Context(), token)

	store, closeFn, err := databases.OpenDeviceStorage(ctx, conf)
	if err != nil {
		return err
	}
	defer closeFn(context.Background())

	cache, err := decisions.NewRegistry(store).ForDevice(ctx, device)
	if err != nil {
		return err
	}
	client, err := gateway.NewClient(conf)
	if err != nil {
		return err
	}

	v, err := queue.New(gateway.Static(client), conf.QueueLimit).Refresh(ctx, userID, cache)
	if err != nil {
		return err
	}
	return printQueue(cmd, v)
}

func printQueue(cmd *cobra.Command, v *queue.View) error {
	out := cmd.OutOrStdout()
	if len(v.Entries) == 0 {
		_, err := fmt.Fprintln(out, v.Placeholder)
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INCIDENT\tCOMMUNITY\tVERIFIERS\tCREATED\tREASON")
	for _, e := range v.Entries {
		fmt.Fprintf(w, "#%s\t%s\t%d\t%s\t%s\n", e.IncidentID, e.Community, e.VerifiersCount, e.CreatedAt.UTC().Format(time.RFC3339), e.ReasonPreview)
	}
	return w.Flush()
}
