package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	syncClient "github.com/rcvieira/fluxo/client"
	"github.com/rcvieira/fluxo/client/querycache"
	"github.com/rcvieira/fluxo/client/transport"
	"github.com/rcvieira/fluxo/core/config"
)

// watchCmd runs the sync client from a terminal: it subscribes to the
// project list and prints every update pushed by the server. Useful for
// verifying the push channel end to end.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the project board in real time over the push channel",
	Run:   watchProjects,
}

func init() {
	watchCmd.Flags().String("server", "http://localhost:3000", "Base URL of the fluxo server")
	watchCmd.Flags().String("token", "", "Session credential (user:pass)")
	rootCmd.AddCommand(watchCmd)
}

func watchProjects(cmd *cobra.Command, _ []string) {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")

	syncCfg := config.Global.Sync
	sc := syncClient.New(syncClient.Config{
		BaseURL:            server,
		Token:              token,
		Policies:           querycache.PolicySet{Default: querycache.Policy{MaxAge: syncCfg.MaxAge}},
		RevalidateInterval: syncCfg.RevalidateInterval,
		IdleEviction:       syncCfg.IdleEviction,
		HeartbeatInterval:  syncCfg.HeartbeatInterval,
		PongTimeout:        syncCfg.PongTimeout,
		MinBackoff:         syncCfg.ReconnectMinBackoff,
		MaxBackoff:         syncCfg.ReconnectMaxBackoff,
		OnStatus: func(status transport.Status, meta transport.Meta) {
			logrus.Infof("Connection: %s (attempt %d)", status, meta.Attempts)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sc.Start(ctx); err != nil {
		logrus.Fatalf("Cannot start sync client: %v", err)
	}
	defer sc.Close()

	sub := sc.Subscribe(querycache.NewKey("projects"), func(info querycache.EntryInfo) {
		if !info.HasValue {
			return
		}
		raw, ok := info.Value.(json.RawMessage)
		if !ok {
			return
		}
		var projects []map[string]any
		if err := json.Unmarshal(raw, &projects); err != nil {
			logrus.Warnf("Unreadable project list: %v", err)
			return
		}
		logrus.Infof("Board updated (%s): %d projects", info.State, len(projects))
		for _, p := range projects {
			logrus.Infof("  [%v] %v", p["status"], p["title"])
		}
	})
	defer sub.Close()

	<-ctx.Done()

	stats := sc.Cache().Stats()
	logrus.Infof("Cache on exit: %d entries (%d fresh, %d stale, %d errored), oldest fetch %s",
		stats.Entries, stats.Fresh, stats.Stale, stats.Errored, stats.OldestFetch)
}
