package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/client"
	"github.com/arenvale/fieldnet/internal/events"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/ui"
)

var pushCmd = &cobra.Command{
	Use:     "push",
	Short:   "Manage and tail push notifications",
	GroupID: "system",
}

var pushPrefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show this node's notification toggles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		prefs, err := fieldClient.GetPushPreferences(context.Background())
		if err != nil {
			return fmt.Errorf("fetching preferences: %w", err)
		}
		if jsonOutput {
			printJSON(prefs)
			return nil
		}
		printPushPreferences(prefs)
		return nil
	},
}

var pushSetCmd = &cobra.Command{
	Use:   "set <key> <on|off>",
	Short: "Toggle one notification category",
	Long: "Toggle one notification category. Keys: enabled, vision_events,\n" +
		"community_alerts, task_updates, compute_jobs. Untouched categories\n" +
		"keep their current setting.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		var value bool
		switch args[1] {
		case "on", "true":
			value = true
		case "off", "false":
			value = false
		default:
			return fmt.Errorf("value must be on or off, got %q", args[1])
		}

		update := &model.PushPreferenceUpdate{}
		switch key {
		case "enabled":
			update.Enabled = &value
		case model.PushVisionEvents:
			update.VisionEvents = &value
		case model.PushCommunityAlerts:
			update.CommunityAlerts = &value
		case model.PushTaskUpdates:
			update.TaskUpdates = &value
		case model.PushComputeJobs:
			update.ComputeJobs = &value
		default:
			return fmt.Errorf("unknown preference key %q", key)
		}

		prefs, err := fieldClient.SetPushPreferences(context.Background(), update)
		if err != nil {
			return fmt.Errorf("updating preferences: %w", err)
		}
		if jsonOutput {
			printJSON(prefs)
			return nil
		}
		printPushPreferences(prefs)
		return nil
	},
}

var pushSendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Queue a push notification for a node or a community",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node")
		communityID, _ := cmd.Flags().GetString("community")
		if (nodeID == "") == (communityID == "") {
			return fmt.Errorf("pass exactly one of --node or --community")
		}
		kind, _ := cmd.Flags().GetString("kind")
		title, _ := cmd.Flags().GetString("title")

		req := &client.PushEnqueueRequest{
			NodeID:      nodeID,
			CommunityID: communityID,
			Kind:        kind,
			Title:       title,
			Body:        args[0],
		}
		if err := fieldClient.EnqueuePush(context.Background(), req); err != nil {
			return fmt.Errorf("queueing push: %w", err)
		}
		if jsonOutput {
			printJSON(map[string]bool{"queued": true})
			return nil
		}
		fmt.Println("queued")
		return nil
	},
}

var pushTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Tail this node's push subject on the event bus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node")
		if nodeID == "" {
			nodeID = activeProfile().NodeID
		}
		if nodeID == "" {
			return fmt.Errorf("no node identity: register first or pass --node")
		}

		natsURL := os.Getenv("FIELDNET_NATS_URL")
		if natsURL == "" {
			natsURL = activeProfile().NATSURL
		}
		if natsURL == "" {
			return fmt.Errorf("no event bus configured: set FIELDNET_NATS_URL or 'fieldnet profile set nats_url'")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(events.PushSubject(nodeID))
		if err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		defer cancel()

		fmt.Printf("tailing push messages for %s (ctrl-c to stop)\n", ui.RenderAccent(nodeID))
		for {
			select {
			case <-ctx.Done():
				return nil
			case data, ok := <-ch:
				if !ok {
					return nil
				}
				printPushMessage(data)
			}
		}
	},
}

func printPushMessage(data []byte) {
	if jsonOutput {
		fmt.Println(string(data))
		return
	}
	var msg events.PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		fmt.Println(string(data))
		return
	}
	line := fmt.Sprintf("%s %s",
		ui.RenderMuted(formatTime(time.Now())),
		ui.RenderWarn(msg.Kind),
	)
	if msg.Title != "" {
		line += " " + msg.Title
	}
	if msg.Body != "" {
		line += ": " + msg.Body
	}
	if msg.Ref != "" {
		line += " " + ui.RenderMuted("("+msg.Ref+")")
	}
	fmt.Println(line)
}

func init() {
	pushCmd.AddCommand(pushPrefsCmd)
	pushCmd.AddCommand(pushSetCmd)

	pushSendCmd.Flags().String("node", "", "target node ID")
	pushSendCmd.Flags().String("community", "", "target community ID (fans out to members)")
	pushSendCmd.Flags().StringP("kind", "k", model.PushCommunityAlerts, "notification kind")
	pushSendCmd.Flags().StringP("title", "t", "", "notification title")
	pushCmd.AddCommand(pushSendCmd)

	pushTailCmd.Flags().String("node", "", "node ID (defaults to the saved profile)")
	pushCmd.AddCommand(pushTailCmd)
}
