package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/ui"
)

// alertFrame is the union of all frame types the alert stream carries.
type alertFrame struct {
	Type         string    `json:"type"`
	CommunityIDs []string  `json:"community_ids,omitempty"`
	CommunityID  string    `json:"community_id,omitempty"`
	EventID      string    `json:"event_id,omitempty"`
	TS           time.Time `json:"ts,omitempty"`
	Lat          float64   `json:"lat,omitempty"`
	Lon          float64   `json:"lon,omitempty"`
	Cell         string    `json:"cell,omitempty"`
	EventType    string    `json:"event_type,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	MediaURL     string    `json:"media_url,omitempty"`
	Message      string    `json:"message,omitempty"`
	AlertType    string    `json:"alert_type,omitempty"`
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream live vision events and alerts for your communities",
	GroupID: "community",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if authToken == "" {
			return fmt.Errorf("watching requires a node token: register first or pass --token")
		}
		wsURL := "ws" + strings.TrimPrefix(serverURL, "http") +
			"/v1/ws/alerts?token=" + url.QueryEscape(authToken)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		// Reconnect until interrupted. The server sends a fresh welcome
		// frame on every connect, so missed membership changes heal here.
		for {
			err := watchOnce(ctx, wsURL)
			if ctx.Err() != nil {
				return nil
			}
			if err != nil {
				log.Printf("watch: %v (reconnecting)", err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(2 * time.Second):
			}
		}
	},
}

func watchOnce(ctx context.Context, wsURL string) error {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return fmt.Errorf("dialing: %s", resp.Status)
		}
		return fmt.Errorf("dialing: %w", err)
	}
	resp.Body.Close()
	defer ws.Close()

	done := make(chan struct{})
	defer close(done)

	// Close the socket on interrupt so the blocked read below returns.
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-done:
		}
	}()

	// Client-side pings keep idle connections alive through proxies.
	go func() {
		ticker := time.NewTicker(25 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = ws.WriteJSON(map[string]string{"type": "ping"})
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		printAlertFrame(data)
	}
}

func printAlertFrame(data []byte) {
	var f alertFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return
	}
	if f.Type == "pong" {
		return
	}
	if jsonOutput {
		fmt.Println(string(data))
		return
	}
	switch f.Type {
	case "welcome":
		fmt.Printf("%s watching %d communities: %s\n",
			ui.RenderMuted(formatTime(time.Now())),
			len(f.CommunityIDs),
			strings.Join(f.CommunityIDs, ", "),
		)
	case "vision_event":
		fmt.Printf("%s %s %s detected %s (%.0f%%) at %.5f, %.5f\n",
			ui.RenderMuted(formatTime(f.TS)),
			ui.RenderAccent(f.CommunityID),
			ui.RenderOK("event"),
			f.EventType,
			f.Confidence*100,
			f.Lat, f.Lon,
		)
	case "community_alert":
		kind := f.AlertType
		if kind == "" {
			kind = "alert"
		}
		fmt.Printf("%s %s %s %s\n",
			ui.RenderMuted(formatTime(f.TS)),
			ui.RenderAccent(f.CommunityID),
			ui.RenderWarn(kind),
			f.Message,
		)
	default:
		fmt.Println(string(data))
	}
}
