package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/arenvale/fieldnet/internal/client"
	"github.com/arenvale/fieldnet/internal/model"
	"github.com/arenvale/fieldnet/internal/ui"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

func printCommunityTable(c *model.Community) {
	fmt.Printf("ID:          %s\n", ui.RenderAccent(c.ID))
	fmt.Printf("Name:        %s\n", c.Name)
	fmt.Printf("Center:      %.5f, %.5f\n", c.Lat, c.Lon)
	fmt.Printf("Radius:      %.1f km\n", c.RadiusKm)
	fmt.Printf("Cells:       %d (res %d)\n", len(c.Cells), c.H3Res)
	fmt.Printf("Members:     %d\n", len(c.Members))
	if c.InviteCode != "" {
		fmt.Printf("Invite Code: %s\n", ui.RenderAccent(c.InviteCode))
	}
	fmt.Printf("Created At:  %s\n", formatTime(c.CreatedAt))
}

func printCommunityListTable(communities []*client.CommunitySummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE\tMEMBERS\tRADIUS\tINVITE")
	for _, c := range communities {
		invite := c.InviteCode
		if invite == "" {
			invite = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.1f km\t%s\n",
			c.ID,
			truncate(c.Name, 30),
			c.Role,
			c.MemberCount,
			c.RadiusKm,
			invite,
		)
	}
	w.Flush()
	fmt.Printf("\n%d communities\n", len(communities))
}

func printAlertListTable(alerts []*model.Event) {
	for _, ev := range alerts {
		if ev.Alert == nil {
			continue
		}
		kind := ev.Alert.AlertType
		if kind == "" {
			kind = "general"
		}
		fmt.Printf("[%s] %s %s\n",
			ui.RenderMuted(formatTime(ev.TS)),
			ui.RenderWarn(kind),
			ev.Alert.Message,
		)
	}
	fmt.Printf("\n%d alerts\n", len(alerts))
}

func printNodeListTable(nodes []*model.HeartbeatStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tLAST SEEN\tBATTERY\tWIFI\tFRAMES\tEVENTS")
	for _, n := range nodes {
		battery := "-"
		if n.Battery != nil {
			battery = fmt.Sprintf("%.0f%%", *n.Battery*100)
		}
		wifi := "-"
		if n.WiFi != nil {
			wifi = fmt.Sprintf("%.0f%%", *n.WiFi*100)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
			n.NodeID,
			formatTime(n.LastHeartbeat),
			battery,
			wifi,
			n.FramesSent,
			n.EventsDetected,
		)
	}
	w.Flush()
	fmt.Printf("\n%d nodes online\n", len(nodes))
}

func printTaskTable(t *model.Task) {
	fmt.Printf("ID:          %s\n", ui.RenderAccent(t.ID))
	fmt.Printf("Type:        %s\n", t.Type)
	fmt.Printf("Status:      %s\n", ui.RenderStatus(string(t.Status)))
	fmt.Printf("Location:    %.5f, %.5f (radius %.1f km)\n", t.Lat, t.Lon, t.RadiusKm)
	if t.Reward > 0 {
		fmt.Printf("Reward:      %.2f\n", t.Reward)
	}
	if t.ClaimedBy != "" {
		fmt.Printf("Claimed By:  %s\n", t.ClaimedBy)
	}
	if t.ProgressPct > 0 {
		fmt.Printf("Progress:    %.0f%%\n", t.ProgressPct)
	}
	if t.ExpiresAt != nil {
		fmt.Printf("Expires At:  %s\n", formatTime(*t.ExpiresAt))
	}
	fmt.Printf("Created At:  %s\n", formatTime(t.CreatedAt))
}

func printTaskListTable(tasks []*client.AvailableTask) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTYPE\tDISTANCE\tREWARD\tEXPIRES")
	for _, t := range tasks {
		expires := "-"
		if t.ExpiresAt != nil {
			expires = formatTime(*t.ExpiresAt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f km\t%.2f\t%s\n",
			t.ID,
			ui.RenderStatus(string(t.Status)),
			t.Type,
			t.DistanceKm,
			t.Reward,
			expires,
		)
	}
	w.Flush()
	fmt.Printf("\n%d tasks in range\n", len(tasks))
}

func printJobTable(j *model.ComputeJob) {
	fmt.Printf("ID:          %s\n", ui.RenderAccent(j.ID))
	fmt.Printf("Type:        %s\n", j.Type)
	fmt.Printf("Status:      %s\n", ui.RenderStatus(string(j.Status)))
	if len(j.Requirements) > 0 {
		fmt.Printf("Requires:    %v\n", j.Requirements)
	}
	fmt.Printf("Priority:    %d\n", j.Priority)
	if j.ClaimedBy != "" {
		fmt.Printf("Claimed By:  %s\n", j.ClaimedBy)
	}
	if j.ProgressPct > 0 {
		fmt.Printf("Progress:    %.0f%%\n", j.ProgressPct)
	}
	if len(j.Results) > 0 {
		fmt.Printf("Results:     %s\n", string(j.Results))
	}
	fmt.Printf("Created At:  %s\n", formatTime(j.CreatedAt))
}

func printComputeNodeListTable(nodes []*model.ComputeNode) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tSTATUS\tCAPABILITIES\tLAST SEEN")
	for _, n := range nodes {
		caps := "-"
		if len(n.Capabilities) > 0 {
			caps = fmt.Sprintf("%v", n.Capabilities)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			n.ID,
			ui.RenderStatus(n.Status),
			caps,
			formatTime(n.LastHeartbeat),
		)
	}
	w.Flush()
	fmt.Printf("\n%d compute nodes online\n", len(nodes))
}

func printWorldEventListTable(events []*client.WorldEvent) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tTYPE\tCONF\tCELL")
	for _, ev := range events {
		et := ev.EventType
		if et == "" {
			et = "-"
		}
		conf := "-"
		if ev.Confidence > 0 {
			conf = fmt.Sprintf("%.2f", ev.Confidence)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			formatTime(ev.TS),
			ev.Kind,
			et,
			conf,
			ev.Cell,
		)
	}
	w.Flush()
	fmt.Printf("\n%d events\n", len(events))
}

// printCountMap prints a string-keyed counter map with stable ordering.
func printCountMap(label string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("%s\n", label)
	for _, k := range keys {
		fmt.Printf("  %-18s %d\n", k, m[k])
	}
}

func printPushPreferences(p *model.PushPreference) {
	onOff := func(b bool) string {
		if b {
			return ui.RenderOK("on")
		}
		return ui.RenderMuted("off")
	}
	fmt.Printf("Push:             %s\n", onOff(p.Enabled))
	fmt.Printf("Vision Events:    %s\n", onOff(p.VisionEvents))
	fmt.Printf("Community Alerts: %s\n", onOff(p.CommunityAlerts))
	fmt.Printf("Task Updates:     %s\n", onOff(p.TaskUpdates))
	fmt.Printf("Compute Jobs:     %s\n", onOff(p.ComputeJobs))
}
