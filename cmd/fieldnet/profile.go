package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/arenvale/fieldnet/internal/ui"
)

// Profile is the node's saved identity and defaults. The token is written
// exactly once at registration; losing the file means re-registering.
type Profile struct {
	Server  string   `toml:"server,omitempty"`
	NodeID  string   `toml:"node_id,omitempty"`
	Token   string   `toml:"token,omitempty"`
	NATSURL string   `toml:"nats_url,omitempty"`
	Lat     *float64 `toml:"lat,omitempty"`
	Lon     *float64 `toml:"lon,omitempty"`
}

func profilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "fieldnet")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.toml"), nil
}

func loadProfile() (Profile, error) {
	path, err := profilePath()
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if os.IsNotExist(err) {
			return Profile{}, nil
		}
		return Profile{}, err
	}
	return p, nil
}

func saveProfile(p Profile) error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(p)
}

// Cached profile, loaded once per process.
var (
	profileOnce   sync.Once
	cachedProfile Profile
)

func activeProfile() Profile {
	profileOnce.Do(func() {
		p, err := loadProfile()
		if err != nil {
			return
		}
		cachedProfile = p
	})
	return cachedProfile
}

// profileCoords returns the position to use: explicit flags win, then the
// saved profile.
func profileCoords(latFlag, lonFlag float64, latSet, lonSet bool) (float64, float64, error) {
	if latSet && lonSet {
		return latFlag, lonFlag, nil
	}
	p := activeProfile()
	if p.Lat != nil && p.Lon != nil {
		return *p.Lat, *p.Lon, nil
	}
	return 0, 0, fmt.Errorf("no position: pass --lat/--lon or set them with 'fieldnet profile set'")
}

var profileCmd = &cobra.Command{
	Use:     "profile",
	Short:   "Show or edit the saved node profile",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		printProfile(p)
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a profile field (server, nats_url, lat, lon)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := loadProfile()
		if err != nil {
			return err
		}
		key, value := args[0], args[1]
		switch key {
		case "server":
			p.Server = value
		case "nats_url":
			p.NATSURL = value
		case "lat", "lon":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("%s must be a number: %w", key, err)
			}
			if key == "lat" {
				p.Lat = &f
			} else {
				p.Lon = &f
			}
		default:
			return fmt.Errorf("unknown profile key %q", key)
		}
		if err := saveProfile(p); err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", key, value)
		return nil
	},
}

var profileClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the saved identity and defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := profilePath()
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Println("profile cleared")
		return nil
	},
}

func printProfile(p Profile) {
	if p == (Profile{}) {
		fmt.Println("no profile saved; run 'fieldnet register' first")
		return
	}
	fmt.Printf("Server:   %s\n", p.Server)
	fmt.Printf("Node ID:  %s\n", ui.RenderAccent(p.NodeID))
	if p.Token != "" {
		fmt.Printf("Token:    %s\n", ui.RenderMuted("(saved)"))
	}
	if p.NATSURL != "" {
		fmt.Printf("NATS:     %s\n", p.NATSURL)
	}
	if p.Lat != nil && p.Lon != nil {
		fmt.Printf("Position: %.5f, %.5f\n", *p.Lat, *p.Lon)
	}
}

func init() {
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileClearCmd)
}
