package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bitchat/internal/app"
	"bitchat/internal/domain"
)

// scan: one discovery sweep, then exit.
func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan for nearby BLE chat peers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			fmt.Printf("[*] Scanning for BLE chat peers (timeout: %s)...\n", cfg.ScanTimeout)
			peers, err := a.Initiator.Scan(cmd.Context(), cfg.ScanTimeout)
			if err != nil {
				return err
			}
			printPeers(peers)
			return nil
		},
	}
}

func printPeers(peers []domain.PeerIdentity) {
	if len(peers) == 0 {
		fmt.Println("[*] No devices found.")
		return
	}
	if chatPeersNamed(peers) {
		fmt.Printf("[*] Found %d device(s):\n", len(peers))
	} else {
		fmt.Println("[*] No chat peers found. Showing all BLE devices:")
	}
	for i, p := range peers {
		name := p.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, name, p.Address)
	}
	fmt.Println()
}

// chatPeersNamed reports whether any listed device carries the chat name
// marker, distinguishing a filtered scan from the permissive fallback.
func chatPeersNamed(peers []domain.PeerIdentity) bool {
	for _, p := range peers {
		if strings.Contains(p.Name, domain.LocalNamePrefix) {
			return true
		}
	}
	return false
}
