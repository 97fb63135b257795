package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bitchat/internal/app"
	"bitchat/internal/domain"
)

// chat: interactive loop running both roles until /quit or a signal.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context())
		},
	}
}

func runChat(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Name == "" {
		cfg.Name = promptName()
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	fmt.Println("\n[*] BitChat - BLE Chat Application")
	fmt.Printf("[*] Username: %s\n", cfg.Name)
	fmt.Println("[*] Type /help for commands")
	fmt.Println()

	startResponder(ctx, a)
	go drainInbox(a)

	lines := readLines(ctx)
	fmt.Print("> ")
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n[*] Exiting...")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Println("\n[*] Exiting...")
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case strings.HasPrefix(line, "/"):
				if quit := runVerb(ctx, a, line); quit {
					fmt.Println("[*] Exiting...")
					return nil
				}
			default:
				sendLine(ctx, a, line)
			}
			fmt.Print("> ")
		}
	}
}

// startResponder brings up the peripheral role. Advertising being impossible
// degrades the app to initiator-only rather than failing it.
func startResponder(ctx context.Context, a *app.App) {
	if a.Config.NoAdvertise {
		fmt.Println("[*] Advertising disabled, running initiator-only")
		return
	}
	err := a.Responder.Start(ctx)
	switch {
	case err == nil:
		fmt.Printf("[Peripheral] Advertising as '%s'\n", domain.AdvertisedName(a.Config.Name))
	case errors.Is(err, domain.ErrAdvertisingUnavailable):
		fmt.Println("[Warning] No BLE adapter found. Peripheral mode disabled.")
		fmt.Println("[Info] You can still connect to other devices, but others won't be able to discover you.")
	default:
		fmt.Printf("[Warning] Failed to set up peripheral mode: %v\n", err)
	}
}

// drainInbox prints queued inbound messages until the inbox closes.
func drainInbox(a *app.App) {
	for {
		entry, ok := a.Inbox.Dequeue(a.Config.DrainPoll)
		if !ok {
			if a.Inbox.Closed() {
				return
			}
			continue
		}
		fmt.Printf("\n[Peer]: %s\n> ", entry.Message.Body)
	}
}

func promptName() string {
	fmt.Print("Enter your username: ")
	sc := bufio.NewScanner(os.Stdin)
	if !sc.Scan() {
		return "User"
	}
	if name := strings.TrimSpace(sc.Text()); name != "" {
		return name
	}
	return "User"
}

// readLines feeds stdin lines into a channel, closed on EOF.
func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// runVerb dispatches a /-prefixed command. Returns true when the loop should
// exit.
func runVerb(ctx context.Context, a *app.App, line string) bool {
	fields := strings.Fields(line)
	verb := strings.ToLower(fields[0])
	switch verb {
	case "/help":
		printHelp()

	case "/scan":
		fmt.Printf("\n[*] Scanning for BLE chat peers (timeout: %s)...\n", a.Config.ScanTimeout)
		peers, err := a.Initiator.Scan(ctx, a.Config.ScanTimeout)
		if err != nil {
			fmt.Printf("[-] Scan failed: %v\n", err)
			return false
		}
		printPeers(peers)

	case "/connect":
		if len(fields) < 2 {
			fmt.Println("[-] Usage: /connect <address>")
			return false
		}
		connectPeer(ctx, a, fields[1])

	case "/status":
		printStatus(a)

	case "/disconnect":
		if prior := a.Sessions.Teardown(); prior.State != domain.StateIdle {
			fmt.Println("[*] Disconnected")
		} else {
			fmt.Println("[-] Not connected")
		}

	case "/quit":
		return true

	default:
		fmt.Printf("[-] Unknown command: %s. Type /help for available commands.\n", verb)
	}
	return false
}

func connectPeer(ctx context.Context, a *app.App, address string) {
	fmt.Printf("[*] Connecting to %s...\n", address)
	status, err := a.Sessions.Connect(ctx, address)
	switch {
	case err == nil:
		fmt.Printf("[+] Connected to %s\n", status.Peer.Label())
	case errors.Is(err, domain.ErrAlreadyConnected):
		fmt.Println("[!] Already connected. Disconnect first.")
	case errors.Is(err, domain.ErrServiceNotFound):
		fmt.Println("[!] Chat service not found on peer device")
	case errors.Is(err, domain.ErrCharacteristicsNotFound):
		fmt.Println("[!] Required characteristics not found")
	default:
		fmt.Printf("[-] Connection failed: %v\n", err)
	}
}

func sendLine(ctx context.Context, a *app.App, text string) {
	msg, err := a.Sessions.Send(ctx, text)
	switch {
	case err == nil:
		fmt.Printf("[You]: %s\n", msg.Body)
	case errors.Is(err, domain.ErrNotConnected):
		st := a.Sessions.Status()
		if st.State == domain.StateConnected && st.Role == domain.RoleResponder {
			// The peer connected to us; replying needs our own outbound link.
			fmt.Println("[-] This session was opened by the peer and has no outbound link.")
			if st.Peer.Address != "" {
				fmt.Printf("[-] Use /disconnect, then /connect %s to chat back.\n", st.Peer.Address)
			}
		} else {
			fmt.Println("[-] Not connected to any peer")
		}
	default:
		fmt.Printf("[-] Failed to send message: %v\n", err)
	}
}

func printStatus(a *app.App) {
	status := a.Sessions.Status()
	switch status.State {
	case domain.StateConnected:
		age := time.Since(status.EstablishedAt).Round(time.Second)
		fmt.Printf("[+] Connected to %s (%s role, session %s, up %s)\n",
			status.Peer.Label(), status.Role, status.SessionID, age)
	case domain.StateConnecting:
		fmt.Println("[*] Connecting...")
	default:
		fmt.Println("[-] Not connected")
	}
	if a.Responder.Advertising() {
		fmt.Printf("[*] Advertising as '%s'\n", domain.AdvertisedName(a.Config.Name))
	}
}

func printHelp() {
	fmt.Println("\nCommands:")
	fmt.Println("  /scan              - Scan for nearby BLE chat peers")
	fmt.Println("  /connect <addr>    - Connect to a peer by address")
	fmt.Println("  /status            - Show connection status")
	fmt.Println("  /disconnect        - Disconnect from current peer")
	fmt.Println("  /quit              - Exit the application")
	fmt.Println("  /help              - Show this help message")
	fmt.Println("\nJust type a message to send it to the connected peer.")
	fmt.Println()
}
