// Package cli implements the interactive command-line interface: live
// status tables, a manual refresh trigger, and configuration updates.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"

	"github.com/beacon-project/beacon/internal/admission"
	"github.com/beacon-project/beacon/internal/config"
	"github.com/beacon-project/beacon/internal/events"
	"github.com/beacon-project/beacon/internal/list"
	"github.com/beacon-project/beacon/internal/network"
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	eventBus *events.EventBus
	cache    *list.Cache
	tracker  *admission.Tracker
	audit    *admission.AuditLog
	listener *network.UDPBrowserListener

	startedAt time.Time
}

// NewCLI creates a new CLI handler over the running components.
func NewCLI(cfg *config.Config, eventBus *events.EventBus, cache *list.Cache, tracker *admission.Tracker, audit *admission.AuditLog, listener *network.UDPBrowserListener) *CLI {
	return &CLI{
		cfg:       cfg,
		eventBus:  eventBus,
		cache:     cache,
		tracker:   tracker,
		audit:     audit,
		listener:  listener,
		startedAt: time.Now(),
	}
}

// Start begins the interactive CLI loop.
func (c *CLI) Start(ctx context.Context) {
	fmt.Println("\nBeacon CLI ready. Type 'help' for available commands.")
	fmt.Println("─────────────────────────────────────────────────────")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("beacon> ")

		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				// stdin closed
				log.Debug().Msg("CLI input closed")
				return
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			parts := strings.Fields(line)
			cmd := strings.ToLower(parts[0])
			args := parts[1:]

			if err := c.execute(ctx, cmd, args); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
		}
	}
}

// execute processes a single CLI command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "servers":
		c.printServers(os.Stdout)
	case "clients":
		c.printClients(os.Stdout)
	case "refresh":
		return c.cmdRefresh(ctx)
	case "flush":
		return c.cmdFlush()
	case "setconfig":
		return c.cmdSetConfig(ctx, args)
	case "quit", "exit", "q":
		fmt.Println("Shutting down Beacon...")
		c.eventBus.Emit(ctx, events.Event{
			Type:   events.EventShutdown,
			Source: "cli",
		})
	default:
		fmt.Printf("Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

// printHelp displays available commands.
func (c *CLI) printHelp() {
	fmt.Println("\n╔══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      Beacon CLI Commands                     ║")
	fmt.Println("╠══════════════════════════════════════════════════════════════╣")
	fmt.Println("║  status             Show service status overview             ║")
	fmt.Println("║  servers            Show the current server list             ║")
	fmt.Println("║  clients            Show tracked client endpoints            ║")
	fmt.Println("║  refresh            Refresh the server list now              ║")
	fmt.Println("║  flush              Flush queued audit entries to disk       ║")
	fmt.Println("║  setconfig <k> <v>  Update a configuration value             ║")
	fmt.Println("║  quit               Shutdown Beacon                          ║")
	fmt.Println("║  help               Show this help message                   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════════╝")
	fmt.Println()
}

// printStatus displays a service overview.
func (c *CLI) printStatus() {
	snap := c.cache.Snapshot()
	data := c.cfg.GetBrowserData()

	refreshed := "never"
	if !snap.RefreshedAt.IsZero() {
		refreshed = snap.RefreshedAt.Format(time.RFC3339)
	}

	fmt.Printf("\n  Uptime:          %s\n", time.Since(c.startedAt).Round(time.Second))
	fmt.Printf("  Browser port:    %d\n", data.BindPort)
	fmt.Printf("  Servers listed:  %d\n", len(snap.Addresses))
	fmt.Printf("  List refreshed:  %s\n", refreshed)
	fmt.Printf("  Merge priority:  %s\n", data.MergePriority)
	fmt.Printf("  Responses sent:  %d\n", c.listener.ResponsesSent())
	fmt.Printf("  Tracked clients: %d\n", c.tracker.Len())
	fmt.Printf("  Audit queue:     %d\n", c.audit.QueueDepth())
	fmt.Println()
}

// printServers renders the current server list as a table.
func (c *CLI) printServers(w io.Writer) {
	snap := c.cache.Snapshot()

	if len(snap.Addresses) == 0 {
		fmt.Fprintln(w, "Server list is empty")
		return
	}

	fmt.Fprintln(w)
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"#", "Address"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for i, addr := range snap.Addresses {
		tw.Append([]string{fmt.Sprintf("%d", i+1), addr})
	}

	tw.Render()
	fmt.Fprintln(w)
}

// printClients renders the tracked client endpoints, oldest first.
func (c *CLI) printClients(w io.Writer) {
	endpoints := c.tracker.Endpoints()

	if len(endpoints) == 0 {
		fmt.Fprintln(w, "No clients tracked yet")
		return
	}

	fmt.Fprintln(w)
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"IP", "Port", "First Seen"})
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)

	for _, ep := range endpoints {
		tw.Append([]string{
			ep.IP,
			fmt.Sprintf("%d", ep.Port),
			ep.SeenAt.Format("2006-01-02 15:04:05"),
		})
	}

	tw.Render()
	fmt.Fprintln(w)
}

func (c *CLI) cmdRefresh(ctx context.Context) error {
	count := c.cache.Refresh(ctx)
	fmt.Printf("Server list refreshed: %d servers\n", count)
	return nil
}

func (c *CLI) cmdFlush() error {
	n, err := c.audit.Flush()
	if err != nil {
		return err
	}
	fmt.Printf("Flushed %d audit entries\n", n)
	return nil
}

func (c *CLI) cmdSetConfig(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: setconfig <key> <value>")
	}

	key := args[0]
	value := strings.Join(args[1:], " ")

	// Coerce so numeric and boolean fields accept CLI input.
	var typed interface{} = value
	if n, err := strconv.Atoi(value); err == nil {
		typed = n
	} else if b, err := strconv.ParseBool(value); err == nil {
		typed = b
	}

	if err := c.cfg.UpdateBrowserField(key, typed); err != nil {
		return err
	}

	if err := c.cfg.Save(); err != nil {
		return err
	}

	c.eventBus.Emit(ctx, events.Event{
		Type:   events.EventConfigChanged,
		Source: "cli",
		Payload: events.ConfigChangedPayload{
			Key:   key,
			Value: value,
		},
	})

	fmt.Printf("Config updated: %s = %s\n", key, value)
	return nil
}
