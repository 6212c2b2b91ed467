// ABOUTME: sync subcommands: link, status, now, auto, and wipe
// ABOUTME: Authentication is charm's SSH key flow, so there is no login step

package charm

import (
	"flag"
	"fmt"
	"io"
)

// SyncLinkCommand links this device to a charm account and pulls the
// collections stored there.
func SyncLinkCommand(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("sync link", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load sync config: %w", err)
	}
	fmt.Fprintf(w, "Linking to %s...\n", cfg.Host)

	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("failed to open sync store: %w", err)
	}
	if err := c.Sync(); err != nil {
		return fmt.Errorf("link failed: %w", err)
	}

	if id, err := c.ID(); err != nil {
		fmt.Fprintln(w, "✓ Device linked (account id unavailable)")
	} else {
		fmt.Fprintf(w, "✓ Linked to account %s\n", id)
	}

	if !cfg.AutoSync {
		if err := cfg.SetAutoSync(true); err != nil {
			return fmt.Errorf("failed to enable auto-sync: %w", err)
		}
	}
	fmt.Fprintln(w, "✓ Auto-sync enabled")
	return nil
}

// SyncStatusCommand prints the sync settings and what is stored.
func SyncStatusCommand(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("sync status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load sync config: %w", err)
	}
	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("failed to open sync store: %w", err)
	}
	return WriteStatus(w, c, cfg)
}

// WriteStatus renders the status report for a client.
func WriteStatus(w io.Writer, c *Client, cfg *Config) error {
	fmt.Fprintln(w, "Sync status")
	fmt.Fprintln(w, "───────────")
	fmt.Fprintf(w, "Server:    %s\n", cfg.Host)
	fmt.Fprintf(w, "Auto-sync: %v\n", cfg.AutoSync)

	if id, err := c.ID(); err != nil {
		fmt.Fprintln(w, "Account:   not linked")
	} else {
		fmt.Fprintf(w, "Account:   %s\n", id)
	}

	keys, err := c.Keys()
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	fmt.Fprintf(w, "Keys:      %d\n", len(keys))
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\n", k)
	}
	return nil
}

// SyncNowCommand syncs immediately.
func SyncNowCommand(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("sync now", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("failed to open sync store: %w", err)
	}
	if err := c.Sync(); err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	fmt.Fprintln(w, "✓ Synced")
	return nil
}

// SyncAutoCommand turns auto-sync on or off.
func SyncAutoCommand(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("sync auto", flag.ContinueOnError)
	enable := fs.Bool("enable", false, "Enable auto-sync")
	disable := fs.Bool("disable", false, "Disable auto-sync")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *enable == *disable {
		return fmt.Errorf("usage: crmpulse sync auto --enable|--disable")
	}

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load sync config: %w", err)
	}
	if err := cfg.SetAutoSync(*enable); err != nil {
		return fmt.Errorf("failed to save sync config: %w", err)
	}
	if *enable {
		fmt.Fprintln(w, "✓ Auto-sync enabled")
	} else {
		fmt.Fprintln(w, "✓ Auto-sync disabled")
	}
	return nil
}

// SyncWipeCommand deletes every stored collection.
func SyncWipeCommand(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("sync wipe", flag.ContinueOnError)
	confirm := fs.Bool("confirm", false, "Confirm the wipe")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*confirm {
		fmt.Fprintln(w, "⚠ This deletes every cached collection on this device.")
		fmt.Fprintln(w, "Run: crmpulse sync wipe --confirm")
		return nil
	}

	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("failed to open sync store: %w", err)
	}
	if err := c.Reset(); err != nil {
		return fmt.Errorf("failed to wipe store: %w", err)
	}
	fmt.Fprintln(w, "✓ Store wiped")
	return nil
}
