// ABOUTME: cache command
// ABOUTME: Clears the working collections
package cli

import (
	"flag"
	"fmt"

	"github.com/harperreed/crmpulse/models"
)

// CacheCommand routes the cache subcommands.
func CacheCommand(app *App, args []string) error {
	if len(args) == 0 || args[0] != "clear" {
		return fmt.Errorf("usage: cache clear [--kind deals|tasks]")
	}

	fs := flag.NewFlagSet("cache clear", flag.ContinueOnError)
	kind := fs.String("kind", "", "Collection to clear (default: both)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	kinds := []string{models.KindDeals, models.KindTasks}
	if *kind != "" {
		kinds = []string{*kind}
	}
	if err := app.Cache.Clear(kinds...); err != nil {
		return err
	}
	for _, k := range kinds {
		app.printf("✓ Cleared %s\n", k)
	}
	return nil
}
