package main

import (
	"context"
	"fmt"
	"os"

	"github.com/amirasaad/ledgersync/infra/initializer"
	"github.com/amirasaad/ledgersync/pkg/config"
	"github.com/amirasaad/ledgersync/pkg/syncengine"
)

func usage() {
	fmt.Println("Usage: cli <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  sync [push|pull|full]      run one sync pass (default full)")
	fmt.Println("  balances <trip_id>         show per-participant balances")
	fmt.Println("  settle-plan <trip_id>      show the settling transfer plan")
	fmt.Println("  summary <trip_id>          show the current user's position")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}
	deps, err := initializer.InitializeDependencies(cfg)
	if err != nil {
		fmt.Println("Failed to initialize:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "sync":
		mode := syncengine.ModeFull
		if len(os.Args) > 2 {
			mode = syncengine.Mode(os.Args[2])
		}
		err = deps.Coordinator.RequestSync(ctx, syncengine.Request{
			Mode:      mode,
			AllowPush: true,
		})
		if err != nil {
			fmt.Println("Sync failed:", err)
			os.Exit(1)
		}
		fmt.Println("Sync completed")
	case "balances":
		if len(os.Args) < 3 {
			usage()
			return
		}
		balances, err := deps.Trips.Balances(ctx, os.Args[2])
		if err != nil {
			fmt.Println("Failed to compute balances:", err)
			os.Exit(1)
		}
		for _, b := range balances {
			fmt.Printf("%-20s paid %8.2f owed %8.2f net %8.2f\n",
				b.Name, cents(b.Paid), cents(b.Owed), cents(b.Net))
		}
	case "settle-plan":
		if len(os.Args) < 3 {
			usage()
			return
		}
		plan, err := deps.Trips.SettlePlan(ctx, os.Args[2])
		if err != nil {
			fmt.Println("Failed to compute settle plan:", err)
			os.Exit(1)
		}
		if len(plan) == 0 {
			fmt.Println("All settled up")
			return
		}
		for _, t := range plan {
			fmt.Printf("%s pays %s %.2f\n", t.FromID, t.ToID, cents(t.Amount))
		}
	case "summary":
		if len(os.Args) < 3 {
			usage()
			return
		}
		summary, err := deps.Trips.Summary(ctx, os.Args[2])
		if err != nil {
			fmt.Println("Failed to compute summary:", err)
			os.Exit(1)
		}
		fmt.Printf("You owe %.2f, you get back %.2f\n",
			cents(summary.Owes), cents(summary.GetsBack))
	default:
		usage()
	}
}

func cents(v int64) float64 { return float64(v) / 100 }
