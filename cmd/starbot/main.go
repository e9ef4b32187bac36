// Command starbot fills a Star Royale match with automated players. Each bot
// connects over the game websocket, walks straight at the current star and
// claims it, which makes it handy for load testing and for watching a match
// play out without a browser.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "starbot",
		Usage: "Automated Star Royale players",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8080", Usage: "Server base URL", Sources: cli.EnvVars("STARBOT_SERVER")},
			&cli.IntFlag{Name: "bots", Value: 4, Usage: "Number of bots"},
			&cli.StringFlag{Name: "prefix", Value: "bot", Usage: "User ID prefix; bots are <prefix>-1, <prefix>-2, ..."},
			&cli.StringFlag{Name: "identity-header", Value: "X-User-ID", Usage: "Header carrying the user ID", Sources: cli.EnvVars("IDENTITY_HEADER")},
			&cli.FloatFlag{Name: "speed", Value: 8, Usage: "Distance moved per tick"},
			&cli.DurationFlag{Name: "tick", Value: 50 * time.Millisecond, Usage: "Movement interval"},
			&cli.DurationFlag{Name: "timeout", Value: 5 * time.Minute, Usage: "Give up after this long"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Action: run,
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "starbot: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	lvl := log15.LvlInfo
	if cmd.Bool("debug") {
		lvl = log15.LvlDebug
	}
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.LogfmtFormat())))

	n := int(cmd.Int("bots"))
	if n < 1 {
		return fmt.Errorf("bots must be >= 1")
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	results := make([]Result, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		userID := fmt.Sprintf("%s-%d", cmd.String("prefix"), i+1)
		bot := NewBot(cmd.String("server"), userID,
			WithSpeed(cmd.Float("speed")),
			WithTick(cmd.Duration("tick")),
			WithIdentityHeader(cmd.String("identity-header")),
		)
		g.Go(func() error {
			r, err := bot.Play(gctx)
			results[i] = r
			return err
		})
	}

	err := g.Wait()
	printSummary(results)
	return err
}

func printSummary(results []Result) {
	fmt.Println("\n=== Match summary ===")
	for _, r := range results {
		outcome := "-"
		switch {
		case r.Winner == "":
		case r.Winner == r.Team:
			outcome = "won"
		default:
			outcome = "lost"
		}
		fmt.Printf("%-12s team %-2s claims %-3d %s\n", r.UserID, r.Team, r.Claims, outcome)
	}
}
