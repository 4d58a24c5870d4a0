// Package main provides a command-line controller for a running attune worker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/thebtf/attune/pkg/client"
	"github.com/thebtf/attune/pkg/models"
)

const usage = `usage: attunectl [--url URL] <command>

commands:
  status                   show the current session state
  start <activity>         start a session
  stop                     stop the session and archive it
  bio <heartRate> <stress> push a reading (stress: low|medium|high)
  history                  list archived sessions
`

func main() {
	url := flag.String("url", "", "Worker base URL (default: http://127.0.0.1:$ATTUNE_WORKER_PORT)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	c := client.NewLocal()
	if *url != "" {
		c = client.New(*url)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := run(ctx, c, flag.Args(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "attunectl: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid arguments")

func run(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "status":
		st, err := c.State(ctx)
		if err != nil {
			return err
		}
		printState(out, st)

	case "start":
		activity := strings.TrimSpace(strings.Join(args[1:], " "))
		if activity == "" {
			return fmt.Errorf("%w: start needs an activity", errUsage)
		}
		st, err := c.Start(ctx, activity)
		if err != nil {
			return err
		}
		printState(out, st)

	case "stop":
		rec, err := c.Stop(ctx)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Fprintln(out, "Session stopped (nothing archived)")
			return nil
		}
		fmt.Fprintf(out, "Session stopped, archived %s\n", rec.ID)

	case "bio":
		if len(args) != 3 {
			return fmt.Errorf("%w: bio needs <heartRate> <stress>", errUsage)
		}
		hr, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: heart rate %q", errUsage, args[1])
		}
		stress, err := models.ParseStressLevel(args[2])
		if err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		st, err := c.UpdateBio(ctx, hr, stress)
		if err != nil {
			return err
		}
		printState(out, st)

	case "history":
		records, err := c.History(ctx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No sessions yet")
			return nil
		}
		for _, r := range records {
			fmt.Fprintf(out, "%s  %-16s %3d bpm %-6s  %s\n",
				r.Timestamp, r.Activity, r.BioData.HeartRate, r.BioData.StressLevel, r.Recommendation.Insight.Title)
		}

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	return nil
}

func printState(out io.Writer, st *client.State) {
	if !st.Active {
		fmt.Fprintln(out, "No active session")
		return
	}
	fmt.Fprintf(out, "%s: %d bpm, %s stress [%s]\n", st.Bio.Activity, st.Bio.HeartRate, st.Bio.StressLevel, st.Phase)
	if st.Error != "" {
		fmt.Fprintf(out, "! %s\n", st.Error)
	}
	if st.Recommendation.IsPlaceholder() {
		return
	}
	fmt.Fprintf(out, "Music:   %s (%s)\n", st.Recommendation.Music.Description, st.Recommendation.Music.SoundscapeKey)
	fmt.Fprintf(out, "Insight: %s - %s\n", st.Recommendation.Insight.Title, st.Recommendation.Insight.Description)
}
