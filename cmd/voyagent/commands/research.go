package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/voyagent/voyagent/config"
	"github.com/voyagent/voyagent/errors"
	"github.com/voyagent/voyagent/logger"
	"github.com/voyagent/voyagent/metrics"
	"github.com/voyagent/voyagent/rank"
	"github.com/voyagent/voyagent/research"
)

// ResearchCmd groups the research job operations
var ResearchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run and track travel research jobs",
	Long: `Run long-running travel research jobs against the backend.

A job is submitted once and then tracked live over a WebSocket channel
with automatic reconnect; when the channel cannot be restored the
tracker falls back to status polling. Once the job completes, ranked
recommendations are printed.

Example:
  voyagent research run --origin London --from 2025-06-01 --to 2025-06-10 --interests culture
  voyagent research status 3f2a9c
  voyagent research results 3f2a9c --top 3
  voyagent research cancel 3f2a9c`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ResearchRunCmd submits a job and tracks it to a terminal state
var ResearchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Submit a research job and follow it live",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		prefs, err := prefsFromFlags(cmd)
		if err != nil {
			return err
		}

		client := research.NewClient(cfg.Backend)
		dialer, err := research.NewWSDialer(cfg.Backend.BaseURL)
		if err != nil {
			return err
		}
		coord := research.NewCoordinator(client, dialer, cfg, logger.Logger, metrics.NewCollector(nil))
		defer coord.Close()

		job, err := coord.Start(cmd.Context(), prefs)
		if err != nil {
			return err
		}
		fmt.Printf("Research job %s submitted\n", job.ID)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		final, err := followJob(cmd.Context(), coord, sigChan)
		if err != nil {
			return err
		}
		if final.Status != research.StatusCompleted {
			return nil
		}

		raw, err := coord.Results(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "job completed but results could not be retrieved")
		}

		topN, _ := cmd.Flags().GetInt("top")
		if topN <= 0 {
			topN = cfg.Recommend.TopN
		}
		report, err := rank.Aggregate(raw, prefs, topN)
		if err != nil {
			return errors.Wrap(err, "failed to aggregate results")
		}
		printReport(report)
		return nil
	},
}

// followJob prints activity as it arrives and returns the terminal
// snapshot. Interrupt cancels the job before returning.
func followJob(ctx context.Context, coord *research.Coordinator, sigChan <-chan os.Signal) (research.Job, error) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	printed := 0
	wasConnected := true
	for {
		select {
		case <-sigChan:
			fmt.Println("\nCancelling research job...")
			cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			coord.Cancel(cancelCtx)
			cancel()
			return coord.Job(), nil

		case <-ctx.Done():
			return coord.Job(), ctx.Err()

		case <-ticker.C:
			entries := coord.Activity()
			for ; printed < len(entries); printed++ {
				printEntry(entries[printed])
			}

			connected := coord.IsConnected()
			if wasConnected && !connected {
				if err := coord.ConnectionError(); err != nil {
					fmt.Printf("  ! connection lost: %v\n", err)
				}
			}
			wasConnected = connected

			if job := coord.Job(); job.Status.Terminal() {
				// Drain any entries appended by the final message.
				for _, e := range coord.Activity()[printed:] {
					printEntry(e)
				}
				fmt.Printf("Job %s finished: %s\n", job.ID, job.Status)
				if job.Error != "" {
					fmt.Printf("  error: %s\n", job.Error)
				}
				return job, nil
			}
		}
	}
}

func printEntry(e research.Entry) {
	ts := e.Timestamp.Local().Format("15:04:05")
	switch {
	case e.Percentage != nil:
		pterm.Printf("  [%s] %s  %s\n", pterm.Gray(ts), pterm.LightCyan(fmt.Sprintf("%3d%%", *e.Percentage)), e.Message)
	case e.Kind == research.EntryFailed || e.Kind == research.EntryError || e.Kind == research.EntryProtocolError:
		pterm.Printf("  [%s] %s: %s\n", pterm.Gray(ts), pterm.Red(string(e.Kind)), e.Message)
	default:
		pterm.Printf("  [%s] %s: %s\n", pterm.Gray(ts), pterm.LightCyan(string(e.Kind)), e.Message)
	}
}

func printReport(report *rank.Report) {
	pterm.Println()
	pterm.DefaultSection.Println("Recommendations")
	for _, rec := range report.Recommendations {
		pterm.Printf("%d. %s %s\n", rec.Rank, pterm.Bold.Sprint(rec.Destination),
			pterm.Green(fmt.Sprintf("(score %.0f)", rec.Score)))
		for _, reason := range rec.Reasons {
			pterm.Printf("   - %s\n", reason)
		}
		if len(rec.Highlights.TopAttractions) > 0 {
			pterm.Printf("   See: %s\n", strings.Join(rec.Highlights.TopAttractions, ", "))
		}
		if rec.Highlights.FlightFrom != nil {
			pterm.Printf("   Flights from $%.0f\n", *rec.Highlights.FlightFrom)
		}
		if rec.Highlights.HotelFrom != nil {
			pterm.Printf("   Hotels from $%.0f/night\n", *rec.Highlights.HotelFrom)
		}
	}

	if len(report.Comparison) > 1 {
		rows := pterm.TableData{{"Destination", "Score", "Temp °C", "Visa", "Attractions", "Budget", "Events"}}
		for _, row := range report.Comparison {
			rows = append(rows, []string{
				row.Name,
				fmt.Sprintf("%.0f", row.OverallScore),
				formatTemp(row.TemperatureC),
				formatVisa(row.VisaRequired),
				fmt.Sprintf("%d", row.AttractionsCount),
				row.BudgetFit,
				fmt.Sprintf("%d", row.EventsCount),
			})
		}
		pterm.Println()
		pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	}

	if len(report.Errors) > 0 {
		pterm.Println()
		pterm.Println(pterm.Yellow("Not researched:"))
		for _, de := range report.Errors {
			pterm.Printf("  - %s: %s\n", de.Name, de.Error)
		}
	}
}

func formatTemp(t *float64) string {
	if t == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f", *t)
}

func formatVisa(required *bool) string {
	if required == nil {
		return "-"
	}
	if *required {
		return "required"
	}
	return "not required"
}

func prefsFromFlags(cmd *cobra.Command) (research.Preferences, error) {
	origin, _ := cmd.Flags().GetString("origin")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	destinations, _ := cmd.Flags().GetStringSlice("destinations")
	interests, _ := cmd.Flags().GetStringSlice("interests")
	budget, _ := cmd.Flags().GetString("budget")
	travelingWith, _ := cmd.Flags().GetString("traveling-with")
	passport, _ := cmd.Flags().GetString("passport")
	pace, _ := cmd.Flags().GetString("pace")

	prefs := research.Preferences{
		Origin:          origin,
		TravelStart:     from,
		TravelEnd:       to,
		Destinations:    destinations,
		Interests:       interests,
		BudgetLevel:     budget,
		TravelingWith:   travelingWith,
		PassportCountry: passport,
		PacePreference:  pace,
	}
	if err := prefs.Validate(); err != nil {
		return research.Preferences{}, err
	}
	return prefs, nil
}

// ResearchStatusCmd fetches the backend's view of a job
var ResearchStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show current status of a research job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		client := research.NewClient(cfg.Backend)
		job, err := client.Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			out, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}

		fmt.Printf("Job:      %s\n", job.ID)
		fmt.Printf("Status:   %s\n", job.Status)
		fmt.Printf("Progress: %d%%\n", job.ProgressPercentage)
		if job.CurrentStep != "" {
			fmt.Printf("Step:     %s\n", job.CurrentStep)
		}
		if job.Error != "" {
			fmt.Printf("Error:    %s\n", job.Error)
		}
		return nil
	},
}

// ResearchResultsCmd fetches and ranks results for a completed job
var ResearchResultsCmd = &cobra.Command{
	Use:   "results <job-id>",
	Short: "Show ranked recommendations for a completed job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		client := research.NewClient(cfg.Backend)
		raw, err := client.Results(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		topN, _ := cmd.Flags().GetInt("top")
		if topN <= 0 {
			topN = cfg.Recommend.TopN
		}
		report, err := rank.Aggregate(raw, research.Preferences{}, topN)
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

// ResearchCancelCmd asks the backend to cancel a job
var ResearchCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a research job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		client := research.NewClient(cfg.Backend)
		if err := client.CancelJob(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Job %s cancelled\n", args[0])
		return nil
	},
}

func init() {
	ResearchRunCmd.Flags().String("origin", "", "Departure city (required)")
	ResearchRunCmd.Flags().String("from", "", "Travel start date, YYYY-MM-DD (required)")
	ResearchRunCmd.Flags().String("to", "", "Travel end date, YYYY-MM-DD (required)")
	ResearchRunCmd.Flags().StringSlice("destinations", nil, "Candidate destinations (omit to let the backend suggest)")
	ResearchRunCmd.Flags().StringSlice("interests", nil, "Interests, e.g. culture,food,nightlife")
	ResearchRunCmd.Flags().String("budget", "moderate", "Budget tier: low, moderate, high, luxury")
	ResearchRunCmd.Flags().String("traveling-with", "solo", "Travel party: solo, couple, family, group")
	ResearchRunCmd.Flags().String("passport", "", "Passport country for visa checks")
	ResearchRunCmd.Flags().String("pace", "moderate", "Trip pace: relaxed, moderate, busy")
	ResearchRunCmd.Flags().Int("top", 0, "Number of recommendations to print")

	ResearchStatusCmd.Flags().BoolP("json", "j", false, "Output status as JSON")
	ResearchResultsCmd.Flags().Int("top", 0, "Number of recommendations to print")

	ResearchCmd.AddCommand(ResearchRunCmd)
	ResearchCmd.AddCommand(ResearchStatusCmd)
	ResearchCmd.AddCommand(ResearchResultsCmd)
	ResearchCmd.AddCommand(ResearchCancelCmd)
}
