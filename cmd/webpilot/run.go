package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/webpilot-ai/webpilot/llm"
	"github.com/webpilot-ai/webpilot/taskloop"
	"github.com/webpilot-ai/webpilot/workflow"
)

var runFlags struct {
	configPath    string
	model         string
	mode          string
	workflowDir   string
	snapshotFile  string
	maxIterations int
}

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Execute a task",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTask,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.configPath, "config", "c", "", "path to a YAML config file")
	f.StringVarP(&runFlags.model, "model", "m", "", "model to drive the loop")
	f.StringVar(&runFlags.mode, "mode", "dynamic", "execution mode: dynamic or predefined")
	f.StringVarP(&runFlags.workflowDir, "workflows", "w", "", "directory of workflow YAML files")
	f.StringVarP(&runFlags.snapshotFile, "snapshot-file", "s", "", "file holding the current browser state")
	f.IntVar(&runFlags.maxIterations, "max-iterations", 0, "override the iteration cap")
}

func loadRunConfig() (taskloop.Config, error) {
	cfg := taskloop.DefaultConfig()
	if runFlags.configPath != "" {
		loaded, err := taskloop.LoadConfig(runFlags.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := taskloop.FromEnv(&cfg); err != nil {
		return cfg, err
	}
	if runFlags.model != "" {
		cfg.Model = runFlags.model
	}
	if runFlags.maxIterations > 0 {
		cfg.MaxIterations = runFlags.maxIterations
	}
	return cfg, cfg.Validate()
}

func runTask(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}

	mode := taskloop.ExecutionMode(runFlags.mode)
	if mode != taskloop.ModeDynamic && mode != taskloop.ModePredefined {
		return fmt.Errorf("unknown mode %q", runFlags.mode)
	}

	client := llm.NewClientFromEnv()
	defer client.Close()

	opts := []taskloop.SessionOption{}
	if runFlags.snapshotFile != "" {
		opts = append(opts, taskloop.WithSnapshotter(taskloop.NewFileSnapshotter(runFlags.snapshotFile)))
	}
	if runFlags.workflowDir != "" {
		lib := workflow.NewLibrary()
		if err := lib.LoadDir(runFlags.workflowDir); err != nil {
			return err
		}
		opts = append(opts, taskloop.WithWorkflowLibrary(lib))
	}

	session, err := taskloop.NewSession(client, cfg, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		displayEvents(session)
	}()

	outcome, err := session.Execute(ctx, goal, mode)
	session.Close()
	wg.Wait()
	if err != nil {
		return err
	}

	printOutcome(outcome)
	if outcome.Status != taskloop.RunCompleted || !outcome.Success {
		os.Exit(1)
	}
	return nil
}

// displayEvents renders the session event stream and feeds human-input
// responses back from stdin.
func displayEvents(session *taskloop.Session) {
	dim := color.New(color.Faint)
	toolColor := color.New(color.FgCyan)
	warnColor := color.New(color.FgYellow)

	for ev := range session.Events() {
		switch ev.Kind {
		case taskloop.EventThinkingDelta:
			if delta, ok := ev.Data["delta"].(string); ok {
				dim.Print(delta)
			}
		case taskloop.EventToolCallStart:
			fmt.Println()
			toolColor.Printf("> %v\n", ev.Data["tool"])
		case taskloop.EventToolCallEnd:
			if ok, _ := ev.Data["ok"].(bool); !ok {
				warnColor.Printf("  failed: %v\n", ev.Data["error"])
			}
		case taskloop.EventHumanInputRequested:
			promptHumanInput(session, ev)
		case taskloop.EventOutputSuppressed:
			warnColor.Println("  (model output withheld)")
		case taskloop.EventLoopDetected:
			warnColor.Println("  (repetitive behavior detected, nudging the model)")
		case taskloop.EventHistoryCompacted:
			dim.Printf("  (history %v-%v summarized)\n", ev.Data["from_iteration"], ev.Data["to_iteration"])
		}
	}
}

func promptHumanInput(session *taskloop.Session, ev taskloop.SessionEvent) {
	id, _ := ev.Data["request_id"].(string)
	prompt, _ := ev.Data["prompt"].(string)

	fmt.Println()
	color.New(color.FgMagenta, color.Bold).Printf("USER ACTION NEEDED: %s\n", prompt)
	fmt.Print("Press Enter when done, or type 'abort' to stop: ")

	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		action := taskloop.ActionDone
		if err != nil || strings.TrimSpace(strings.ToLower(line)) == "abort" {
			action = taskloop.ActionAbort
		}
		session.RespondHumanInput(id, action)
	}()
}

func printOutcome(outcome taskloop.RunOutcome) {
	fmt.Println()
	switch outcome.Status {
	case taskloop.RunCompleted:
		if outcome.Success {
			color.Green("✓ completed in %d iterations: %s", outcome.Iterations, outcome.Message)
		} else {
			color.Yellow("✗ finished unsuccessfully after %d iterations: %s", outcome.Iterations, outcome.Message)
		}
	case taskloop.RunCancelled:
		color.Yellow("cancelled after %d iterations", outcome.Iterations)
	default:
		color.Red("%s after %d iterations: %s", outcome.Status, outcome.Iterations, outcome.Reason)
	}
}
