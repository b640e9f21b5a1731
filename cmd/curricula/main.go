// curricula is a command-line tool for inspecting and exercising curriculum
// configurations: validate a config file, show the current lesson state of a
// run, or simulate a training run against a synthetic reward trace.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geotyper/ml-agents/internal/config"
	"github.com/geotyper/ml-agents/internal/curriculum"
	"github.com/geotyper/ml-agents/internal/metrics"
	"github.com/geotyper/ml-agents/internal/notify"
	"github.com/geotyper/ml-agents/internal/status"
	"github.com/geotyper/ml-agents/internal/telemetry"
)

const version = "1.0.0"

var (
	runSeed     int64
	restore     bool
	runID       string
	statusFile  string
	redisURL    string
	postgresDSN string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "curricula",
		Short:   "Curriculum learning tools for RL training runs",
		Version: version,
	}

	rootCmd.PersistentFlags().Int64Var(&runSeed, "seed", 0, "Run seed for deterministic sampler seed assignment")
	rootCmd.PersistentFlags().BoolVar(&restore, "restore", false, "Restore lesson indices from the status store")
	rootCmd.PersistentFlags().StringVar(&runID, "run-id", "", "Run identifier (default: random)")
	rootCmd.PersistentFlags().StringVar(&statusFile, "status-file", "", "Persist lesson state to a JSON status file")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis-url", "", "Persist lesson state to Redis (redis:// URL)")
	rootCmd.PersistentFlags().StringVar(&postgresDSN, "postgres-dsn", "", "Persist lesson state to Postgres")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newLessonsCommand())
	rootCmd.AddCommand(newSimulateCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore picks a status backend from the persistence flags; in-memory
// when none is set.
func openStore() (status.Store, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	switch {
	case statusFile != "":
		return status.NewFileStore(statusFile)
	case redisURL != "":
		return status.NewRedisStore(redisURL, runID)
	case postgresDSN != "":
		return status.NewPostgresStore(postgresDSN, runID)
	}
	return status.NewMemoryStore(), nil
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode output: %v", err)
	}
	fmt.Println(string(data))
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a curriculum configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := config.Load(args[0])
			if err != nil {
				return err
			}
			manager, err := curriculum.New(specs, runSeed, false, status.NewMemoryStore())
			if err != nil {
				return err
			}

			type parameterSummary struct {
				Parameter string   `json:"parameter"`
				Lessons   int      `json:"lessons"`
				Behaviors []string `json:"behaviors,omitempty"`
			}
			summary := make([]parameterSummary, 0, len(specs))
			for _, spec := range specs {
				p := parameterSummary{Parameter: spec.Name, Lessons: len(spec.Lessons)}
				seen := map[string]bool{}
				for _, lesson := range spec.Lessons {
					if lesson.Criteria != nil && !seen[lesson.Criteria.Behavior] {
						seen[lesson.Criteria.Behavior] = true
						p.Behaviors = append(p.Behaviors, lesson.Criteria.Behavior)
					}
				}
				summary = append(summary, p)
			}
			printJSON(map[string]interface{}{
				"valid":      true,
				"parameters": summary,
				"min_reward_buffer": func() map[string]int {
					sizes := map[string]int{}
					for _, p := range summary {
						for _, b := range p.Behaviors {
							sizes[b] = manager.GetMinimumRewardBufferSize(b)
						}
					}
					return sizes
				}(),
			})
			return nil
		},
	}
}

func newLessonsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lessons <config.yaml>",
		Short: "Show the current lesson state for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := config.Load(args[0])
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			manager, err := curriculum.New(specs, runSeed, restore, store)
			if err != nil {
				return err
			}

			numbers, err := manager.GetCurrentLessonNumber()
			if err != nil {
				return err
			}
			samplerMap, err := manager.GetCurrentSamplers()
			if err != nil {
				return err
			}

			type lessonState struct {
				Parameter string `json:"parameter"`
				LessonNum int    `json:"lesson_num"`
				Lesson    string `json:"lesson"`
				Sampler   string `json:"sampler"`
			}
			result := make([]lessonState, 0, len(specs))
			for _, spec := range specs {
				num := numbers[spec.Name]
				result = append(result, lessonState{
					Parameter: spec.Name,
					LessonNum: num,
					Lesson:    spec.Lessons[num].Name,
					Sampler:   samplerMap[spec.Name].String(),
				})
			}
			printJSON(result)
			return nil
		},
	}
}

func newSimulateCommand() *cobra.Command {
	var (
		steps        int64
		maxSteps     int64
		rewardStart  float64
		rewardEnd    float64
		natsURL      string
		otelEndpoint string
		metricsAddr  string
	)

	cmd := &cobra.Command{
		Use:   "simulate <config.yaml>",
		Short: "Drive a curriculum with a synthetic training run",
		Long: `Simulate feeds the curriculum manager a synthetic training run: step
counters advance linearly and per-behavior rewards ramp from --reward-start
to --reward-end. Lesson transitions are logged and summarized.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			specs, err := config.Load(args[0])
			if err != nil {
				return err
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			manager, err := curriculum.New(specs, runSeed, restore, store)
			if err != nil {
				return err
			}

			manager.SetMetrics(metrics.NewMetrics())
			if metricsAddr != "" {
				go func() {
					http.Handle("/metrics", promhttp.Handler())
					if err := http.ListenAndServe(metricsAddr, nil); err != nil {
						log.Printf("[Simulate] metrics server stopped: %v", err)
					}
				}()
			}

			if natsURL != "" {
				publisher, err := notify.NewPublisher(natsURL, runID)
				if err != nil {
					return fmt.Errorf("failed to connect to NATS: %w", err)
				}
				defer publisher.Close()
				manager.SetNotifier(publisher)
			}

			var span trace.Span
			if otelEndpoint != "" {
				shutdown, err := telemetry.InitTelemetry(ctx, "curricula-simulate", otelEndpoint)
				if err != nil {
					return fmt.Errorf("failed to initialize telemetry: %w", err)
				}
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("[Simulate] telemetry shutdown: %v", err)
					}
				}()
				ctx, span = telemetry.Tracer.Start(ctx, "simulate",
					trace.WithAttributes(attribute.Int64("run.seed", runSeed)))
				defer span.End()
			}

			// Collect every behavior referenced by any criteria and size its
			// reward buffer the way a trainer would.
			behaviors := map[string]int{}
			for _, spec := range specs {
				for _, lesson := range spec.Lessons {
					if lesson.Criteria != nil {
						behaviors[lesson.Criteria.Behavior] = manager.GetMinimumRewardBufferSize(lesson.Criteria.Behavior)
					}
				}
			}

			buffers := map[string][]float64{}
			trainerMaxSteps := map[string]int64{}
			for behavior, size := range behaviors {
				buffers[behavior] = make([]float64, 0, size)
				trainerMaxSteps[behavior] = maxSteps
			}

			transitions := 0
			resets := 0
			for step := int64(1); step <= steps; step++ {
				frac := float64(step) / float64(steps)
				reward := rewardStart + (rewardEnd-rewardStart)*frac
				trainerSteps := map[string]int64{}
				for behavior, size := range behaviors {
					buf := append(buffers[behavior], reward)
					if len(buf) > size {
						buf = buf[len(buf)-size:]
					}
					buffers[behavior] = buf
					trainerSteps[behavior] = step
				}

				updated, mustReset, err := manager.UpdateLessons(trainerSteps, trainerMaxSteps, buffers)
				if err != nil {
					return err
				}
				if updated {
					transitions++
					if span != nil {
						span.AddEvent("lesson.advanced",
							trace.WithAttributes(attribute.Int64("step", step)))
					}
				}
				if mustReset {
					resets++
				}
			}

			numbers, err := manager.GetCurrentLessonNumber()
			if err != nil {
				return err
			}
			printJSON(map[string]interface{}{
				"steps":         steps,
				"transitions":   transitions,
				"resets":        resets,
				"final_lessons": numbers,
			})
			return nil
		},
	}

	cmd.Flags().Int64Var(&steps, "steps", 1000, "Number of training steps to simulate")
	cmd.Flags().Int64Var(&maxSteps, "max-steps", 1000, "Trainer max step count")
	cmd.Flags().Float64Var(&rewardStart, "reward-start", 0, "Reward at the first step")
	cmd.Flags().Float64Var(&rewardEnd, "reward-end", 1, "Reward at the last step")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "Publish lesson-change events to NATS")
	cmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "Export traces to an OTLP/gRPC endpoint")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}
