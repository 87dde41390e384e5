package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tomhatch/slotscope/pkg/availability"
	"github.com/tomhatch/slotscope/pkg/cache"
	"github.com/tomhatch/slotscope/pkg/client"
	"github.com/tomhatch/slotscope/pkg/directory"
	"github.com/tomhatch/slotscope/pkg/logging"
	"github.com/tomhatch/slotscope/pkg/pagination"
	"github.com/tomhatch/slotscope/pkg/render"
	"github.com/tomhatch/slotscope/pkg/timeslot"
)

var (
	baseURL       string
	practicePath  string
	practiceID    string
	facilityIDs   []string
	visitTypeName string
	days          int
	workers       int
	bucketMinutes int
	outputFile    string
	redisAddr     string
	logLevel      string
	pretty        bool
)

var rootCmd = &cobra.Command{
	Use:   "slotscope",
	Short: "Scan a practice's open appointment slots into an HTML calendar",
	Long: `slotscope bootstraps a session against the practice's scheduling API,
lists the providers of each configured facility, walks every provider's
paginated availability for the requested date window in parallel, and
renders the merged result as one HTML calendar table per facility.

A failing provider/date combination never aborts the scan; failures are
counted and reported at the end.

Examples:
  slotscope --visit-type sick --days 3 -o schedule.html
  slotscope --facility 13 --workers 4 --bucket-minutes 30 -o out.html`,
	RunE: runScan,
}

func init() {
	rootCmd.Flags().StringVar(&baseURL, "base-url", "https://healow.com/apps", "Scheduling API base URL")
	rootCmd.Flags().StringVar(&practicePath, "practice-path", "/practice/pediatric-associates-of-alexandria-inc-3187?v=1", "Practice landing page path (CSRF bootstrap)")
	rootCmd.Flags().StringVar(&practiceID, "practice-id", "9296", "Practice identifier (apu_id)")
	rootCmd.Flags().StringArrayVar(&facilityIDs, "facility", nil, "Facility ID to scan (repeatable, default: all configured)")
	rootCmd.Flags().StringVar(&visitTypeName, "visit-type", "sick", "Visit type name (sick, well)")
	rootCmd.Flags().IntVar(&days, "days", 3, "Consecutive calendar days to scan, starting today")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 8, "Concurrent provider/date walks")
	rootCmd.Flags().IntVar(&bucketMinutes, "bucket-minutes", timeslot.DefaultBucketMinutes, "Time bucket width in minutes")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "schedule.html", "Output HTML file")
	rootCmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for caching and the error budget (empty disables)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&pretty, "pretty", false, "Human-readable console logs")
}

func main() {
	if err := godotenv.Load(); err == nil {
		applyEnvDefaults()
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyEnvDefaults lets a .env file override flag defaults; explicit
// flags still win because cobra parses them after this runs.
func applyEnvDefaults() {
	if v := os.Getenv("SLOTSCOPE_BASE_URL"); v != "" {
		baseURL = v
	}
	if v := os.Getenv("SLOTSCOPE_PRACTICE_PATH"); v != "" {
		practicePath = v
	}
	if v := os.Getenv("SLOTSCOPE_PRACTICE_ID"); v != "" {
		practiceID = v
	}
	if v := os.Getenv("SLOTSCOPE_REDIS_ADDR"); v != "" {
		redisAddr = v
	}
	if v := os.Getenv("SLOTSCOPE_LOG_LEVEL"); v != "" {
		logLevel = v
	}
}

// defaultRegistry holds the practice's known facilities and visit
// types. Immutable after construction; flags select from it.
func defaultRegistry() (*directory.Registry, error) {
	return directory.NewRegistry(practiceID, []directory.Facility{
		{ID: "1", Name: "Springfield - 6355 Walker Lane", Zip: "22310", Location: "Alexandria,+VA"},
		{ID: "13", Name: "Potomac Yard - 3600 S. Glebe Rd", Zip: "22202", Location: "Arlington,+VA"},
		{ID: "20", Name: "Duke St - 2747 Duke St", Zip: "22314", Location: "Alexandria,+VA"},
	}, map[string]directory.VisitType{
		"sick": {Code: "SICK", ReasonID: "188344"},
		"well": {Code: "WELL", ReasonID: "43397"},
	})
}

func runScan(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Pretty: pretty,
		Output: os.Stderr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fullRegistry, err := defaultRegistry()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	registry, err := selectFacilities(fullRegistry)
	if err != nil {
		return err
	}
	visitType, ok := registry.VisitType(visitTypeName)
	if !ok {
		return fmt.Errorf("unknown visit type %q (have: %v)", visitTypeName, registry.VisitTypeNames())
	}

	var redisClient *redis.Client
	if redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis at %s: %w", redisAddr, err)
		}
		defer redisClient.Close()
		logger.Info().Str("redis", redisAddr).Msg("Connected to Redis")
	}

	cfg := client.DefaultConfig(baseURL, practicePath)
	cfg.Redis = redisClient
	apiClient, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	if err := apiClient.Bootstrap(ctx); err != nil {
		return fmt.Errorf("session bootstrap: %w", err)
	}

	var cacheManager *cache.Manager
	if redisClient != nil {
		cacheManager = cache.NewManager(redisClient)
	}
	dir := directory.NewService(apiClient, registry, cacheManager, logger)
	providers, err := dir.ListAllProviders(ctx)
	if err != nil {
		return fmt.Errorf("provider directory: %w", err)
	}
	if len(providers) == 0 {
		return fmt.Errorf("no providers listed for facilities %v", facilityIDs)
	}

	dates := dateWindow(time.Now(), days)

	walkerConfig := pagination.DefaultWalkerConfig()
	walkerConfig.PracticeID = registry.PracticeID
	walkerConfig.VisitType = "1"
	walkerConfig.VisitCode = visitType.Code
	walkerConfig.VisitReasonID = visitType.ReasonID
	walker := pagination.NewWalker(apiClient, walkerConfig)

	schedulerConfig := pagination.DefaultSchedulerConfig()
	schedulerConfig.MaxConcurrency = workers
	scheduler := pagination.NewScheduler(walker, schedulerConfig)

	results := scheduler.Run(ctx, providers, dates)

	builder := availability.NewBuilder(bucketMinutes)
	failures := 0
	for _, result := range results {
		if result.Failed() {
			failures++
			continue
		}
		if err := builder.Add(result.Provider, result.Slots); err != nil {
			logger.Warn().Err(err).
				Str("npi", result.Provider.NPI).
				Str("date", result.Date).
				Msg("Dropping task with malformed slot times")
			failures++
		}
	}

	index := builder.Index()
	merged, dropped := builder.Stats()
	logger.Info().
		Int("tasks", len(results)).
		Int("failures", failures).
		Int("slots_merged", merged).
		Int("duplicates_dropped", dropped).
		Int("index_keys", len(index)).
		Msg("Scan complete")

	renderConfig := render.DefaultConfig()
	renderConfig.BucketMinutes = bucketMinutes
	renderer, err := render.New(registry, renderConfig)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()
	if err := renderer.Render(out, index, dates); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Wrote %s (%d tasks, %d failures)\n", outputFile, len(results), failures)

	// Partial failure is expected and does not fail the run.
	return nil
}

// selectFacilities narrows the registry to the --facility flags, or
// returns it unchanged when none were given.
func selectFacilities(registry *directory.Registry) (*directory.Registry, error) {
	if len(facilityIDs) == 0 {
		return registry, nil
	}
	selected := make([]directory.Facility, 0, len(facilityIDs))
	for _, id := range facilityIDs {
		facility, ok := registry.Facility(id)
		if !ok {
			return nil, fmt.Errorf("unknown facility ID %q", id)
		}
		selected = append(selected, facility)
	}
	visitTypes := make(map[string]directory.VisitType)
	for _, name := range registry.VisitTypeNames() {
		vt, _ := registry.VisitType(name)
		visitTypes[name] = vt
	}
	return directory.NewRegistry(registry.PracticeID, selected, visitTypes)
}

// dateWindow returns n consecutive days starting at from, YYYY-MM-DD.
func dateWindow(from time.Time, n int) []string {
	if n < 1 {
		n = 1
	}
	dates := make([]string, n)
	for i := 0; i < n; i++ {
		dates[i] = from.AddDate(0, 0, i).Format("2006-01-02")
	}
	return dates
}
