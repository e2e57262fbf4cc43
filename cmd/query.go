package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/chadmayfield/sensord/internal/domain"
	"github.com/chadmayfield/sensord/internal/service"
	"github.com/spf13/cobra"
)

var (
	qSensors   []string
	qMetrics   []string
	qStatistic string
	qFrom      string
	qTo        string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run an aggregate metric query directly against the store",
	Long: `query computes a statistic over stored readings without going through the
HTTP API. Without --from or --to each sensor's latest reading is used; with only
one of them the range is widened to 31 days.`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVar(&qSensors, "sensor", nil, "sensor ID to include (repeatable, default: all sensors)")
	queryCmd.Flags().StringSliceVar(&qMetrics, "metric", nil, "metric type: temperature or humidity (repeatable)")
	queryCmd.Flags().StringVar(&qStatistic, "statistic", "", "statistic: min, max, avg or sum")
	queryCmd.Flags().StringVar(&qFrom, "from", "", "start date (YYYY-MM-DD or RFC3339)")
	queryCmd.Flags().StringVar(&qTo, "to", "", "end date (YYYY-MM-DD or RFC3339)")
	_ = queryCmd.MarkFlagRequired("metric")
	_ = queryCmd.MarkFlagRequired("statistic")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(qSensors, qMetrics, qStatistic, qFrom, qTo)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resp, err := service.NewMetricService(s, s, slog.Default()).Query(ctx, q)
	if err != nil {
		return err
	}
	printQueryResponse(cmd.OutOrStdout(), resp)
	return nil
}

// buildQuery turns flag values into a MetricQuery. Leaving out --sensor
// queries every registered sensor.
func buildQuery(sensors, metrics []string, statistic, from, to string) (service.MetricQuery, error) {
	q := service.MetricQuery{SensorIDs: sensors}
	if len(sensors) == 0 {
		q.SensorIDs = nil
	}

	for _, m := range metrics {
		mt, err := domain.ParseMetricType(m)
		if err != nil {
			return q, err
		}
		q.Metrics = append(q.Metrics, mt)
	}

	stat, err := domain.ParseStatistic(statistic)
	if err != nil {
		return q, err
	}
	q.Statistic = stat

	if from != "" {
		t, err := parseDateFlag(from)
		if err != nil {
			return q, fmt.Errorf("invalid --from date: %w", err)
		}
		q.StartDate = &t
	}
	if to != "" {
		t, err := parseDateFlag(to)
		if err != nil {
			return q, fmt.Errorf("invalid --to date: %w", err)
		}
		q.EndDate = &t
	}
	return q, nil
}

func parseDateFlag(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func printQueryResponse(w io.Writer, resp *service.QueryResponse) {
	q := resp.Query
	if q.Latest() {
		fmt.Fprintf(w, "%s of latest readings\n", q.Statistic)
	} else {
		fmt.Fprintf(w, "%s from %s to %s\n", q.Statistic, q.StartDate.Format(time.RFC3339), q.EndDate.Format(time.RFC3339))
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "no data")
		return
	}
	for _, r := range resp.Results {
		fmt.Fprintf(w, "  %-24s %-12s %10.2f\n", r.SensorID, r.Metric, r.Stat.Value)
	}
}
