package reports

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/sthembisoo/reportit/bridge"
	"github.com/sthembisoo/reportit/config"
	"github.com/sthembisoo/reportit/report"
)

const (
	requestTimeout = 10 * time.Second
	messageWidth   = 80
)

var (
	flagStorePath string
	flagServer    string
	flagScope     string
	flagType      string
	flagThread    string
	flagLimit     int
	flagID        string
	flagJSON      bool
	flagList      bool
)

func NewCmdReports() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse stored exception reports",
		Long: `Browse stored exception reports.

This command will:
1. Load reports from a SQLite store or a running collector
2. Group them by exception type and message
3. Let you select a group
4. Print the most recent report of that group

Examples:
  # Interactive mode against the default store
  reportit reports

  # Reports from a collector started with "reportit serve --store ..."
  reportit reports --server http://localhost:7331

  # Only worker failures, printed without prompting
  reportit reports --scope worker --list

  # A single report as JSON
  reportit reports --id 0f8c... --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context(), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&flagStorePath, "store", "s", config.DefaultStorePath, "Path to the SQLite report store")
	cmd.Flags().StringVar(&flagServer, "server", "", "Collector base URL (overrides --store)")
	cmd.Flags().StringVar(&flagScope, "scope", "", "Only reports with this scope")
	cmd.Flags().StringVar(&flagType, "type", "", "Only reports with this exception type")
	cmd.Flags().StringVar(&flagThread, "thread", "", "Only reports raised on this thread")
	cmd.Flags().IntVarP(&flagLimit, "limit", "n", 100, "Maximum number of reports to load (0 for all)")
	cmd.Flags().StringVar(&flagID, "id", "", "Print a single report")
	cmd.Flags().BoolVar(&flagJSON, "json", false, "Print reports as JSON")
	cmd.Flags().BoolVarP(&flagList, "list", "l", false, "List groups without prompting")

	return cmd
}

// Source loads reports from a store or a collector
type Source interface {
	Query(ctx context.Context, q bridge.ReportQuery) ([]*report.Report, error)
	Get(ctx context.Context, id string) (*report.Report, error)
}

// Group is a set of reports sharing exception type and message
type Group struct {
	Type    string
	Message string
	Reports []*report.Report // newest first
}

// Latest returns the most recent report of the group
func (g Group) Latest() *report.Report {
	return g.Reports[0]
}

func start(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	source, closeSource, err := openSource()
	if err != nil {
		return err
	}
	defer closeSource()

	if flagID != "" {
		rep, err := source.Get(ctx, flagID)
		if err != nil {
			return fmt.Errorf("error fetching report: %w", err)
		}
		return printReport(out, rep)
	}

	reports, err := source.Query(ctx, bridge.ReportQuery{
		Scope:  flagScope,
		Type:   flagType,
		Thread: flagThread,
		Limit:  flagLimit,
	})
	if err != nil {
		return fmt.Errorf("error fetching reports: %w", err)
	}

	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports found.")
		return nil
	}

	groups := GroupReports(reports)

	if flagList {
		listGroups(out, groups)
		return nil
	}

	selected, err := chooseGroup(in, out, groups)
	if err != nil {
		return fmt.Errorf("error selecting report group: %w", err)
	}

	fmt.Fprintf(out, "\nMost recent of %d occurrences:\n\n", len(selected.Reports))
	return printReport(out, selected.Latest())
}

func openSource() (Source, func(), error) {
	if flagServer != "" {
		return NewCollectorSource(flagServer), func() {}, nil
	}

	if _, err := os.Stat(flagStorePath); os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("report store not found: %s", flagStorePath)
	}
	store, err := bridge.NewStoreBridge(bridge.StoreConfig{Path: flagStorePath})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open report store: %w", err)
	}
	return store, func() { store.Close() }, nil
}

// GroupReports groups reports by exception type and message. Groups are
// ordered by occurrence count, then by most recent report.
func GroupReports(reports []*report.Report) []Group {
	keyed := lo.GroupBy(reports, func(r *report.Report) string {
		return r.ExceptionType + "\x00" + r.ExceptionMessage
	})

	groups := lo.MapToSlice(keyed, func(_ string, rs []*report.Report) Group {
		sort.SliceStable(rs, func(i, j int) bool {
			return rs[i].Timestamp > rs[j].Timestamp
		})
		return Group{
			Type:    rs[0].ExceptionType,
			Message: rs[0].ExceptionMessage,
			Reports: rs,
		}
	})

	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Reports) != len(groups[j].Reports) {
			return len(groups[i].Reports) > len(groups[j].Reports)
		}
		return groups[i].Latest().Timestamp > groups[j].Latest().Timestamp
	})
	return groups
}

func listGroups(out io.Writer, groups []Group) {
	for i, g := range groups {
		// Truncate message if too long
		msg := g.Message
		if len(msg) > messageWidth {
			msg = msg[:messageWidth-3] + "..."
		}
		scopes := lo.Uniq(lo.FilterMap(g.Reports, func(r *report.Report, _ int) (string, bool) {
			return r.Scope, r.Scope != ""
		}))

		line := fmt.Sprintf("  %d. [%d occurrences] %s: %s", i+1, len(g.Reports), g.Type, msg)
		if len(scopes) > 0 {
			line += fmt.Sprintf(" (scopes: %s)", strings.Join(scopes, ", "))
		}
		fmt.Fprintln(out, line)
	}
}

// chooseGroup prompts the user to select a group
func chooseGroup(in io.Reader, out io.Writer, groups []Group) (*Group, error) {
	fmt.Fprintln(out, "Report groups:")
	listGroups(out, groups)

	fmt.Fprint(out, "\nSelect group number: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("invalid selection: %w", err)
	}

	selection, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return nil, fmt.Errorf("invalid selection: %w", err)
	}

	if selection < 1 || selection > len(groups) {
		return nil, fmt.Errorf("selection out of range")
	}

	return &groups[selection-1], nil
}

func printReport(out io.Writer, rep *report.Report) error {
	if !flagJSON {
		_, err := io.WriteString(out, rep.Text())
		return err
	}

	data, err := rep.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// CollectorSource reads reports from the /reports endpoints of a collector
type CollectorSource struct {
	client  *resty.Client
	baseURL string
}

// NewCollectorSource creates a source for the collector at baseURL
func NewCollectorSource(baseURL string) *CollectorSource {
	return &CollectorSource{
		client: resty.New().
			SetTimeout(requestTimeout).
			SetHeader("Accept", "application/json"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Query fetches reports matching q
func (s *CollectorSource) Query(ctx context.Context, q bridge.ReportQuery) ([]*report.Report, error) {
	params := lo.OmitByValues(map[string]string{
		"scope":  q.Scope,
		"type":   q.Type,
		"thread": q.Thread,
	}, []string{""})
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(s.baseURL + "/reports")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}

	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("collector returned status %d: %s", response.StatusCode(), string(response.Body()))
	}

	var reports []*report.Report
	if err := json.Unmarshal(response.Body(), &reports); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}

	return reports, nil
}

// Get fetches a single report
func (s *CollectorSource) Get(ctx context.Context, id string) (*report.Report, error) {
	response, err := s.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get(s.baseURL + "/reports/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch report: %w", err)
	}

	if response.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", bridge.ErrReportNotFound, id)
	}
	if response.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("collector returned status %d: %s", response.StatusCode(), string(response.Body()))
	}

	var rep report.Report
	if err := json.Unmarshal(response.Body(), &rep); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	return &rep, nil
}
