package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/export"
	"github.com/spec-kit/intranet/internal/stats"
	"github.com/spec-kit/intranet/internal/store"
)

func NewStatsCommand(root *RootCommand) *cobra.Command {
	statsCmd := &StatsCommand{root: root}

	cmd := &cobra.Command{
		Use:   "stats <kind>",
		Short: "Count, sum and bucket the resources of a kind",
		Args:  cobra.ExactArgs(1),
		RunE:  statsCmd.stats,
	}
	cmd.Flags().StringVar(&statsCmd.GroupBy, "group-by", "", "count resources per value of a field")
	cmd.Flags().StringVar(&statsCmd.Sum, "sum", "", "sum a numeric field")
	cmd.Flags().StringVar(&statsCmd.Bucket, "bucket", "", "count resources per period of a date field")
	cmd.Flags().StringVar(&statsCmd.Unit, "unit", string(stats.UnitMonth), "bucket period: year, month or day")
	return cmd
}

type StatsCommand struct {
	root    *RootCommand
	GroupBy string
	Sum     string
	Bucket  string
	Unit    string
}

func (s *StatsCommand) stats(cmd *cobra.Command, args []string) error {
	unit, err := stats.ParseUnit(s.Unit)
	if err != nil {
		return err
	}
	rc, err := s.root.resource(args[0])
	if err != nil {
		return err
	}
	st := s.root.store(rc)
	defer st.Close()

	snap, err := st.Load(cmd.Context())
	if err != nil {
		return err
	}

	groupBy := s.GroupBy
	if groupBy == "" && s.Sum == "" && s.Bucket == "" {
		groupBy = "status"
	}
	out := s.root.out()
	if groupBy != "" {
		export.Counts(out, fmt.Sprintf("%s by %s", rc.Schema().Label, groupBy), stats.GroupByField(snap.Items, groupBy))
	}
	if s.Bucket != "" {
		export.Counts(out, fmt.Sprintf("%s by %s (%s)", rc.Schema().Label, s.Bucket, unit), stats.BucketByDateUnit(snap.Items, s.Bucket, unit))
	}
	if s.Sum != "" {
		fmt.Fprintf(out, "sum(%s) = %s\n", s.Sum, export.Cell(stats.SumByField(snap.Items, s.Sum)))
	}
	return nil
}

func NewExportCommand(root *RootCommand) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <kind>",
		Short: "Write every resource of a kind to a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := root.resource(args[0])
			if err != nil {
				return err
			}
			st := root.store(rc)
			defer st.Close()

			snap, err := st.Load(cmd.Context())
			if err != nil {
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			if err := export.CSV(f, rc.Schema(), snap.Items); err != nil {
				_ = f.Close()
				return fmt.Errorf("write export file: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			fmt.Fprintf(root.out(), "exported %d %s rows to %s\n", len(snap.Items), rc.Schema().Label, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV file to write")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func NewDashboardCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize assets, inspections and maintenance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds := []domain.Kind{domain.KindAsset, domain.KindInspection, domain.KindMaintenance}
			snaps := make([]store.Snapshot, len(kinds))

			g, ctx := errgroup.WithContext(cmd.Context())
			for i, kind := range kinds {
				i, kind := i, kind
				rc, err := root.client.Resource(kind)
				if err != nil {
					return err
				}
				g.Go(func() error {
					st := root.store(rc)
					defer st.Close()
					snap, err := st.Load(ctx)
					if err != nil {
						return fmt.Errorf("load %s: %w", kind, err)
					}
					snaps[i] = snap
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			assets, inspections, maintenance := snaps[0].Items, snaps[1].Items, snaps[2].Items
			out := root.out()
			fmt.Fprintf(out, "assets: %d total, %d in use, %d under repair\n",
				len(assets),
				stats.CountWhere(assets, "status", string(domain.StatusAssetInUse)),
				stats.CountWhere(assets, "status", string(domain.StatusAssetRepair)))
			export.Counts(out, "assets by status", stats.GroupByField(assets, "status"))
			export.Counts(out, "assets by category", stats.GroupByField(assets, "category"))
			export.Counts(out, "asset purchases by year", stats.BucketByDateUnit(assets, "purchase_date", stats.UnitYear))
			export.Counts(out, "inspection results", stats.GroupByField(inspections, "result"))
			export.Counts(out, "maintenance by status", stats.GroupByField(maintenance, "status"))
			fmt.Fprintf(out, "maintenance cost total: %s\n", export.Cell(stats.SumByField(maintenance, "cost")))
			return nil
		},
	}
}
