package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/intranet/internal/client"
	"github.com/spec-kit/intranet/internal/export"
)

func NewListCommand(root *RootCommand) *cobra.Command {
	listCmd := &ListCommand{root: root}

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List every resource of a kind",
		Args:  cobra.ExactArgs(1),
		RunE:  listCmd.list,
	}
	cmd.Flags().BoolVar(&listCmd.CSV, "csv", false, "write CSV instead of a table")
	return cmd
}

type ListCommand struct {
	root *RootCommand
	CSV  bool
}

func (l *ListCommand) list(cmd *cobra.Command, args []string) error {
	rc, err := l.root.resource(args[0])
	if err != nil {
		return err
	}
	st := l.root.store(rc)
	defer st.Close()

	snap, err := st.Load(cmd.Context())
	if err != nil {
		return err
	}
	if l.CSV {
		return export.CSV(l.root.out(), rc.Schema(), snap.Items)
	}
	export.Table(l.root.out(), rc.Schema(), snap.Items)
	return nil
}

func NewGetCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Show one resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := root.resource(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			res, err := rc.Get(cmd.Context(), id)
			if client.IsNotFound(err) {
				return fmt.Errorf("%s #%d: %w", rc.Schema().Label, id, err)
			}
			if err != nil {
				return err
			}
			export.Record(root.out(), rc.Schema(), res)
			return nil
		},
	}
}

func NewHistoryCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "history <kind> <id>",
		Short: "Show the audit trail of a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := root.resource(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			entries, err := rc.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			export.History(root.out(), entries)
			return nil
		},
	}
}
