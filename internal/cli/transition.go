package cli

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/export"
	"github.com/spec-kit/intranet/internal/workflow"
)

func NewTransitionCommand(root *RootCommand) *cobra.Command {
	transitionCmd := &TransitionCommand{root: root}

	cmd := &cobra.Command{
		Use:   "transition <kind> <id> <status-or-action>",
		Short: "Change a resource's status and record it in history",
		Long: "The last argument is either a target status (e.g. 승인) or a named action " +
			"(e.g. approve, assign, dispose). Action payload fields are passed with --set.",
		Args: cobra.ExactArgs(3),
		RunE: transitionCmd.transition,
	}
	cmd.Flags().StringVar(&transitionCmd.Note, "note", "", "note appended to the history description")
	cmd.Flags().StringArrayVar(&transitionCmd.Sets, "set", nil, "action payload as key=value (repeatable)")
	return cmd
}

type TransitionCommand struct {
	root *RootCommand
	Note string
	Sets []string
}

func (t *TransitionCommand) transition(cmd *cobra.Command, args []string) error {
	rc, err := t.root.resource(args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	runner, err := t.root.runner(rc)
	if err != nil {
		return err
	}
	values, err := parseSets(t.Sets)
	if err != nil {
		return err
	}

	current, err := rc.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	var result workflow.Result
	if _, ok := runner.Machine().Action(args[2]); ok {
		payload := domain.Fields{}
		for k, v := range values {
			payload[k] = v
		}
		if t.Note != "" {
			payload["note"] = t.Note
		}
		result, err = runner.Apply(cmd.Context(), current, args[2], payload)
	} else {
		result, err = runner.Change(cmd.Context(), current, domain.Status(args[2]), t.Note)
	}
	if err != nil && !workflow.IsInconsistent(err) {
		return t.root.reportInvalid(err)
	}

	export.Record(t.root.out(), rc.Schema(), result.Resource)
	if result.History != nil {
		export.History(t.root.out(), []domain.HistoryEntry{*result.History})
	}
	return err
}
