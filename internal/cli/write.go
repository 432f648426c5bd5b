package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/spec-kit/intranet/internal/domain"
	"github.com/spec-kit/intranet/internal/edit"
	"github.com/spec-kit/intranet/internal/events"
	"github.com/spec-kit/intranet/internal/export"
	"github.com/spec-kit/intranet/internal/workflow"
	apperrors "github.com/spec-kit/intranet/pkg/util/errorutil"
)

func NewCreateCommand(root *RootCommand) *cobra.Command {
	createCmd := &CreateCommand{root: root}

	cmd := &cobra.Command{
		Use:   "create <kind>",
		Short: "Create a resource from --set values and/or a YAML draft",
		Args:  cobra.ExactArgs(1),
		RunE:  createCmd.create,
	}
	cmd.Flags().StringArrayVar(&createCmd.Sets, "set", nil, "field value as key=value (repeatable)")
	cmd.Flags().StringVarP(&createCmd.DraftPath, "file", "f", "", "YAML file with draft fields")
	return cmd
}

type CreateCommand struct {
	root      *RootCommand
	Sets      []string
	DraftPath string
}

func (c *CreateCommand) create(cmd *cobra.Command, args []string) error {
	rc, err := c.root.resource(args[0])
	if err != nil {
		return err
	}
	st := c.root.store(rc)
	defer st.Close()

	session := edit.NewSession(rc.Schema(), rc,
		edit.WithStore(st),
		edit.WithDispatcher(c.root.dispatcher),
		edit.WithLogger(c.root.logger),
	)
	if err := session.Open(nil); err != nil {
		return err
	}
	if c.DraftPath != "" {
		draft, err := loadDraft(c.DraftPath)
		if err != nil {
			return err
		}
		for name, value := range draft {
			if err := session.SetField(name, value); err != nil {
				return c.root.reportInvalid(err)
			}
		}
	}
	if err := applySets(session, rc.Schema(), c.Sets); err != nil {
		return c.root.reportInvalid(err)
	}

	res, err := session.Submit(cmd.Context())
	if err != nil {
		return c.root.reportInvalid(err)
	}
	export.Record(c.root.out(), rc.Schema(), res)
	return nil
}

func NewUpdateCommand(root *RootCommand) *cobra.Command {
	updateCmd := &UpdateCommand{root: root}

	cmd := &cobra.Command{
		Use:   "update <kind> <id>",
		Short: "Edit fields of a resource; --set status=... goes through the workflow",
		Args:  cobra.ExactArgs(2),
		RunE:  updateCmd.update,
	}
	cmd.Flags().StringArrayVar(&updateCmd.Sets, "set", nil, "field value as key=value (repeatable)")
	return cmd
}

type UpdateCommand struct {
	root *RootCommand
	Sets []string
}

func (u *UpdateCommand) update(cmd *cobra.Command, args []string) error {
	rc, err := u.root.resource(args[0])
	if err != nil {
		return err
	}
	id, err := parseID(args[1])
	if err != nil {
		return err
	}
	if len(u.Sets) == 0 {
		return errors.New("nothing to update: pass at least one --set")
	}
	runner, err := u.root.runner(rc)
	if err != nil {
		return err
	}
	st := u.root.store(rc)
	defer st.Close()

	current, err := rc.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	session := edit.NewSession(rc.Schema(), rc,
		edit.WithRunner(runner),
		edit.WithStore(st),
		edit.WithDispatcher(u.root.dispatcher),
		edit.WithLogger(u.root.logger),
	)
	if err := session.Open(&current); err != nil {
		return err
	}
	if err := applySets(session, rc.Schema(), u.Sets); err != nil {
		return u.root.reportInvalid(err)
	}

	res, err := session.Submit(cmd.Context())
	if err != nil && !workflow.IsInconsistent(err) {
		return u.root.reportInvalid(err)
	}
	export.Record(u.root.out(), rc.Schema(), res)
	return err
}

func NewDeleteCommand(root *RootCommand) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete a resource, keeping its history",
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
			if err := rc.Delete(cmd.Context(), id); err != nil {
				return err
			}
			root.emit(cmd.Context(), events.Event{Type: events.EventResourceDeleted, Kind: rc.Kind(), ResourceID: id})
			return nil
		},
	}
}

// applySets coerces --set values to the field types. "status" is passed through.
func applySets(session *edit.Session, schema domain.Schema, sets []string) error {
	values, err := parseSets(sets)
	if err != nil {
		return err
	}
	for name, raw := range values {
		var value any = raw
		if name != "status" {
			if value, err = schema.Coerce(name, raw); err != nil {
				return apperrors.NewValidationError(name, err.Error())
			}
		}
		if err := session.SetField(name, value); err != nil {
			return err
		}
	}
	return nil
}

// loadDraft reads a flat YAML mapping of field names to values.
func loadDraft(path string) (domain.Fields, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse draft %s: %w", path, err)
	}
	fields := make(domain.Fields, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case time.Time:
			fields[k] = val.Format(time.RFC3339)
		case int:
			fields[k] = int64(val)
		default:
			fields[k] = val
		}
	}
	return fields, nil
}

// reportInvalid prints field errors before returning err.
func (r *RootCommand) reportInvalid(err error) error {
	var validationErr *apperrors.ValidationError
	if errors.As(err, &validationErr) {
		export.Errors(r.errOut(), validationErr.Fields)
	}
	return err
}
