package workflow

import (
	"fmt"
	"slices"

	"github.com/spec-kit/intranet/internal/domain"
)

// Action is a named transition with its own route and history type.
type Action struct {
	Name        string
	To          domain.Status
	Route       string
	HistoryType domain.HistoryType
}

// Machine holds the legal status transitions of one resource kind.
type Machine struct {
	Kind        domain.Kind
	label       string
	transitions map[domain.Status][]domain.Status
	actions     map[string]Action
}

const statusRoute = "status"

var machines = map[domain.Kind]Machine{
	domain.KindAsset: {
		Kind:  domain.KindAsset,
		label: "asset",
		transitions: map[domain.Status][]domain.Status{
			domain.StatusAssetIdle:     {domain.StatusAssetInUse, domain.StatusAssetRepair, domain.StatusAssetDisposed},
			domain.StatusAssetInUse:    {domain.StatusAssetIdle, domain.StatusAssetRepair, domain.StatusAssetDisposed},
			domain.StatusAssetRepair:   {domain.StatusAssetIdle, domain.StatusAssetInUse, domain.StatusAssetDisposed},
			domain.StatusAssetDisposed: {},
		},
		actions: toActions(
			Action{Name: "assign", To: domain.StatusAssetInUse, Route: "assignment", HistoryType: domain.HistoryAssign},
			Action{Name: "return", To: domain.StatusAssetIdle, Route: "assignment", HistoryType: domain.HistoryReturn},
			Action{Name: "repair", To: domain.StatusAssetRepair, HistoryType: domain.HistoryRepair},
			Action{Name: "dispose", To: domain.StatusAssetDisposed, HistoryType: domain.HistoryDispose},
		),
	},
	domain.KindReservation:  approvalMachine(domain.KindReservation, "reservation", domain.StatusDeclined),
	domain.KindAttendance:   approvalMachine(domain.KindAttendance, "attendance record", domain.StatusReturned),
	domain.KindApprovalLine: approvalMachine(domain.KindApprovalLine, "approval line", domain.StatusReturned),
	domain.KindMaintenance: {
		Kind:  domain.KindMaintenance,
		label: "maintenance record",
		transitions: map[domain.Status][]domain.Status{
			domain.StatusPlanned:    {domain.StatusInProgress, domain.StatusDelayed},
			domain.StatusInProgress: {domain.StatusCompleted, domain.StatusDelayed},
			domain.StatusDelayed:    {domain.StatusInProgress, domain.StatusCompleted},
			domain.StatusCompleted:  {},
		},
		actions: toActions(
			Action{Name: "start", To: domain.StatusInProgress},
			Action{Name: "delay", To: domain.StatusDelayed},
			Action{Name: "complete", To: domain.StatusCompleted},
		),
	},
	domain.KindInspection: singleState(domain.KindInspection, "inspection record", domain.StatusRegistered),
	domain.KindSchedule:   singleState(domain.KindSchedule, "schedule", domain.StatusRegistered),
	domain.KindPost:       singleState(domain.KindPost, "post", domain.StatusPublished),
}

func approvalMachine(kind domain.Kind, label string, rejected domain.Status) Machine {
	return Machine{
		Kind:  kind,
		label: label,
		transitions: map[domain.Status][]domain.Status{
			domain.StatusPending:  {domain.StatusApproved, rejected},
			domain.StatusApproved: {},
			rejected:              {},
		},
		actions: toActions(
			Action{Name: "approve", To: domain.StatusApproved},
			Action{Name: "reject", To: rejected},
		),
	}
}

func singleState(kind domain.Kind, label string, status domain.Status) Machine {
	return Machine{
		Kind:        kind,
		label:       label,
		transitions: map[domain.Status][]domain.Status{status: {}},
	}
}

func toActions(actions ...Action) map[string]Action {
	out := make(map[string]Action, len(actions))
	for _, a := range actions {
		if a.Route == "" {
			a.Route = statusRoute
		}
		if a.HistoryType == "" {
			a.HistoryType = domain.HistoryStatusChange
		}
		out[a.Name] = a
	}
	return out
}

// For returns the machine of a kind.
func For(kind domain.Kind) (Machine, error) {
	m, ok := machines[kind]
	if !ok {
		return Machine{}, fmt.Errorf("no workflow for kind %q", kind)
	}
	return m, nil
}

// MustFor is For for kinds known at compile time.
func MustFor(kind domain.Kind) Machine {
	m, err := For(kind)
	if err != nil {
		panic(err)
	}
	return m
}

// IsLegal reports whether from → to is an allowed transition.
func (m Machine) IsLegal(from, to domain.Status) bool {
	next, ok := m.transitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// IsTerminal reports whether no transition leaves status.
func (m Machine) IsTerminal(status domain.Status) bool {
	next, ok := m.transitions[status]
	return ok && len(next) == 0
}

// Next lists the statuses reachable from status.
func (m Machine) Next(status domain.Status) []domain.Status {
	return slices.Clone(m.transitions[status])
}

// Action looks up a named transition.
func (m Machine) Action(name string) (Action, bool) {
	a, ok := m.actions[name]
	return a, ok
}

// Actions lists the names of the machine's named transitions, sorted.
func (m Machine) Actions() []string {
	names := make([]string, 0, len(m.actions))
	for name := range m.actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Check returns a descriptive error when from → to is not allowed.
func (m Machine) Check(from, to domain.Status) error {
	if m.IsLegal(from, to) {
		return nil
	}
	if m.IsTerminal(from) {
		return fmt.Errorf("%s is in terminal state %s", m.label, from)
	}
	return fmt.Errorf("cannot move %s from %s to %s", m.label, from, to)
}
