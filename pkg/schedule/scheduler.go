package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/focfleet/focfleet-go/pkg/clock"
	"github.com/focfleet/focfleet-go/pkg/log"
	"github.com/focfleet/focfleet-go/pkg/setpoint"
	"github.com/focfleet/focfleet-go/pkg/transport"
	"github.com/focfleet/focfleet-go/pkg/wire"
)

// StopReason explains why a run ended.
type StopReason uint8

const (
	// StopDrained means no queued values remained after a full round.
	StopDrained StopReason = iota
	// StopRoundCap means the configured round cap was reached.
	StopRoundCap
	// StopCancelled means the run context ended.
	StopCancelled
)

// String returns the reason in log form.
func (r StopReason) String() string {
	switch r {
	case StopDrained:
		return "queues drained"
	case StopRoundCap:
		return "round cap reached"
	case StopCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// RoundReport tallies one completed round.
type RoundReport struct {
	// Round is the 1-based round number.
	Round int

	// Fresh counts values popped from queues this round; the rest
	// were repeats of each device's last value.
	Fresh int

	// Attempted and Delivered count per-link writes.
	Attempted int
	Delivered int
}

// Report tallies a whole run.
type Report struct {
	Rounds         int
	Fresh          int
	Attempted      int
	Delivered      int
	EncodeFailures int
	Reason         StopReason
}

// Config wires a Scheduler to its collaborators.
type Config struct {
	// Store supplies one value per device per round. Required.
	Store *setpoint.Store

	// Sender fans group packets out to the connected devices. Required.
	Sender transport.Broadcaster

	// Clock paces slot waits. Nil uses the system clock.
	Clock clock.Clock

	// Logger receives broadcast and run state events.
	Logger log.Logger

	// OnRound is called after each completed round.
	OnRound func(RoundReport)
}

// Scheduler runs distribution plans against the setpoint store.
type Scheduler struct {
	store   *setpoint.Store
	sender  transport.Broadcaster
	clk     clock.Clock
	logger  log.Logger
	onRound func(RoundReport)
}

// New creates a scheduler.
func New(config Config) (*Scheduler, error) {
	if config.Store == nil {
		return nil, errors.New("scheduler requires a setpoint store")
	}
	if config.Sender == nil {
		return nil, errors.New("scheduler requires a sender")
	}
	s := &Scheduler{
		store:   config.Store,
		sender:  config.Sender,
		clk:     config.Clock,
		logger:  config.Logger,
		onRound: config.OnRound,
	}
	if s.clk == nil {
		s.clk = clock.System{}
	}
	if s.logger == nil {
		s.logger = log.NoopLogger{}
	}
	return s, nil
}

// Run executes one plan. It returns an error only for an invalid plan;
// transport failures degrade the round and are tallied in the report,
// and cancellation is a normal stop, reported via Report.Reason.
//
// Each round takes one value per device, broadcasts one packet per
// group and waits one slot after every send. The run stops at the
// round cap, once no queued values remain after a full round, or when
// ctx ends. After ctx ends no further broadcasts are issued.
func (s *Scheduler) Run(ctx context.Context, plan Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	groups := plan.Groups()
	slot := plan.SlotDuration()
	report := &Report{}

	s.logRunState("", "RUNNING", fmt.Sprintf("%d groups of %d, slot %s, %s/%s",
		len(groups), plan.GroupSize, slot, plan.Mode, plan.DataType))
	defer func() {
		s.logRunState("RUNNING", "STOPPED", report.Reason.String())
	}()

	for {
		round := RoundReport{Round: report.Rounds + 1}

		for _, g := range groups {
			if ctx.Err() != nil {
				report.Reason = StopCancelled
				return report, nil
			}

			values, pairs, fresh := s.collect(g)
			round.Fresh += fresh
			report.Fresh += fresh

			packet, err := encodeGroup(plan, g, values, pairs)
			if err != nil {
				report.EncodeFailures++
				s.logEncodeError(g, err)
				continue
			}

			result := s.sender.Broadcast(packet)
			round.Attempted += result.Targets
			round.Delivered += result.Delivered()
			report.Attempted += result.Targets
			report.Delivered += result.Delivered()
			s.logBroadcast(plan, g, fresh, len(packet), result)

			if slot > 0 {
				select {
				case <-ctx.Done():
					report.Reason = StopCancelled
					return report, nil
				case <-s.clk.After(slot):
				}
			}
		}

		report.Rounds++
		if s.onRound != nil {
			s.onRound(round)
		}

		if plan.MaxRounds > 0 && report.Rounds >= plan.MaxRounds {
			report.Reason = StopRoundCap
			return report, nil
		}
		if !s.store.HasPending() {
			report.Reason = StopDrained
			return report, nil
		}
	}
}

// collect takes one value per device in the group. Values and pairs
// describe the same ids; the packet mode decides which form is used.
func (s *Scheduler) collect(g Group) (values []float64, pairs []wire.Setpoint, fresh int) {
	values = make([]float64, 0, g.Size())
	pairs = make([]wire.Setpoint, 0, g.Size())
	for id := g.Start; ; id++ {
		v, popped := s.store.Take(id)
		if popped {
			fresh++
		}
		values = append(values, v)
		pairs = append(pairs, wire.Setpoint{DeviceID: id, Value: v})
		if id == g.End {
			break
		}
	}
	return values, pairs, fresh
}

func encodeGroup(plan Plan, g Group, values []float64, pairs []wire.Setpoint) ([]byte, error) {
	if plan.Mode == wire.ModeStruct {
		return wire.EncodeStruct(pairs, plan.DataType)
	}
	return wire.EncodeSlice(g.Start, values, plan.DataType)
}

func (s *Scheduler) logBroadcast(plan Plan, g Group, fresh, size int, result transport.BroadcastResult) {
	s.logger.Log(log.Event{
		Timestamp: s.clk.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerFleet,
		Category:  log.CategoryBroadcast,
		LocalRole: log.RoleController,
		Broadcast: &log.BroadcastEvent{
			Mode:       plan.Mode,
			DataType:   plan.DataType,
			GroupStart: g.Start,
			GroupEnd:   g.End,
			Fresh:      fresh,
			Size:       size,
			Targets:    result.Targets,
			Failed:     len(result.Errors),
		},
	})
}

func (s *Scheduler) logRunState(oldState, newState, reason string) {
	s.logger.Log(log.Event{
		Timestamp: s.clk.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerFleet,
		Category:  log.CategoryState,
		LocalRole: log.RoleController,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityRun,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (s *Scheduler) logEncodeError(g Group, err error) {
	s.logger.Log(log.Event{
		Timestamp: s.clk.Now(),
		Direction: log.DirectionOut,
		Layer:     log.LayerWire,
		Category:  log.CategoryError,
		LocalRole: log.RoleController,
		Error: &log.ErrorEventData{
			Layer:   log.LayerWire,
			Message: err.Error(),
			Context: fmt.Sprintf("encode group %s", g),
		},
	})
}
