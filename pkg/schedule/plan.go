package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/focfleet/focfleet-go/pkg/wire"
)

// ErrInvalidPlan reports plan parameters that cannot run. Plans are
// rejected before any packet is built or written.
var ErrInvalidPlan = errors.New("invalid plan")

// Plan describes one distribution run over the fleet.
type Plan struct {
	// MaxDeviceID bounds the id space. Groups cover ids 1..MaxDeviceID.
	MaxDeviceID uint8

	// GroupSize is the number of consecutive ids per broadcast group.
	GroupSize int

	// TargetHz is the per-device refresh rate. Zero disables pacing
	// and the run drains the queues as fast as the transport allows.
	TargetHz float64

	// MaxRounds caps the number of rounds. Zero means uncapped.
	MaxRounds int

	// DataType selects the actuation quantity every packet carries.
	DataType wire.DataType

	// Mode selects the multi-device frame layout.
	Mode wire.PacketMode
}

// Validate checks the plan before a run does any I/O.
func (p Plan) Validate() error {
	if p.MaxDeviceID == 0 {
		return fmt.Errorf("%w: no devices (max device id 0)", ErrInvalidPlan)
	}
	if p.GroupSize < 1 {
		return fmt.Errorf("%w: group size %d", ErrInvalidPlan, p.GroupSize)
	}
	if p.TargetHz < 0 {
		return fmt.Errorf("%w: negative target rate %g", ErrInvalidPlan, p.TargetHz)
	}
	if p.MaxRounds < 0 {
		return fmt.Errorf("%w: negative round cap %d", ErrInvalidPlan, p.MaxRounds)
	}
	if !p.DataType.IsValid() {
		return fmt.Errorf("%w: data type %s", ErrInvalidPlan, p.DataType)
	}
	if p.Mode != wire.ModeSlice && p.Mode != wire.ModeStruct {
		return fmt.Errorf("%w: packet mode %s is not broadcastable", ErrInvalidPlan, p.Mode)
	}
	return nil
}

// GroupCount returns how many groups cover the id space.
func (p Plan) GroupCount() int {
	if p.MaxDeviceID == 0 || p.GroupSize < 1 {
		return 0
	}
	return (int(p.MaxDeviceID) + p.GroupSize - 1) / p.GroupSize
}

// Group is a contiguous device id range, inclusive on both ends.
type Group struct {
	Start uint8
	End   uint8
}

// Size returns the number of ids in the group.
func (g Group) Size() int {
	return int(g.End-g.Start) + 1
}

func (g Group) String() string {
	return fmt.Sprintf("%d..%d", g.Start, g.End)
}

// Groups returns the contiguous groups covering ids 1..MaxDeviceID.
// The tail group may be short; it is never padded.
func (p Plan) Groups() []Group {
	count := p.GroupCount()
	groups := make([]Group, 0, count)
	for i := 0; i < count; i++ {
		start := i*p.GroupSize + 1
		end := start + p.GroupSize - 1
		if end > int(p.MaxDeviceID) {
			end = int(p.MaxDeviceID)
		}
		groups = append(groups, Group{Start: uint8(start), End: uint8(end)})
	}
	return groups
}

// SlotDuration returns the wait after each group broadcast, zero for
// an unpaced plan.
func (p Plan) SlotDuration() time.Duration {
	count := p.GroupCount()
	if p.TargetHz <= 0 || count == 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / (p.TargetHz * float64(count)))
}
