package infinity

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// CommandState is one step of the hold mutation sequence.
type CommandState int

const (
	StateIdle CommandState = iota
	StateHoldClearing
	StateSettling
	StateHoldApplying
	StateVerified
	StateFailed
)

func (s CommandState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHoldClearing:
		return "hold-clearing"
	case StateSettling:
		return "settling"
	case StateHoldApplying:
		return "hold-applying"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// configStore is the narrow surface the command engine needs from a Client.
// Tests inject a fake to exercise the state machine without a live portal.
type configStore interface {
	fetchConfigDoc(ctx context.Context, serial string) (*etree.Document, error)
	pushConfigDoc(ctx context.Context, serial string, doc *etree.Document) error
	keepaliveLenient(ctx context.Context)
}

var _ configStore = (*Client)(nil)

// commandEngine sequences a setpoint/hold change. The thermostat only reads
// holdActivity when hold transitions off to on, so a direct overwrite of an
// active hold is silently ignored; the engine always clears first, waits for
// the device to propagate the transition, then reasserts.
type commandEngine struct {
	store       configStore
	settleDelay time.Duration
	logger      *zap.SugaredLogger
	state       CommandState

	// wait and onTransition are injectable for tests.
	wait         func(ctx context.Context, d time.Duration) error
	onTransition func(CommandState)
}

func (c *Client) newCommandEngine() *commandEngine {
	return &commandEngine{
		store:       c,
		settleDelay: c.settleDelay,
		logger:      c.logger,
		wait:        sleepContext,
	}
}

func (e *commandEngine) to(s CommandState) {
	e.state = s
	if e.logger != nil {
		e.logger.Debugw("command state", "state", s.String())
	}
	if e.onTransition != nil {
		e.onTransition(s)
	}
}

func (e *commandEngine) fail(phase CommandPhase, err error) error {
	e.to(StateFailed)
	return &CommandError{Phase: phase, Err: err}
}

// run drives the sequence Idle -> HoldClearing -> Settling -> HoldApplying
// -> Verified. There is no retry across phases: a failure after the clear
// step leaves the hold cleared, and the returned phase says so.
func (e *commandEngine) run(ctx context.Context, serial, zoneID string, req SetpointRequest) error {
	e.to(StateHoldClearing)
	doc, err := e.store.fetchConfigDoc(ctx, serial)
	if err != nil {
		return e.fail(PhaseClear, err)
	}
	if err := clearHold(doc, zoneID); err != nil {
		return e.fail(PhaseClear, err)
	}
	if err := e.store.pushConfigDoc(ctx, serial, doc); err != nil {
		return e.fail(PhaseClear, err)
	}

	e.to(StateSettling)
	if err := e.wait(ctx, e.settleDelay); err != nil {
		return e.fail(PhaseSettle, err)
	}

	// Re-fetch so the apply write carries the device's fresh state.
	e.to(StateHoldApplying)
	doc, err = e.store.fetchConfigDoc(ctx, serial)
	if err != nil {
		return e.fail(PhaseApply, err)
	}
	if err := applyHold(doc, zoneID, req); err != nil {
		return e.fail(PhaseApply, err)
	}
	if err := e.store.pushConfigDoc(ctx, serial, doc); err != nil {
		return e.fail(PhaseApply, err)
	}

	// Nudge the thermostat to sync the new config.
	e.store.keepaliveLenient(ctx)
	e.to(StateVerified)
	return nil
}

// clearHold turns the zone's hold off and blanks its hold activity.
func clearHold(doc *etree.Document, zoneID string) error {
	zone, err := findZone(doc, zoneID)
	if err != nil {
		return err
	}
	setChildText(zone, "hold", "off")
	setChildText(zone, "holdActivity", "")
	return nil
}

// applyHold writes the requested setpoints to the zone's manual activity and
// reasserts the hold, timed or indefinite.
func applyHold(doc *etree.Document, zoneID string, req SetpointRequest) error {
	zone, err := findZone(doc, zoneID)
	if err != nil {
		return err
	}

	manual, err := manualActivity(zone)
	if err != nil {
		return err
	}
	if req.Heat != nil {
		setChildText(manual, "htsp", formatSetpoint(*req.Heat))
	}
	if req.Cool != nil {
		setChildText(manual, "clsp", formatSetpoint(*req.Cool))
	}

	setChildText(zone, "holdActivity", "manual")
	setChildText(zone, "otmr", req.HoldUntil)
	setChildText(zone, "hold", "on")
	return nil
}

func findZone(doc *etree.Document, zoneID string) (*etree.Element, error) {
	for _, zone := range zoneElements(doc.Root()) {
		if zone.SelectAttrValue("id", "") == zoneID {
			return zone, nil
		}
	}
	return nil, fmt.Errorf("%w: zone %q", ErrZoneNotFound, zoneID)
}

func manualActivity(zone *etree.Element) (*etree.Element, error) {
	activities := zone.SelectElement("activities")
	if activities == nil {
		return nil, fmt.Errorf("zone %q config has no activities", zone.SelectAttrValue("id", ""))
	}
	for _, act := range activities.SelectElements("activity") {
		if act.SelectAttrValue("id", "") == "manual" {
			return act, nil
		}
	}
	return nil, fmt.Errorf("zone %q config has no manual activity", zone.SelectAttrValue("id", ""))
}

func setChildText(el *etree.Element, tag, text string) {
	child := el.SelectElement(tag)
	if child == nil {
		child = el.CreateElement(tag)
	}
	child.SetText(text)
}

func formatSetpoint(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetTemperature durably changes a zone's setpoints and hold through the
// clear/settle/apply sequence. A CommandError names the phase that failed;
// a clear-phase failure means the existing hold is untouched, an apply-phase
// failure means the hold was cleared but not reasserted.
func (c *Client) SetTemperature(ctx context.Context, serial, zoneID string, req SetpointRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	return c.newCommandEngine().run(ctx, serial, zoneID, req)
}

// SetMode writes the system operating mode. Mode changes have no hold
// interaction, so this is a single-shot config write.
func (c *Client) SetMode(ctx context.Context, serial, mode string) error {
	if !ValidMode(mode) {
		return fmt.Errorf("%w: got %q", ErrInvalidMode, mode)
	}

	doc, err := c.fetchConfigDoc(ctx, serial)
	if err != nil {
		return err
	}
	setChildText(doc.Root(), "mode", mode)
	return c.pushConfigDoc(ctx, serial, doc)
}
