package verifier

import "log/slog"

// Verification stage names, in execution order.
const (
	StageModule     = "module_loaded"
	StageResponsive = "responsive"
	StageEvents     = "events"
)

// Stage outcomes as reported to the stage observer.
const (
	OutcomePass  = "pass"
	OutcomeFail  = "fail"
	OutcomeError = "error"
)

// HostQueryError reports that a verification-stage host probe itself failed,
// as opposed to returning a negative answer. It is the engine's only hard
// error during verification.
type HostQueryError struct {
	Stage string
	Err   error
}

func (e *HostQueryError) Error() string {
	return "host query failed during " + e.Stage + " check: " + e.Err.Error()
}

func (e *HostQueryError) Unwrap() error { return e.Err }

// VerifyTouchpad runs the staged verification of the selected touchpad:
// backing module loaded, device responsive, device event-capable. The stages
// run strictly in order and short-circuit on the first negative answer. A
// negative answer yields a false verdict; a failed probe yields an error and
// an unusable verdict. Without a selected touchpad no stage runs and the
// verdict is false.
func (c *Context) VerifyTouchpad() (bool, error) {
	if !c.touchpadFound {
		slog.Info("touchpad not found, cannot verify")
		c.touchpadWorking = false
		return false, nil
	}

	slog.Info("verifying touchpad", "name", c.touchpadName, "path", c.touchpadPath)

	loaded, err := c.host.ModuleLoaded(c.touchpadName)
	if err != nil {
		c.notifyStage(StageModule, OutcomeError)
		c.touchpadWorking = false
		return false, &HostQueryError{Stage: StageModule, Err: err}
	}
	if !loaded {
		c.notifyStage(StageModule, OutcomeFail)
		slog.Warn("touchpad driver module not loaded", "name", c.touchpadName)
		c.touchpadWorking = false
		return false, nil
	}
	c.notifyStage(StageModule, OutcomePass)
	slog.Info("touchpad driver module loaded", "name", c.touchpadName)

	responsive, err := c.host.DeviceResponsive(c.touchpadPath)
	if err != nil {
		c.notifyStage(StageResponsive, OutcomeError)
		c.touchpadWorking = false
		return false, &HostQueryError{Stage: StageResponsive, Err: err}
	}
	if !responsive {
		c.notifyStage(StageResponsive, OutcomeFail)
		slog.Warn("touchpad not responding to queries", "path", c.touchpadPath)
		c.touchpadWorking = false
		return false, nil
	}
	c.notifyStage(StageResponsive, OutcomePass)
	slog.Info("touchpad responds to queries", "path", c.touchpadPath)

	events, err := c.host.DeviceEvents(c.touchpadPath)
	if err != nil {
		c.notifyStage(StageEvents, OutcomeError)
		c.touchpadWorking = false
		return false, &HostQueryError{Stage: StageEvents, Err: err}
	}
	if events {
		c.notifyStage(StageEvents, OutcomePass)
	} else {
		c.notifyStage(StageEvents, OutcomeFail)
	}

	c.touchpadWorking = events
	slog.Info("touchpad verification complete", "working", events)
	return events, nil
}

// StatusCode maps a verification outcome onto the module's entry-point
// contract: 1 working, 0 not working or not found, -1 hard error.
func StatusCode(working bool, err error) int {
	switch {
	case err != nil:
		return -1
	case working:
		return 1
	default:
		return 0
	}
}
