package game

// ActionKind is what an attacker is currently doing.
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionNormal
	ActionSpecial
)

func (k ActionKind) String() string {
	switch k {
	case ActionNormal:
		return "normal"
	case ActionSpecial:
		return "special"
	default:
		return "none"
	}
}

// ActionTimer is an in-progress action, advanced each tick until Elapsed reaches Duration.
type ActionTimer struct {
	Kind     ActionKind `json:"kind"`
	Elapsed  float64    `json:"elapsed"`
	Duration float64    `json:"duration"`
}

// Done reports whether the action has run its full duration.
func (a ActionTimer) Done() bool { return a.Elapsed >= a.Duration }

// ActionController arbitrates between a resource-gated special and a
// cooldown-gated normal attack. Only one action runs at a time.
type ActionController struct {
	NormalCooldown  float64 // also the normal swing duration
	SpecialCost     float64
	SpecialDuration float64

	cooldownLeft float64
	current      ActionTimer
}

// Advance moves the running action and the normal cooldown forward.
// Returns the kind of action that finished during this step, if any.
func (a *ActionController) Advance(dt float64) ActionKind {
	if a.cooldownLeft > 0 {
		a.cooldownLeft -= dt
	}
	if a.current.Kind == ActionNone {
		return ActionNone
	}
	a.current.Elapsed += dt
	if !a.current.Done() {
		return ActionNone
	}
	finished := a.current.Kind
	a.current = ActionTimer{}
	return finished
}

// Busy reports whether an action is in progress.
func (a *ActionController) Busy() bool { return a.current.Kind != ActionNone }

// Current returns the in-progress action.
func (a *ActionController) Current() ActionTimer { return a.current }

// Decide starts an action if one is allowed. The special pre-empts the normal
// whenever resource covers its cost and any target is acquired; the normal
// needs the target in reach and its cooldown elapsed. Starting either restarts
// the normal cooldown.
func (a *ActionController) Decide(resource float64, hasTarget, inReach bool) ActionKind {
	if a.Busy() || !hasTarget {
		return ActionNone
	}
	if a.SpecialCost > 0 && resource >= a.SpecialCost {
		a.cooldownLeft = a.NormalCooldown
		a.current = ActionTimer{Kind: ActionSpecial, Duration: a.SpecialDuration}
		return ActionSpecial
	}
	if inReach && a.cooldownLeft <= 0 {
		a.cooldownLeft = a.NormalCooldown
		a.current = ActionTimer{Kind: ActionNormal, Duration: a.NormalCooldown}
		return ActionNormal
	}
	return ActionNone
}

// Reset cancels any action and clears the cooldown.
func (a *ActionController) Reset() {
	a.cooldownLeft = 0
	a.current = ActionTimer{}
}
