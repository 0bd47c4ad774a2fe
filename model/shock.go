package model

// Shock sets the actual flood depth of one household.
type Shock struct {
	AgentID int64
	Depth   float64
}

// ShockPolicy decides when actual floods happen. It is consulted before
// the snapshot of every step.
type ShockPolicy interface {
	// PostInit is called after the model is initialized
	// dumpData is nil for a fresh model
	PostInit(dumpData []byte)

	// PreStep returns the shocks to apply before step curStep runs
	PreStep(curStep int) []Shock

	// Dump returns internal state needed to resume
	Dump() []byte
}

type BaseShockPolicy struct {
	// do nothing, provide default empty methods
}

// for type check
func _() ShockPolicy {
	return &BaseShockPolicy{}
}

func (p *BaseShockPolicy) PostInit(dumpData []byte) {
}

func (p *BaseShockPolicy) PreStep(curStep int) []Shock {
	return nil
}

func (p *BaseShockPolicy) Dump() []byte {
	return nil
}
