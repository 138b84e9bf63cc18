package main

import (
	"github.com/sixy6e/go-mbtrn/trnif"
)

// navEngine is a stand-in for the embedded navigation filter so the server
// can be exercised end to end without vehicle hardware. Deployments swap
// in a binding to the real filter; the protocol handlers only see the
// trnif.TRN surface.
type navEngine struct {
	initialized  bool
	converged    bool
	lastMeasOK   bool
	outstanding  bool
	reinits      int32
	filterType   int32
	filterState  int32
	measCount    int32
	motionCount  int32
	driftRate    float64
	modWeighting int32
	interpMethod int32
	lowgrade     bool
}

func newNavEngine() *navEngine {
	return &navEngine{}
}

func (t *navEngine) Initialize(ct *trnif.CommsT) {
	t.initialized = true
	t.filterState = 1
}

func (t *navEngine) MeasUpdate(m *trnif.Meas, parameter int32) {
	t.measCount++
	t.lastMeasOK = m != nil && m.NumMeas() > 0
	t.outstanding = false
	if t.measCount > 10 {
		t.converged = true
	}
}

func (t *navEngine) MotionUpdate(p *trnif.Pose) {
	t.motionCount++
}

func (t *navEngine) EstimatePose(p *trnif.Pose, kind trnif.PoseType) {
	// the stand-in leaves the pose as received; MMSE also sets two covariance terms
	if kind == trnif.PoseMMSE {
		p.Covariance[0] = 1.0
		p.Covariance[5] = 1.0
	}
}

func (t *navEngine) LastMeasSuccessful() bool { return t.lastMeasOK }
func (t *navEngine) NumReinits() int32        { return t.reinits }
func (t *navEngine) FilterType() int32        { return t.filterType }
func (t *navEngine) FilterState() int32       { return t.filterState }
func (t *navEngine) OutstandingMeas() bool    { return t.outstanding }
func (t *navEngine) IsConverged() bool        { return t.converged }
func (t *navEngine) IsInitialized() bool      { return t.initialized }

func (t *navEngine) ReinitFilter(lowInfoTransition bool) {
	t.reinits++
	t.converged = false
}

func (t *navEngine) SetModifiedWeighting(p int32)       { t.modWeighting = p }
func (t *navEngine) SetFilterReinit(enable bool)        {}
func (t *navEngine) SetInterpMeasAttitude(enable bool)  {}
func (t *navEngine) SetMapInterpMethod(p int32)         { t.interpMethod = p }
func (t *navEngine) SetVehicleDriftRate(rate float64)   { t.driftRate = rate }
func (t *navEngine) UseHighgradeFilter()                { t.lowgrade = false }
func (t *navEngine) UseLowgradeFilter()                 { t.lowgrade = true }
