// Package trnif implements the two TRN request/response protocols carried
// over netif ports — the legacy fixed-size commsT protocol and the framed
// trnmsg protocol — plus the plain-text UDP control handlers used by the
// MB publish and TRN update ports.
//
// The TRN filter itself is an external collaborator; handlers drive it
// through the TRN interface and never inspect its internals.
package trnif

// PoseType selects which estimate EstimatePose returns.
type PoseType int

const (
	PoseMLE PoseType = iota + 1
	PoseMMSE
)

// Pose is a vehicle state estimate exchanged with the filter.
type Pose struct {
	Time       float64
	X, Y, Z    float64
	Phi        float64
	Theta      float64
	Psi        float64
	DvlValid   bool
	GpsValid   bool
	BottomLock bool
	Covariance [16]float64
}

// Meas is one sonar measurement set handed to the filter.
type Meas struct {
	Time       float64
	DataType   int32
	X, Y, Z    float64
	PingNumber int32
	Ranges     []float64
	CrossTrack []float64
	AlongTrack []float64
	Altitudes  []float64
}

// NumMeas returns the number of samples in the measurement.
func (m *Meas) NumMeas() int32 {
	return int32(len(m.Ranges))
}

// TRN is the navigation filter surface the protocol handlers call into.
// Implementations own their state; all calls arrive from the port's single
// service goroutine.
type TRN interface {
	Initialize(ct *CommsT)
	MeasUpdate(m *Meas, parameter int32)
	MotionUpdate(p *Pose)
	EstimatePose(p *Pose, kind PoseType)

	LastMeasSuccessful() bool
	NumReinits() int32
	FilterType() int32
	FilterState() int32
	OutstandingMeas() bool
	IsConverged() bool
	IsInitialized() bool

	ReinitFilter(lowInfoTransition bool)
	SetModifiedWeighting(p int32)
	SetFilterReinit(enable bool)
	SetInterpMeasAttitude(enable bool)
	SetMapInterpMethod(p int32)
	SetVehicleDriftRate(rate float64)
	UseHighgradeFilter()
	UseLowgradeFilter()
}

// ResetResource is the resource bundle for the TRN update UDP port: a
// callback invoked on RST control messages.
type ResetResource struct {
	Reset func() error
}
