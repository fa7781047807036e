package voice

// NullSource is the capture fallback when no audio stack is available
// on the host. It reports zero energy forever: voice activity simply
// never triggers, which matches the documented degraded behavior of the
// ambient pipeline rather than failing at startup.
type NullSource struct{}

// NewNullSource returns the degraded-mode energy source.
func NewNullSource() EnergySource {
	return NullSource{}
}

func (NullSource) Open() error { return nil }

func (NullSource) Sample() (float64, error) { return 0, nil }

func (NullSource) Close() error { return nil }
