package dto

type OpenInput struct {
	// Kind is one of recording, driver, script, constant.
	Kind   string
	Path   string
	Loop   bool
	Driver string
	Values []float64
}

type DriverOutput struct {
	Name    string
	Version string
	Binary  string
	Enabled bool
	RawHID  bool
}

type DoctorResult struct {
	Name            string
	BinaryReachable bool
	ChecksumValid   bool
	LifecycleOK     bool
	Model           string
	SampleRateHz    int
	Error           string
}
