package generator

// Config drives the synthetic demo dataset generator.
type Config struct {
	NumPatients     int
	NumDoctors      int
	NumResearchers  int
	ResearchPerUser int
	ApprovedChance  float64
	RejectedChance  float64
	Seed            int64
}

// DefaultConfig returns baseline settings that produce a usable demo
// environment.
func DefaultConfig() Config {
	return Config{
		NumPatients:     50,
		NumDoctors:      8,
		NumResearchers:  6,
		ResearchPerUser: 2,
		ApprovedChance:  0.4,
		RejectedChance:  0.15,
		Seed:            42,
	}
}
