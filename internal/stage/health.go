package stage

// Health reports whether one pipeline stage can currently do work, with a
// human-readable reason when it cannot.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks the named stage ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks the named stage not ready, with detail explaining why.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
