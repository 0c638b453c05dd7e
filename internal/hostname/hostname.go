package hostname

import "os"

// Get returns the machine's hostname, or "unknown" if it cannot be
// determined. Telemetry always carries some hostname value.
func Get() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}
