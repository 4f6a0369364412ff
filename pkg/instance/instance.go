package instance

import "github.com/muhamadhazim/fishit-marketplace/pkg/env"

// GetID returns the process identifier stamped on startup logs. Heroku style
// DYNO names, then the container hostname, are used when no explicit id is set.
func GetID() string {
	return env.First("local", "FISHIT_INSTANCE_ID", "DYNO", "HOSTNAME")
}
