package response

import "github.com/daniil11ru/fieldnav/cli/tracker/domain/tracking"

type Tracking struct {
	tracking.Snapshot
	Online bool `json:"online"`
}
