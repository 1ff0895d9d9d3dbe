package zone

import "github.com/cockroachdb/errors"

var (
	ErrZoneFull      = errors.New("zone: capacity reached")
	ErrZoneExists    = errors.New("zone: duplicate zone id")
	ErrZoneNotFound  = errors.New("zone: not found")
	ErrAgentNotFound = errors.New("zone: agent not found")
	ErrNilArchetype  = errors.New("zone: nil archetype")
)
