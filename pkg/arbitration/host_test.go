package arbitration

import (
	"time"

	"github.com/lk2023060901/xdooria-combat/pkg/entity"
	"github.com/lk2023060901/xdooria-combat/pkg/world"
)

type nopHost struct{}

func (nopHost) Self() entity.Handle           { return entity.Nil }
func (nopHost) Pose() world.Pose              { return world.Pose{} }
func (nopHost) SetPose(world.Pose)            {}
func (nopHost) Target() (entity.Handle, bool) { return entity.Nil, false }
func (nopHost) TrackTarget(time.Duration)     {}
