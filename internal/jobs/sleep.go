package jobs

import (
	"fmt"
	"time"

	"taskq/internal/task"
)

// Sleep waits for Seconds seconds. An abort or shutdown ends the wait early.
type Sleep struct {
	task.Base

	Seconds float64 `json:"seconds" validate:"gte=0,lte=86400"`
}

func (s *Sleep) Kind() string { return KindSleep }

func (s *Sleep) Description() string {
	return fmt.Sprintf("Sleep %gs", s.Seconds)
}

func (s *Sleep) Run(rc *task.Context) (bool, error) {
	timer := time.NewTimer(time.Duration(s.Seconds * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
		return true, nil
	case <-rc.Done():
		return false, rc.Err()
	}
}
