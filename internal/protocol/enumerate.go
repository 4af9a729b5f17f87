package protocol

import (
	"fmt"

	"go.uber.org/zap"
)

// CountDives probes dive header objects from ordinal 0 until the first abort.
// Dives are numbered densely, so the ordinal of the first missing header is
// the count. Protocol errors end the probe and are returned as is.
func (e *Engine) CountDives() (int, error) {
	for i := 0; i < MaxDives; i++ {
		out, err := e.ReadObject(DiveHeaderAddress(i))
		if err != nil {
			return 0, fmt.Errorf("failed to probe dive %d: %w", i, err)
		}
		if out.Kind == Aborted {
			e.log.Debug("dive count", zap.Int("count", i))
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %d headers present", ErrTooManyDives, MaxDives)
}
