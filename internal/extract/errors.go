package extract

import (
	"fmt"

	"cdrip/internal/services"
)

// ErrBusy is returned when the worker is reconfigured or restarted while a
// run is still active.
var ErrBusy = fmt.Errorf("%w: extraction worker is busy", services.ErrConfiguration)
