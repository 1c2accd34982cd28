package reset

import "errors"

// ErrProductionGuard indicates a reset was attempted in a production environment.
var ErrProductionGuard = errors.New("reset refused: production environment")

// ErrConfirmationDeclined indicates the operator did not type the confirmation phrase.
var ErrConfirmationDeclined = errors.New("reset cancelled: confirmation not given")

// ErrNotInteractive indicates the confirmation would come from a pipe or file
// rather than an operator at a terminal.
var ErrNotInteractive = errors.New("reset refused: confirmation must be typed at an interactive terminal")
