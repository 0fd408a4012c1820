// Package errs provides small error-handling helpers.
package errs

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes an io.Closer and logs the error instead of dropping it.
// Use in defer statements where the close error cannot change the outcome.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
