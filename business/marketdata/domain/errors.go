package domain

import "github.com/fd1az/cryptofeed/internal/apperror"

// NewSequenceGapError builds the terminal error a transformer returns when
// an L2 update's first sequence number does not immediately follow the
// previous update's last sequence number (Binance-style "first_update >
// prev_last + 1" check). Terminal: the reconnecting stream that owns this
// transformer must tear down and reconnect on receiving it.
func NewSequenceGapError(instrument Instrument, prevLast, firstUpdate int64) *apperror.AppError {
	return apperror.New(apperror.CodeSequenceGap,
		apperror.WithContext(instrument.String()),
		apperror.WithMessage("l2 sequence gap"),
	)
}

// NewUnknownSubscriptionError reports a payload whose envelope's subscription
// id does not match any routing entry for the current stream. Non-terminal:
// the stream continues, this is surfaced as Item(Err).
func NewUnknownSubscriptionError(subID string) *apperror.AppError {
	return apperror.New(apperror.CodeUnknownSubscriptionID, apperror.WithContext(subID))
}

// NewDecodeError reports a per-message JSON decode failure. Non-terminal.
func NewDecodeError(subID string, cause error) *apperror.AppError {
	return apperror.New(apperror.CodeDecodeFailed,
		apperror.WithContext(subID),
		apperror.WithCause(cause),
	)
}
