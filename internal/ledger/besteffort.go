package ledger

import (
	"context"
	"log/slog"
)

// Outcome is the result of a best-effort append.
type Outcome struct {
	Entry    Entry
	Recorded bool
	Err      error
}

// BestEffort appends entries without letting a ledger failure abort the
// caller. Failures are logged and reported in the Outcome.
type BestEffort struct {
	writer Writer
	logger *slog.Logger
	onFail func()
}

// NewBestEffort wraps writer. onFail may be nil.
func NewBestEffort(writer Writer, logger *slog.Logger, onFail func()) *BestEffort {
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffort{writer: writer, logger: logger, onFail: onFail}
}

// Append tries to write entry once.
func (b *BestEffort) Append(ctx context.Context, entry Entry) Outcome {
	stored, err := b.writer.Append(ctx, entry)
	if err != nil {
		b.logger.Warn("ledger append failed",
			slog.String("item_code", entry.ItemCode),
			slog.String("ref_kind", string(entry.RefKind)),
			slog.String("ref_number", entry.RefNumber),
			slog.Any("error", err))
		if b.onFail != nil {
			b.onFail()
		}
		return Outcome{Entry: entry, Err: err}
	}
	return Outcome{Entry: stored, Recorded: true}
}
