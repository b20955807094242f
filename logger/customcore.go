package logger

import (
	"go.uber.org/zap/zapcore"
)

// trailingFieldKeys are moved behind every other field of an entry, in this order.
var trailingFieldKeys = []string{"target", "run_id"}

type customCore struct {
	zapcore.Core
}

// With adds structured context to the Core.
func (c *customCore) With(fields []zapcore.Field) zapcore.Core {
	return &customCore{c.Core.With(reorderFields(fields))}
}

// Write serializes the Entry and any Fields supplied at the log site and writes them to their destination.
func (c *customCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, reorderFields(fields))
}

// Check determines whether the supplied Entry should be logged.
func (c *customCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, c)
	}
	return checkedEntry
}

// Sync flushes buffered logs (if any).
func (c *customCore) Sync() error {
	return c.Core.Sync()
}

// reorderFields keeps the relative order of ordinary fields and appends the trailing keys that are present.
func reorderFields(fields []zapcore.Field) []zapcore.Field {
	reordered := make([]zapcore.Field, 0, len(fields))
	trailing := make(map[string]zapcore.Field, len(trailingFieldKeys))
	for _, field := range fields {
		if isTrailingKey(field.Key) {
			trailing[field.Key] = field
			continue
		}
		reordered = append(reordered, field)
	}
	for _, key := range trailingFieldKeys {
		if field, ok := trailing[key]; ok {
			reordered = append(reordered, field)
		}
	}
	return reordered
}

func isTrailingKey(key string) bool {
	for _, k := range trailingFieldKeys {
		if k == key {
			return true
		}
	}
	return false
}
