// Package decode turns raw push frames into typed envelopes.
package decode

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"

	"github.com/kubecloud/console-agent/internal/model"
)

// Decoder parses raw event frames. A malformed frame is logged and dropped;
// it never stops the stream.
type Decoder struct {
	logger   *slog.Logger
	failures atomic.Int64
}

// NewDecoder creates a Decoder. A nil logger falls back to slog.Default().
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Decode parses one frame. The second return value is false when the frame
// is malformed and was dropped.
func (d *Decoder) Decode(data []byte) (model.Envelope, bool) {
	var env model.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		d.failures.Add(1)
		d.logger.Warn("dropping malformed event frame",
			"error", err,
			"bytes", len(data),
		)
		return model.Envelope{}, false
	}

	if env.Severity == "" {
		env.Severity = model.SeverityInfo
	}

	return env, true
}

// Failures returns the number of frames dropped as malformed.
func (d *Decoder) Failures() int64 {
	return d.failures.Load()
}
