package decode

import (
	"io"
	"log/slog"
	"testing"

	"github.com/kubecloud/console-agent/internal/model"
)

func newTestDecoder() *Decoder {
	return NewDecoder(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestDecodeValidFrame(t *testing.T) {
	d := newTestDecoder()

	env, ok := d.Decode([]byte(`{
		"type": "deployment",
		"severity": "success",
		"data": {"subject": "Cluster ready", "message": "web-1 is up"},
		"task_id": "wf-9"
	}`))
	if !ok {
		t.Fatal("Decode = false, want true")
	}
	if env.Kind != model.KindDeployment {
		t.Errorf("Kind = %q, want deployment", env.Kind)
	}
	if env.Severity != model.SeveritySuccess {
		t.Errorf("Severity = %q, want success", env.Severity)
	}
	if env.CorrelationID != "wf-9" {
		t.Errorf("CorrelationID = %q, want wf-9", env.CorrelationID)
	}
	if env.Subject() != "Cluster ready" {
		t.Errorf("Subject = %q", env.Subject())
	}
}

func TestDecodeMalformedFrameDropped(t *testing.T) {
	d := newTestDecoder()

	if _, ok := d.Decode([]byte(`{"type": "node",`)); ok {
		t.Error("Decode = true for malformed frame")
	}
	if _, ok := d.Decode([]byte(`not json at all`)); ok {
		t.Error("Decode = true for non-JSON frame")
	}
	if n := d.Failures(); n != 2 {
		t.Errorf("Failures = %d, want 2", n)
	}
}

func TestDecodeDefaultsSeverityToInfo(t *testing.T) {
	d := newTestDecoder()

	env, ok := d.Decode([]byte(`{"type": "user"}`))
	if !ok {
		t.Fatal("Decode = false, want true")
	}
	if env.Severity != model.SeverityInfo {
		t.Errorf("Severity = %q, want info", env.Severity)
	}
}

func TestDecodePreservesUnknownKind(t *testing.T) {
	d := newTestDecoder()

	env, ok := d.Decode([]byte(`{"type": "quota", "severity": "warning"}`))
	if !ok {
		t.Fatal("Decode = false, want true")
	}
	if env.Kind != model.Kind("quota") {
		t.Errorf("Kind = %q, want quota", env.Kind)
	}
}
