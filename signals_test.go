package skein

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmitCodecCreated(_ *testing.T) {
	// Should not panic
	emitCodecCreated(context.Background(), "TestType")
}

func TestEmitSerializeStart(_ *testing.T) {
	emitSerializeStart(context.Background(), "TestType")
}

func TestEmitSerializeComplete_Success(_ *testing.T) {
	stats := passStats{size: 31, frames: 4, references: 1}
	emitSerializeComplete(context.Background(), "TestType", stats, 100*time.Millisecond, nil)
}

func TestEmitSerializeComplete_Error(_ *testing.T) {
	emitSerializeComplete(context.Background(), "TestType", passStats{}, 100*time.Millisecond, errors.New("test error"))
}

func TestEmitDeserializeStart(_ *testing.T) {
	emitDeserializeStart(context.Background(), "TestType", 31)
}

func TestEmitDeserializeComplete_Success(_ *testing.T) {
	stats := passStats{size: 31, frames: 4, references: 1, truncated: 2}
	emitDeserializeComplete(context.Background(), "TestType", stats, 100*time.Millisecond, nil)
}

func TestEmitDeserializeComplete_Error(_ *testing.T) {
	emitDeserializeComplete(context.Background(), "TestType", passStats{size: 3}, 100*time.Millisecond, errors.New("test error"))
}

func TestEmitValidateComplete(_ *testing.T) {
	emitValidateComplete(context.Background(), 31, 4, nil)
	emitValidateComplete(context.Background(), 2, 0, errors.New("test error"))
}

func TestEmitDepthTruncated(_ *testing.T) {
	emitDepthTruncated(context.Background(), "Next.Next", 33)
	emitDepthTruncated(context.Background(), "", 33)
}

func TestEmitTypeRegistered(_ *testing.T) {
	emitTypeRegistered(context.Background(), "example.com/pkg.Type")
}

func TestPassStatsFields(t *testing.T) {
	fields := passStats{size: 1, frames: 2, references: 3, truncated: 4}.fields("T", time.Second)
	if len(fields) != 6 {
		t.Errorf("fields() returned %d fields, want 6", len(fields))
	}
}

func TestSignalVariables(t *testing.T) {
	// Verify signals are properly initialized
	signals := []struct {
		name   string
		signal interface{}
	}{
		{"SignalCodecCreated", SignalCodecCreated},
		{"SignalSerializeStart", SignalSerializeStart},
		{"SignalSerializeComplete", SignalSerializeComplete},
		{"SignalDeserializeStart", SignalDeserializeStart},
		{"SignalDeserializeComplete", SignalDeserializeComplete},
		{"SignalValidateComplete", SignalValidateComplete},
		{"SignalDepthTruncated", SignalDepthTruncated},
		{"SignalTypeRegistered", SignalTypeRegistered},
	}

	for _, s := range signals {
		if s.signal == nil {
			t.Errorf("%s is nil", s.name)
		}
	}
}

func TestKeyVariables(t *testing.T) {
	// Verify keys are properly initialized
	keys := []struct {
		name string
		key  interface{}
	}{
		{"KeyTypeName", KeyTypeName},
		{"KeyPath", KeyPath},
		{"KeySize", KeySize},
		{"KeyDepth", KeyDepth},
		{"KeyFrames", KeyFrames},
		{"KeyReferences", KeyReferences},
		{"KeyTruncated", KeyTruncated},
		{"KeyDuration", KeyDuration},
		{"KeyError", KeyError},
	}

	for _, k := range keys {
		if k.key == nil {
			t.Errorf("%s is nil", k.name)
		}
	}
}
