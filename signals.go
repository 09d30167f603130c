package skein

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for serializer events.
var (
	SignalCodecCreated        = capitan.NewSignal("skein.codec.created", "Codec instantiated")
	SignalSerializeStart      = capitan.NewSignal("skein.serialize.start", "Serialize operation beginning")
	SignalSerializeComplete   = capitan.NewSignal("skein.serialize.complete", "Serialize operation finished")
	SignalDeserializeStart    = capitan.NewSignal("skein.deserialize.start", "Deserialize operation beginning")
	SignalDeserializeComplete = capitan.NewSignal("skein.deserialize.complete", "Deserialize operation finished")
	SignalValidateComplete    = capitan.NewSignal("skein.validate.complete", "Validate operation finished")
	SignalDepthTruncated      = capitan.NewSignal("skein.depth.truncated", "Subtree replaced by null past the depth limit")
	SignalTypeRegistered      = capitan.NewSignal("skein.type.registered", "Type added to a registry")
)

// Keys for typed event data.
var (
	KeyTypeName   = capitan.NewStringKey("type_name")
	KeyPath       = capitan.NewStringKey("path")
	KeySize       = capitan.NewIntKey("size")
	KeyDepth      = capitan.NewIntKey("depth")
	KeyFrames     = capitan.NewIntKey("frames")
	KeyReferences = capitan.NewIntKey("references")
	KeyTruncated  = capitan.NewIntKey("truncated")
	KeyDuration   = capitan.NewDurationKey("duration")
	KeyError      = capitan.NewErrorKey("error")
)

// passStats summarizes one read or write pass.
type passStats struct {
	size       int
	frames     int
	references int
	truncated  int
}

// emitCodecCreated emits an event when a codec is created.
func emitCodecCreated(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalCodecCreated,
		KeyTypeName.Field(typeName),
	)
}

// emitSerializeStart emits an event when serialize begins.
func emitSerializeStart(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalSerializeStart,
		KeyTypeName.Field(typeName),
	)
}

// emitSerializeComplete emits an event when serialize finishes.
func emitSerializeComplete(ctx context.Context, typeName string, stats passStats, duration time.Duration, err error) {
	fields := stats.fields(typeName, duration)
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalSerializeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalSerializeComplete, fields...)
	}
}

// emitDeserializeStart emits an event when deserialize begins.
func emitDeserializeStart(ctx context.Context, typeName string, size int) {
	capitan.Emit(ctx, SignalDeserializeStart,
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
	)
}

// emitDeserializeComplete emits an event when deserialize finishes.
func emitDeserializeComplete(ctx context.Context, typeName string, stats passStats, duration time.Duration, err error) {
	fields := stats.fields(typeName, duration)
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalDeserializeComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalDeserializeComplete, fields...)
	}
}

func (s passStats) fields(typeName string, duration time.Duration) []capitan.Field {
	return []capitan.Field{
		KeyTypeName.Field(typeName),
		KeySize.Field(s.size),
		KeyFrames.Field(s.frames),
		KeyReferences.Field(s.references),
		KeyTruncated.Field(s.truncated),
		KeyDuration.Field(duration),
	}
}

// emitValidateComplete emits an event when validate finishes.
func emitValidateComplete(ctx context.Context, size, frames int, err error) {
	fields := []capitan.Field{
		KeySize.Field(size),
		KeyFrames.Field(frames),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalValidateComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalValidateComplete, fields...)
	}
}

// emitDepthTruncated emits an event when a subtree is cut at the depth limit.
func emitDepthTruncated(ctx context.Context, path string, depth int) {
	capitan.Emit(ctx, SignalDepthTruncated,
		KeyPath.Field(displayPath(path)),
		KeyDepth.Field(depth),
	)
}

// emitTypeRegistered emits an event when a registry learns a type name.
func emitTypeRegistered(ctx context.Context, typeName string) {
	capitan.Emit(ctx, SignalTypeRegistered,
		KeyTypeName.Field(typeName),
	)
}
