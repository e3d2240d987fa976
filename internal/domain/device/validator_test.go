package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validCapabilities(t Type) Capabilities {
	switch t {
	case TypeAR:
		return Capabilities{AR: true, Camera: true, Accelerometer: true, Gyroscope: true, Touch: true, Speakers: true, StorageCapacityMB: 1024}
	case TypeVR:
		return Capabilities{VR: true, Accelerometer: true, Gyroscope: true, Speakers: true, StorageCapacityMB: 4096}
	case TypeMobile:
		return Capabilities{Touch: true, GPS: true, Camera: true, Speakers: true, Microphone: true, StorageCapacityMB: 512}
	default:
		return Capabilities{Keyboard: true, Speakers: true, StorageCapacityMB: 256}
	}
}

func platformFor(t Type) Platform {
	switch t {
	case TypeWeb:
		return PlatformWeb
	case TypeVR:
		return PlatformWindows
	case TypeAR:
		return PlatformIOS
	default:
		return PlatformAndroid
	}
}

func TestCapabilityValidator_ValidPerClass(t *testing.T) {
	v := NewCapabilityValidator()

	for _, typ := range []Type{TypeWeb, TypeMobile, TypeAR, TypeVR} {
		t.Run(string(typ), func(t *testing.T) {
			res := v.Validate(typ, platformFor(typ), validCapabilities(typ))
			assert.True(t, res.IsValid, "errors: %v", res.Errors)
			assert.Empty(t, res.Errors)
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestCapabilityValidator_RequiredFlags(t *testing.T) {
	v := NewCapabilityValidator()

	tests := []struct {
		name   string
		typ    Type
		mutate func(*Capabilities)
	}{
		{name: "ar without ar", typ: TypeAR, mutate: func(c *Capabilities) { c.AR = false }},
		{name: "ar without camera", typ: TypeAR, mutate: func(c *Capabilities) { c.Camera = false }},
		{name: "ar without gyroscope", typ: TypeAR, mutate: func(c *Capabilities) { c.Gyroscope = false }},
		{name: "ar without accelerometer", typ: TypeAR, mutate: func(c *Capabilities) { c.Accelerometer = false }},
		{name: "vr without vr", typ: TypeVR, mutate: func(c *Capabilities) { c.VR = false }},
		{name: "vr without motion sensors", typ: TypeVR, mutate: func(c *Capabilities) { c.Accelerometer = false }},
		{name: "vr without audio", typ: TypeVR, mutate: func(c *Capabilities) { c.Speakers = false; c.Microphone = false }},
		{name: "mobile without touch", typ: TypeMobile, mutate: func(c *Capabilities) { c.Touch = false }},
		{name: "web without input", typ: TypeWeb, mutate: func(c *Capabilities) { c.Keyboard = false; c.Touch = false }},
		{name: "storage below floor", typ: TypeWeb, mutate: func(c *Capabilities) { c.StorageCapacityMB = 5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := validCapabilities(tt.typ)
			tt.mutate(&caps)

			res := v.Validate(tt.typ, platformFor(tt.typ), caps)
			assert.False(t, res.IsValid)
			assert.NotEmpty(t, res.Errors)
		})
	}
}

func TestCapabilityValidator_PlatformTypeMismatch(t *testing.T) {
	v := NewCapabilityValidator()

	for _, typ := range []Type{TypeMobile, TypeAR, TypeVR} {
		res := v.Validate(typ, PlatformWeb, validCapabilities(typ))
		assert.False(t, res.IsValid, "type %s on web platform", typ)
	}

	for _, p := range []Platform{PlatformIOS, PlatformAndroid, PlatformWindows, PlatformMacOS, PlatformLinux} {
		res := v.Validate(TypeWeb, p, validCapabilities(TypeWeb))
		assert.False(t, res.IsValid, "web type on platform %s", p)
	}
}

func TestCapabilityValidator_Warnings(t *testing.T) {
	v := NewCapabilityValidator()

	t.Run("mobile without gps", func(t *testing.T) {
		caps := validCapabilities(TypeMobile)
		caps.GPS = false
		res := v.Validate(TypeMobile, PlatformAndroid, caps)
		assert.True(t, res.IsValid)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("storage below recommendation", func(t *testing.T) {
		caps := validCapabilities(TypeVR)
		caps.StorageCapacityMB = 500
		res := v.Validate(TypeVR, PlatformWindows, caps)
		assert.True(t, res.IsValid)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("ar without audio", func(t *testing.T) {
		caps := validCapabilities(TypeAR)
		caps.Speakers = false
		caps.Microphone = false
		res := v.Validate(TypeAR, PlatformIOS, caps)
		assert.True(t, res.IsValid)
		assert.Len(t, res.Warnings, 1)
	})
}

func TestCapabilityValidator_UnknownEnums(t *testing.T) {
	v := NewCapabilityValidator()

	res := v.Validate("tablet", PlatformAndroid, validCapabilities(TypeMobile))
	assert.False(t, res.IsValid)

	res = v.Validate(TypeMobile, "symbian", validCapabilities(TypeMobile))
	assert.False(t, res.IsValid)
}
