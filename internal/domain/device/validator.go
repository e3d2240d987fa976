package device

import "fmt"

const minStorageMB = 10

// recommendedStorageMB рекомендуемый объем хранилища по классу устройства
var recommendedStorageMB = map[Type]int{
	TypeWeb:    100,
	TypeMobile: 200,
	TypeAR:     500,
	TypeVR:     1000,
}

// ValidationResult результат проверки возможностей
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator проверяет согласованность возможностей с классом устройства
type Validator interface {
	Validate(t Type, p Platform, c Capabilities) ValidationResult
}

// CapabilityValidator правила для web, mobile, ar и vr устройств
type CapabilityValidator struct{}

func NewCapabilityValidator() *CapabilityValidator {
	return &CapabilityValidator{}
}

// Validate возвращает ошибки (блокируют регистрацию) и предупреждения
func (v *CapabilityValidator) Validate(t Type, p Platform, c Capabilities) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}

	if !t.Valid() {
		res.fail("unknown device type %q", t)
	}
	if !p.Valid() {
		res.fail("unknown platform %q", p)
	}

	switch t {
	case TypeAR:
		if !c.AR {
			res.fail("AR devices must support AR")
		}
		if !c.Camera {
			res.fail("AR devices must have a camera")
		}
		if !c.Accelerometer || !c.Gyroscope {
			res.fail("AR devices must have accelerometer and gyroscope")
		}
	case TypeVR:
		if !c.VR {
			res.fail("VR devices must support VR")
		}
		if !c.Accelerometer || !c.Gyroscope {
			res.fail("VR devices must have accelerometer and gyroscope")
		}
		if !c.Speakers && !c.Microphone {
			res.fail("VR devices must have speakers or a microphone for accessibility")
		}
	case TypeMobile:
		if !c.Touch {
			res.fail("mobile devices must support touch input")
		}
		if !c.GPS {
			res.warn("mobile device without GPS: location features unavailable")
		}
	case TypeWeb:
		if !c.Keyboard && !c.Touch {
			res.fail("web devices must have keyboard or touch input")
		}
	}

	if p == PlatformWeb && t != TypeWeb {
		res.fail("platform %q requires device type %q", PlatformWeb, TypeWeb)
	}
	if t == TypeWeb && p != PlatformWeb {
		res.fail("device type %q requires platform %q", TypeWeb, PlatformWeb)
	}

	if c.StorageCapacityMB < minStorageMB {
		res.fail("storage capacity %d MB is below the minimum of %d MB", c.StorageCapacityMB, minStorageMB)
	} else if rec, ok := recommendedStorageMB[t]; ok && c.StorageCapacityMB < rec {
		res.warn("storage capacity %d MB is below the recommended %d MB for %s devices", c.StorageCapacityMB, rec, t)
	}

	if (t == TypeMobile || t == TypeAR) && !c.Speakers && !c.Microphone {
		res.warn("%s device without audio: accessibility features limited", t)
	}

	res.IsValid = len(res.Errors) == 0
	return res
}
