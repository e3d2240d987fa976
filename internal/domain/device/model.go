package device

import "time"

// Type класс устройства
type Type string

const (
	TypeWeb    Type = "web"
	TypeMobile Type = "mobile"
	TypeAR     Type = "ar"
	TypeVR     Type = "vr"
)

// Valid сообщает, известен ли класс устройства
func (t Type) Valid() bool {
	switch t {
	case TypeWeb, TypeMobile, TypeAR, TypeVR:
		return true
	}
	return false
}

// Platform платформа устройства
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWindows Platform = "windows"
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformWeb     Platform = "web"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWindows, PlatformMacOS, PlatformLinux, PlatformWeb:
		return true
	}
	return false
}

// Capabilities возможности устройства
type Capabilities struct {
	Camera            bool `json:"camera"`
	AR                bool `json:"ar"`
	VR                bool `json:"vr"`
	GPS               bool `json:"gps"`
	Accelerometer     bool `json:"accelerometer"`
	Gyroscope         bool `json:"gyroscope"`
	Touch             bool `json:"touch"`
	Keyboard          bool `json:"keyboard"`
	Microphone        bool `json:"microphone"`
	Speakers          bool `json:"speakers"`
	OfflineSupport    bool `json:"offline_support"`
	StorageCapacityMB int  `json:"storage_capacity_mb"`
}

// Metadata справочные сведения об устройстве; сервер на них не опирается
type Metadata struct {
	Timezone         string   `json:"timezone,omitempty"`
	Locale           string   `json:"locale,omitempty"`
	ScreenResolution string   `json:"screen_resolution,omitempty"`
	ScreenDensity    float64  `json:"screen_density,omitempty"`
	NetworkType      string   `json:"network_type,omitempty"`
	BatteryLevel     *float64 `json:"battery_level,omitempty"`
}

// Device зарегистрированное устройство
type Device struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Type         Type         `json:"device_type"`
	Platform     Platform     `json:"platform"`
	Name         string       `json:"name"`
	Model        string       `json:"model,omitempty"`
	OSVersion    string       `json:"os_version,omitempty"`
	AppVersion   string       `json:"app_version,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
	Metadata     Metadata     `json:"metadata"`
	IsActive     bool         `json:"is_active"`
	LastSyncAt   *time.Time   `json:"last_sync_at,omitempty"`
	RegisteredAt time.Time    `json:"registered_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// LastSeen время последней активности: последняя синхронизация либо регистрация
func (d *Device) LastSeen() time.Time {
	if d.LastSyncAt != nil {
		return *d.LastSyncAt
	}
	return d.RegisteredAt
}

// CapabilitiesPatch частичное обновление возможностей; nil — оставить как было
type CapabilitiesPatch struct {
	Camera            *bool `json:"camera,omitempty"`
	AR                *bool `json:"ar,omitempty"`
	VR                *bool `json:"vr,omitempty"`
	GPS               *bool `json:"gps,omitempty"`
	Accelerometer     *bool `json:"accelerometer,omitempty"`
	Gyroscope         *bool `json:"gyroscope,omitempty"`
	Touch             *bool `json:"touch,omitempty"`
	Keyboard          *bool `json:"keyboard,omitempty"`
	Microphone        *bool `json:"microphone,omitempty"`
	Speakers          *bool `json:"speakers,omitempty"`
	OfflineSupport    *bool `json:"offline_support,omitempty"`
	StorageCapacityMB *int  `json:"storage_capacity_mb,omitempty"`
}

// Apply накладывает патч на текущие возможности
func (p CapabilitiesPatch) Apply(c Capabilities) Capabilities {
	setBool(&c.Camera, p.Camera)
	setBool(&c.AR, p.AR)
	setBool(&c.VR, p.VR)
	setBool(&c.GPS, p.GPS)
	setBool(&c.Accelerometer, p.Accelerometer)
	setBool(&c.Gyroscope, p.Gyroscope)
	setBool(&c.Touch, p.Touch)
	setBool(&c.Keyboard, p.Keyboard)
	setBool(&c.Microphone, p.Microphone)
	setBool(&c.Speakers, p.Speakers)
	setBool(&c.OfflineSupport, p.OfflineSupport)
	if p.StorageCapacityMB != nil {
		c.StorageCapacityMB = *p.StorageCapacityMB
	}
	return c
}

// MetadataPatch частичное обновление метаданных
type MetadataPatch struct {
	Timezone         *string  `json:"timezone,omitempty"`
	Locale           *string  `json:"locale,omitempty"`
	ScreenResolution *string  `json:"screen_resolution,omitempty"`
	ScreenDensity    *float64 `json:"screen_density,omitempty"`
	NetworkType      *string  `json:"network_type,omitempty"`
	BatteryLevel     *float64 `json:"battery_level,omitempty"`
}

// Apply накладывает патч на текущие метаданные
func (p MetadataPatch) Apply(m Metadata) Metadata {
	setString(&m.Timezone, p.Timezone)
	setString(&m.Locale, p.Locale)
	setString(&m.ScreenResolution, p.ScreenResolution)
	setString(&m.NetworkType, p.NetworkType)
	if p.ScreenDensity != nil {
		m.ScreenDensity = *p.ScreenDensity
	}
	if p.BatteryLevel != nil {
		v := *p.BatteryLevel
		m.BatteryLevel = &v
	}
	return m
}

// Patch изменение устройства, применяемое хранилищем
type Patch struct {
	Name         *string
	Model        *string
	OSVersion    *string
	AppVersion   *string
	Capabilities *CapabilitiesPatch
	Metadata     *MetadataPatch
	IsActive     *bool
}

// Apply сливает патч с устройством и проставляет UpdatedAt
func (p Patch) Apply(d *Device, now time.Time) {
	setString(&d.Name, p.Name)
	setString(&d.Model, p.Model)
	setString(&d.OSVersion, p.OSVersion)
	setString(&d.AppVersion, p.AppVersion)
	if p.Capabilities != nil {
		d.Capabilities = p.Capabilities.Apply(d.Capabilities)
	}
	if p.Metadata != nil {
		d.Metadata = p.Metadata.Apply(d.Metadata)
	}
	if p.IsActive != nil {
		d.IsActive = *p.IsActive
	}
	d.UpdatedAt = now
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
