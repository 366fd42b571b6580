package event

import "strings"

// InferDeviceFromUserAgent classifies a User-Agent header. A nil header is
// unknown; anything else maps to mobile, tablet or desktop.
func InferDeviceFromUserAgent(userAgent *string) Device {
	if userAgent == nil {
		return DeviceUnknown
	}

	ua := strings.ToLower(*userAgent)
	switch {
	case strings.Contains(ua, "mobile"),
		strings.Contains(ua, "iphone"),
		strings.Contains(ua, "android"),
		strings.Contains(ua, "ipad"):
		return DeviceMobile
	case strings.Contains(ua, "tablet"):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// InferDevice treats an empty header as absent.
func InferDevice(userAgent string) Device {
	if userAgent == "" {
		return DeviceUnknown
	}
	return InferDeviceFromUserAgent(&userAgent)
}
