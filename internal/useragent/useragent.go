// Package useragent classifies clients by substring matching on the
// User-Agent header. It is a heuristic for analytics, not a parser.
package useragent

import "strings"

// Device types.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// Browser names.
const (
	BrowserEdge    = "Edge"
	BrowserOpera   = "Opera"
	BrowserSamsung = "Samsung Internet"
	BrowserFirefox = "Firefox"
	BrowserChrome  = "Chrome"
	BrowserSafari  = "Safari"
	BrowserIE      = "Internet Explorer"
	BrowserOther   = "Other"
)

// Client is the classification of a single user agent.
type Client struct {
	Device  string
	Browser string
}

// Classify returns the device type and browser for ua.
func Classify(ua string) Client {
	return Client{Device: Device(ua), Browser: Browser(ua)}
}

// Device classifies ua as tablet, mobile or desktop. Tablets are checked
// first because iPad user agents also carry the "Mobile" token.
func Device(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "ipad"), strings.Contains(lower, "tablet"), strings.Contains(lower, "kindle"):
		return DeviceTablet
	case strings.Contains(lower, "mobile"),
		strings.Contains(lower, "iphone"),
		strings.Contains(lower, "ipod"),
		strings.Contains(lower, "android"),
		strings.Contains(lower, "windows phone"):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

// Browser returns the browser family. Order matters: Chromium derivatives
// carry "Chrome" and "Safari" tokens, and Chrome carries "Safari".
func Browser(ua string) string {
	switch {
	case strings.Contains(ua, "Edg/"), strings.Contains(ua, "Edge/"), strings.Contains(ua, "EdgA/"), strings.Contains(ua, "EdgiOS/"):
		return BrowserEdge
	case strings.Contains(ua, "OPR/"), strings.Contains(ua, "Opera"):
		return BrowserOpera
	case strings.Contains(ua, "SamsungBrowser/"):
		return BrowserSamsung
	case strings.Contains(ua, "Firefox/"), strings.Contains(ua, "FxiOS/"):
		return BrowserFirefox
	case strings.Contains(ua, "Chrome/"), strings.Contains(ua, "CriOS/"), strings.Contains(ua, "Chromium/"):
		return BrowserChrome
	case strings.Contains(ua, "Safari/"):
		return BrowserSafari
	case strings.Contains(ua, "MSIE "), strings.Contains(ua, "Trident/"):
		return BrowserIE
	default:
		return BrowserOther
	}
}
