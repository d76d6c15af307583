package host

import "runtime"

// Platform maps a Go GOOS value onto the OS tags above. Values without a tag
// are returned unchanged so they can be reported as unsupported.
func Platform(goos string) string {
	switch goos {
	case "darwin":
		return MacOS
	case "linux":
		return LinuxOS
	case "windows":
		return WindowsOS
	default:
		return goos
	}
}

// CurrentPlatform returns the OS tag of the running host.
func CurrentPlatform() string {
	return Platform(runtime.GOOS)
}

// SupportedPlatforms lists the OS tags the bridge detects devices on.
func SupportedPlatforms() []string {
	return []string{MacOS, LinuxOS, WindowsOS}
}
