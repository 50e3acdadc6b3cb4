//go:build !darwin && !linux

package platform

func newPlatformPower() Power {
	return noopPower{}
}
