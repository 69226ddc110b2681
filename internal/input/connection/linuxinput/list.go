package linuxinput

import (
	"github.com/dshills/waystorm/internal/input"
)

// DeviceInfo describes an event device.
type DeviceInfo struct {
	Path         string
	Name         string
	Capabilities []input.Capability
	Multitouch   bool
	Err          error
}

// ListDevices reports every event device in dir, including the ones that
// could not be opened.
func ListDevices(dir string) ([]DeviceInfo, error) {
	paths, err := eventNodes(dir)
	if err != nil {
		return nil, err
	}
	infos := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		d, err := openDevice(p)
		if err != nil {
			infos = append(infos, DeviceInfo{Path: p, Err: err})
			continue
		}
		infos = append(infos, DeviceInfo{
			Path:         p,
			Name:         d.name,
			Capabilities: d.caps.capabilities(),
			Multitouch:   d.caps.multitouch,
		})
		_ = d.dev.File.Close()
	}
	return infos, nil
}
