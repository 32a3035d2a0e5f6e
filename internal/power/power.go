// Package power reports the host's power source and low-power state, which
// the refresh policy uses to pick a tick rate.
package power

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultLowPowerThreshold is the battery percentage at or below which a
// discharging battery counts as low power.
const DefaultLowPowerThreshold = 20

// State is a point-in-time reading.
type State struct {
	OnBattery bool
	// Capacity is the battery charge in percent, or -1 when unknown.
	Capacity int
	LowPower bool
}

// Source produces power readings.
type Source interface {
	Read() (State, error)
}

// Sysfs reads /sys/class/power_supply and the ACPI platform profile.
type Sysfs struct {
	// Root defaults to "/sys".
	Root string
	// LowPowerThreshold defaults to DefaultLowPowerThreshold.
	LowPowerThreshold int
}

// Read implements Source. A host without a battery reads as on AC power.
func (s Sysfs) Read() (State, error) {
	root := s.Root
	if root == "" {
		root = "/sys"
	}
	threshold := s.LowPowerThreshold
	if threshold <= 0 {
		threshold = DefaultLowPowerThreshold
	}

	st := State{Capacity: -1}
	if profile, err := readString(filepath.Join(root, "firmware", "acpi", "platform_profile")); err == nil {
		st.LowPower = profile == "low-power"
	}

	supplies, err := os.ReadDir(filepath.Join(root, "class", "power_supply"))
	if err != nil {
		return st, nil
	}

	foundBattery := false
	for _, entry := range supplies {
		dir := filepath.Join(root, "class", "power_supply", entry.Name())
		kind, err := readString(filepath.Join(dir, "type"))
		if err != nil {
			continue
		}
		switch kind {
		case "Mains":
			if online, err := readString(filepath.Join(dir, "online")); err == nil && online == "1" {
				st.OnBattery = false
				return finish(st, foundBattery, threshold), nil
			}
		case "Battery":
			if foundBattery {
				continue
			}
			foundBattery = true
			if status, err := readString(filepath.Join(dir, "status")); err == nil {
				st.OnBattery = status == "Discharging"
			}
			if capStr, err := readString(filepath.Join(dir, "capacity")); err == nil {
				if n, err := strconv.Atoi(capStr); err == nil {
					st.Capacity = n
				}
			}
		}
	}
	return finish(st, foundBattery, threshold), nil
}

func finish(st State, hasBattery bool, threshold int) State {
	if hasBattery && st.OnBattery && st.Capacity >= 0 && st.Capacity <= threshold {
		st.LowPower = true
	}
	return st
}

func readString(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Watch polls src every interval and calls fn with the first reading and
// then with every reading that differs from the previous one. It returns
// when ctx is done. Read errors are skipped.
func Watch(ctx context.Context, src Source, interval time.Duration, fn func(State)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	var (
		last State
		have bool
	)
	poll := func() {
		st, err := src.Read()
		if err != nil {
			return
		}
		if have && st == last {
			return
		}
		last, have = st, true
		fn(st)
	}

	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			poll()
		}
	}
}
