// Package device supplies point-in-time device capability snapshots.
// The pipeline never polls these values itself; it receives a snapshot
// per call from a Provider.
package device

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/dntrply/MedicationReminder-sub002/internal/domain"
)

// Provider yields a fresh capability snapshot at call time.
type Provider interface {
	Snapshot() (domain.DeviceSnapshot, error)
}

// Env carries the environment state only the host can know: network
// class and power state. A desktop host is assumed plugged in on an
// unmetered network unless it says otherwise.
type Env struct {
	UnmeteredNetwork bool
	Charging         bool
	BatteryLow       bool
}

// DefaultEnv is the desktop-host assumption.
func DefaultEnv() Env {
	return Env{UnmeteredNetwork: true, Charging: true, BatteryLow: false}
}

// Collector fills memory and storage from the OS and merges in the
// host-supplied environment state.
type Collector struct {
	storagePath   string
	env           func() Env
	virtualMemory func() (*mem.VirtualMemoryStat, error)
	diskUsage     func(path string) (*disk.UsageStat, error)
}

// NewCollector builds a collector reporting free storage for the volume
// holding storagePath. env is called per snapshot; nil means DefaultEnv.
func NewCollector(storagePath string, env func() Env) *Collector {
	if env == nil {
		env = DefaultEnv
	}
	return &Collector{
		storagePath:   storagePath,
		env:           env,
		virtualMemory: mem.VirtualMemory,
		diskUsage:     disk.Usage,
	}
}

// NewCollectorForTests builds a collector with injectable OS readers.
func NewCollectorForTests(
	storagePath string,
	env func() Env,
	virtualMemory func() (*mem.VirtualMemoryStat, error),
	diskUsage func(path string) (*disk.UsageStat, error),
) *Collector {
	c := NewCollector(storagePath, env)
	if virtualMemory != nil {
		c.virtualMemory = virtualMemory
	}
	if diskUsage != nil {
		c.diskUsage = diskUsage
	}
	return c
}

// Snapshot reads current memory and storage capability and merges the
// host environment state.
func (c *Collector) Snapshot() (domain.DeviceSnapshot, error) {
	vm, err := c.virtualMemory()
	if err != nil {
		return domain.DeviceSnapshot{}, fmt.Errorf("reading memory info: %w", err)
	}

	usage, err := c.diskUsage(c.storagePath)
	if err != nil {
		return domain.DeviceSnapshot{}, fmt.Errorf("reading storage info for %s: %w", c.storagePath, err)
	}

	env := c.env()
	return domain.DeviceSnapshot{
		TotalMemoryBytes: vm.Total,
		FreeStorageBytes: usage.Free,
		UnmeteredNetwork: env.UnmeteredNetwork,
		Charging:         env.Charging,
		BatteryLow:       env.BatteryLow,
	}, nil
}

// Static is a fixed snapshot Provider, used by tests and by hosts that
// resolve capability themselves.
type Static struct {
	S domain.DeviceSnapshot
}

// Snapshot returns the fixed snapshot.
func (s Static) Snapshot() (domain.DeviceSnapshot, error) {
	return s.S, nil
}
