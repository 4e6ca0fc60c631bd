package dx

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// instanceSpec is one row of the built-in instance type table.
type instanceSpec struct {
	name    string
	memMiB  int64
	diskGiB int64
	cpus    int
}

// instanceTable lists the mem1/mem2/mem3 SSD families in price order.
// Selection picks the first (cheapest) row satisfying every constraint.
var instanceTable = []instanceSpec{
	{"mem1_ssd1_x2", 3 * 1024, 32, 2},
	{"mem1_ssd1_x4", 7 * 1024, 80, 4},
	{"mem1_ssd1_x8", 14 * 1024, 160, 8},
	{"mem1_ssd1_x16", 29 * 1024, 320, 16},
	{"mem2_ssd1_x2", 15 * 1024, 32, 2},
	{"mem2_ssd1_x4", 30 * 1024, 80, 4},
	{"mem2_ssd1_x8", 60 * 1024, 160, 8},
	{"mem3_ssd1_x2", 30 * 1024, 32, 2},
	{"mem3_ssd1_x4", 61 * 1024, 80, 4},
	{"mem3_ssd1_x8", 122 * 1024, 160, 8},
	{"mem3_ssd1_x16", 244 * 1024, 320, 16},
}

// DefaultInstanceType is used when a task states no resource
// requirements at all.
const DefaultInstanceType = "mem1_ssd1_x2"

// KnownInstanceType reports whether name appears in the instance table.
func KnownInstanceType(name string) bool {
	for _, spec := range instanceTable {
		if spec.name == name {
			return true
		}
	}
	return false
}

// ChooseInstanceType picks the cheapest instance satisfying the given
// constraints. Zero means unconstrained.
func ChooseInstanceType(memMiB, diskGiB int64, cpus int) (string, error) {
	for _, spec := range instanceTable {
		if memMiB > 0 && spec.memMiB < memMiB {
			continue
		}
		if diskGiB > 0 && spec.diskGiB < diskGiB {
			continue
		}
		if cpus > 0 && spec.cpus < cpus {
			continue
		}
		return spec.name, nil
	}
	return "", fmt.Errorf("no instance type satisfies mem=%d MiB disk=%d GiB cpu=%d", memMiB, diskGiB, cpus)
}

// ParseMemory converts a WDL memory runtime value ("3 GB", "2048 MB",
// "1.5GiB") to mebibytes.
func ParseMemory(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse memory %q: %w", s, err)
	}
	mib := int64(n / (1024 * 1024))
	if mib == 0 && n > 0 {
		mib = 1
	}
	return mib, nil
}
