package pool

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const (
	gib = 1 << 30
)

// Resources is a snapshot of the machine the runner sizes itself to.
type Resources struct {
	CPUs     int
	MemBytes uint64
}

// DetectResources reads CPU count and total memory. When total memory
// cannot be determined it is reported as zero and sizing assumes a
// small machine.
func DetectResources() Resources {
	return Resources{
		CPUs:     runtime.NumCPU(),
		MemBytes: totalMemory(),
	}
}

// totalMemory parses MemTotal from /proc/meminfo. Returns 0 on any
// failure, including non-linux hosts.
func totalMemory() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}

// suggestWorkers sizes a worker count from the machine snapshot and
// the batch size. Small machines get 2 workers, mid-size half the
// CPUs, large machines one per CPU. Tiny batches never get more than
// 2 workers. Always at least 1.
func suggestWorkers(res Resources, itemCount int) int {
	var n int
	switch {
	case res.MemBytes < 4*gib:
		n = 2
	case res.MemBytes < 8*gib:
		n = res.CPUs / 2
	default:
		n = res.CPUs
	}
	if itemCount > 0 && itemCount < 5 && n > 2 {
		n = 2
	}
	if n < 1 {
		n = 1
	}
	return n
}
