package runner

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// systemInfo describes the node the job runs on, including the scheduler
// allocation when there is one.
func systemInfo() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	parts := []string{
		fmt.Sprintf("host=%s", host),
		fmt.Sprintf("os=%s/%s", runtime.GOOS, runtime.GOARCH),
		fmt.Sprintf("cpus=%d", runtime.NumCPU()),
	}
	for _, key := range []string{"SLURM_JOB_ID", "SLURM_JOB_PARTITION", "SLURM_JOB_NODELIST", "SLURM_NTASKS"} {
		if v := os.Getenv(key); v != "" {
			parts = append(parts, strings.ToLower(key)+"="+v)
		}
	}
	return strings.Join(parts, " ")
}
