package shared

import "fmt"

// JobLockKey builds redis keys guarding single-flight background jobs.
func JobLockKey(job string) string {
	return fmt.Sprintf("rv:jobs:%s:lock", job)
}
