package ralph

import (
	"fmt"
	"regexp"
	"strings"
)

var promisePattern = regexp.MustCompile(`(?is)<promise>(.*?)</promise>`)

// CompletionResult reports whether CompletionDetector.Check decided the
// loop is done, and why.
type CompletionResult struct {
	Completed bool
	Reason    CompletionCondition
	Message   string
}

// CompletionDetector evaluates a Loop's configured CompletionConditions
// against one iteration's output and file-modification footprint.
type CompletionDetector struct {
	config            Config
	idleCount         int
	lastFilesModified map[string]struct{}
}

func NewCompletionDetector(config Config) *CompletionDetector {
	return &CompletionDetector{config: config, lastFilesModified: make(map[string]struct{})}
}

// Check runs every configured condition in order (promise tag, max
// iterations, idle threshold) and returns on the first that fires.
func (d *CompletionDetector) Check(content string, iteration int, filesModified map[string]struct{}) CompletionResult {
	if d.config.hasCondition(ConditionPromiseTag) {
		if match := promisePattern.FindStringSubmatch(content); match != nil {
			promiseText := strings.TrimSpace(match[1])
			if strings.Contains(strings.ToLower(promiseText), strings.ToLower(d.config.CompletionPromise)) {
				return CompletionResult{
					Completed: true,
					Reason:    ConditionPromiseTag,
					Message:   fmt.Sprintf("Completion promise detected: %s", promiseText),
				}
			}
		}
	}

	if d.config.hasCondition(ConditionMaxIterations) {
		if iteration >= d.config.MaxIterations {
			return CompletionResult{
				Completed: true,
				Reason:    ConditionMaxIterations,
				Message:   fmt.Sprintf("Max iterations (%d) reached", d.config.MaxIterations),
			}
		}
	}

	if d.config.hasCondition(ConditionIdleThreshold) {
		if setsEqual(filesModified, d.lastFilesModified) {
			d.idleCount++
		} else {
			d.idleCount = 0
			d.lastFilesModified = copySet(filesModified)
		}

		if d.idleCount >= d.config.IdleThreshold {
			return CompletionResult{
				Completed: true,
				Reason:    ConditionIdleThreshold,
				Message:   fmt.Sprintf("No file changes for %d iterations", d.idleCount),
			}
		}
	}

	return CompletionResult{}
}

func (d *CompletionDetector) Reset() {
	d.idleCount = 0
	d.lastFilesModified = make(map[string]struct{})
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func copySet(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}
