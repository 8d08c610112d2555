// Package logger provides the console logger for armada runs.
//
// Output is append-only: the wave plan is printed before execution and every
// terminal ticket status, overlap warning, merge outcome, and validation
// result is printed as it occurs, so a long-running DAG stays observable.
// All methods are safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/armada/internal/models"
)

// Log level constants for filtering
const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

// conflictPreviewCap limits how many overlapping paths a warning prints.
const conflictPreviewCap = 3

// ConsoleLogger writes timestamped, optionally colored progress lines.
type ConsoleLogger struct {
	writer      io.Writer
	level       int
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger writing to w. Valid levels are
// debug, info, warn, error (case-insensitive); anything else defaults to
// info. Color is enabled only when w is a TTY and NO_COLOR is unset.
func NewConsoleLogger(w io.Writer, level string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      w,
		level:       parseLevel(level),
		colorOutput: isTerminal(w),
	}
}

func parseLevel(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// isTerminal reports whether w is a TTY that supports color.
func isTerminal(w io.Writer) bool {
	if color.NoColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// Debugf logs a debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...interface{}) {
	cl.logf(levelDebug, format, args...)
}

// Infof logs an info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...interface{}) {
	cl.logf(levelInfo, format, args...)
}

// Warnf logs a warn-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...interface{}) {
	cl.logf(levelWarn, format, args...)
}

// Errorf logs an error-level message.
func (cl *ConsoleLogger) Errorf(format string, args ...interface{}) {
	cl.logf(levelError, format, args...)
}

func (cl *ConsoleLogger) logf(level int, format string, args ...interface{}) {
	if cl == nil || cl.writer == nil || level < cl.level {
		return
	}

	message := fmt.Sprintf(format, args...)
	tag := ""
	switch level {
	case levelWarn:
		tag = "WARNING: "
		if cl.colorOutput {
			tag = color.New(color.FgYellow).Sprint("WARNING: ")
		}
	case levelError:
		tag = "ERROR: "
		if cl.colorOutput {
			tag = color.New(color.FgRed).Sprint("ERROR: ")
		}
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "[%s] %s%s\n", timestamp(), tag, message)
}

// LogPlan prints the computed wave plan before any ticket executes.
func (cl *ConsoleLogger) LogPlan(waves []models.Wave, totalTickets int) {
	if cl == nil || cl.writer == nil || cl.level > levelInfo {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	fmt.Fprintf(cl.writer, "[%s] Plan: %d wave(s), %d ticket(s)\n", timestamp(), len(waves), totalTickets)
	for _, wave := range waves {
		tickets := make([]string, len(wave.Tickets))
		for i, t := range wave.Tickets {
			tickets[i] = fmt.Sprintf("#%d", t)
		}
		fmt.Fprintf(cl.writer, "[%s]   %s: %s\n", timestamp(), wave.Name(), strings.Join(tickets, ", "))
	}
}

// LogWaveStart logs the start of a wave with its runnable ticket count.
func (cl *ConsoleLogger) LogWaveStart(wave models.Wave, runnable int) {
	name := wave.Name()
	if cl != nil && cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	cl.logf(levelInfo, "starting %s: %d of %d ticket(s) runnable", name, runnable, len(wave.Tickets))
}

// LogTicketResult logs one ticket's terminal status.
func (cl *ConsoleLogger) LogTicketResult(result models.ExecutionResult) {
	if cl == nil || cl.writer == nil || cl.level > levelInfo {
		return
	}

	detail := ""
	if result.ErrorMessage != "" {
		detail = " - " + result.ErrorMessage
	} else if result.BlockingQuestion != "" {
		detail = " - " + result.BlockingQuestion
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "[%s] #%d: %s%s\n", timestamp(), result.Ticket, cl.statusText(result.Status), detail)
}

func (cl *ConsoleLogger) statusText(status models.TicketStatus) string {
	text := strings.ToUpper(string(status))
	if !cl.colorOutput {
		return text
	}
	switch status {
	case models.StatusCompleted:
		return color.New(color.FgGreen).Sprint(text)
	case models.StatusFailed:
		return color.New(color.FgRed).Sprint(text)
	case models.StatusSkipped, models.StatusBlocked:
		return color.New(color.FgYellow).Sprint(text)
	default:
		return text
	}
}

// LogConflict warns about a file overlap between two branches, previewing at
// most a few paths.
func (cl *ConsoleLogger) LogConflict(conflict models.MergeConflict) {
	preview := conflict.OverlappingFiles
	suffix := ""
	if len(preview) > conflictPreviewCap {
		suffix = fmt.Sprintf(" (+%d more)", len(preview)-conflictPreviewCap)
		preview = preview[:conflictPreviewCap]
	}
	cl.logf(levelWarn, "file overlap between #%d and #%d: %s%s",
		conflict.TicketA, conflict.TicketB, strings.Join(preview, ", "), suffix)
}

// LogValidation logs the post-merge validation outcome.
func (cl *ConsoleLogger) LogValidation(outcome models.ValidationOutcome) {
	switch outcome {
	case models.ValidationPassed:
		text := "passed"
		if cl != nil && cl.colorOutput {
			text = color.New(color.FgGreen).Sprint(text)
		}
		cl.logf(levelInfo, "post-merge validation %s", text)
	case models.ValidationFailed:
		cl.logf(levelError, "post-merge validation failed")
	}
}

// LogSummary prints per-wave terminal statuses and run totals.
func (cl *ConsoleLogger) LogSummary(run *models.RunResult) {
	if cl == nil || cl.writer == nil || cl.level > levelInfo {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	fmt.Fprintf(cl.writer, "[%s] === Run Summary ===\n", ts)
	for _, wave := range run.Waves {
		fmt.Fprintf(cl.writer, "[%s] %s:\n", ts, wave.Name())
		for _, ticket := range wave.Tickets {
			res, ok := run.Results[ticket]
			if !ok {
				continue
			}
			detail := ""
			if res.ErrorMessage != "" {
				detail = " - " + res.ErrorMessage
			}
			fmt.Fprintf(cl.writer, "[%s]   #%d: %s%s\n", ts, ticket, cl.statusText(res.Status), detail)
		}
	}
	if len(run.Conflicts) > 0 {
		fmt.Fprintf(cl.writer, "[%s] File overlaps observed: %d\n", ts, len(run.Conflicts))
	}
	if run.Validation != models.ValidationNotRun {
		fmt.Fprintf(cl.writer, "[%s] Validation: %s\n", ts, run.Validation)
	}

	counts := run.Counts()
	fmt.Fprintf(cl.writer, "[%s] Total: %d, completed: %d, failed: %d, blocked: %d, skipped: %d (%s)\n",
		ts, counts.Total, counts.Completed, counts.Failed, counts.Blocked, counts.Skipped,
		run.Duration().Round(time.Second))
}
