package linear

import (
	"fmt"
	"strings"
	"time"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/ui/style"
)

// RenderSummary prints the outcome of a build to stderr: the state counts,
// each failed job with its error and the jobs that were never attempted.
func (r *Renderer) RenderSummary(s *domain.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder

	verdict := r.out.String("Build succeeded").Bold().Foreground(r.out.Color(string(style.Green)))
	if !s.OK() {
		verdict = r.out.String("Build failed").Bold().Foreground(r.out.Color(string(style.Red)))
	}
	fmt.Fprintf(&b, "%s in %v (%s)\n", verdict, s.Duration.Round(time.Millisecond), s.BuildID)

	counts := []string{
		r.count(domain.StateSucceeded, s.Counts.Succeeded, "succeeded"),
		r.count(domain.StateSkipped, s.Counts.Skipped, "skipped"),
		r.count(domain.StateFailed, s.Counts.Failed, "failed"),
	}
	if s.Counts.Cancelled > 0 {
		counts = append(counts, r.count(domain.StateCancelled, s.Counts.Cancelled, "cancelled"))
	}
	b.WriteString("  " + strings.Join(counts, "  ") + "\n")

	if failures := s.Failures(); len(failures) > 0 {
		b.WriteString("\n" + r.out.String("Failed:").Bold().String() + "\n")
		for _, f := range failures {
			fmt.Fprintf(&b, "  %s %s\n", r.stateIcon(f.State), f.Label)
			if f.Error != "" {
				fmt.Fprintf(&b, "    %s\n", r.out.String(f.Error).Faint())
			}
		}
	}

	if skipped := s.NotAttempted(); len(skipped) > 0 {
		b.WriteString("\n" + r.out.String("Not attempted:").Bold().String() + "\n")
		for _, j := range skipped {
			reason := "build stopped"
			if j.Propagated() {
				reason = "dependency " + j.Cause.String() + " failed"
			}
			fmt.Fprintf(&b, "  %s %s %s\n", r.stateIcon(j.State), j.Label, r.out.String(reason).Faint())
		}
	}

	_, _ = fmt.Fprint(r.stderr, b.String())
}

func (r *Renderer) stateIcon(s domain.JobState) string {
	return r.icon(style.Icon(s), string(style.Color(s)))
}

func (r *Renderer) count(s domain.JobState, n int, word string) string {
	return fmt.Sprintf("%s %d %s", r.stateIcon(s), n, word)
}
