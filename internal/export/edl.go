// Package export renders clip plans for editing tools and names downloaded
// artifacts.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/bestof/clipper/internal/planner"
)

const defaultFPS = 30

// PlanEDL renders plan as a CMX3600 edit decision list. Source timecodes
// point into mediaPath; record timecodes follow the order of the plan, which
// is the order the segments appear in the generated clip.
func PlanEDL(plan planner.Plan, title, mediaPath string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = defaultFPS
	}

	lines := []string{fmt.Sprintf("TITLE: %s", SanitizeName(title, 70))}
	if isDropFrame(frameRate) {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordMs := 0
	for i, seg := range plan {
		startMs := secondsToMs(seg.Start)
		endMs := secondsToMs(seg.End)
		durationMs := endMs - startMs

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				msToTimecode(startMs, fps), msToTimecode(endMs, fps),
				msToTimecode(recordMs, fps), msToTimecode(recordMs+durationMs, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  segment %d (%s)", i+1, seg),
			fmt.Sprintf("* MEDIA PATH:  %s", mediaPath),
		)
		recordMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func isDropFrame(frameRate float64) bool {
	return math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01
}

func secondsToMs(s float64) int {
	return int(math.Round(s * 1000))
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	return fmt.Sprintf("%02d:%02d:%02d:%02d", totalSeconds/3600, (totalSeconds/60)%60, totalSeconds%60, frames)
}
