package pose

import "sort"

// DefaultMinConsecutive is the number of consecutive raw detections a pose
// must persist before any of its frames count as confirmed.
const DefaultMinConsecutive = 3

// ConfirmDetections applies temporal confirmation to raw per-frame
// detection streams. For each archetype a run of consecutive true values
// that reaches minConsecutive confirms every frame index from the run's
// start (earlier frames of the run are backfilled once the threshold is
// met); a false resets the run, and runs that never reach the threshold
// contribute nothing. Results are sorted ascending and deduplicated, and
// every input archetype appears in the output even when its set is empty.
func ConfirmDetections(raw map[PoseArchetype][]bool, minConsecutive int) map[PoseArchetype][]int {
	confirmed := make(map[PoseArchetype][]int, len(raw))
	for archetype, detections := range raw {
		confirmed[archetype] = confirmRun(detections, minConsecutive)
	}
	return confirmed
}

func confirmRun(detections []bool, minConsecutive int) []int {
	confirmed := []int{}
	seen := make(map[int]bool)
	run := 0
	start := 0

	for i, detected := range detections {
		if !detected {
			run = 0
			continue
		}
		if run == 0 {
			start = i
		}
		run++
		if run >= minConsecutive {
			for frame := start; frame <= i; frame++ {
				if !seen[frame] {
					seen[frame] = true
					confirmed = append(confirmed, frame)
				}
			}
		}
	}

	sort.Ints(confirmed)
	return confirmed
}
