package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	nodex "github.com/tanpawarit/Foundation-Campaign-Synthesis/agent/nodes"
)

var ErrInvalidGraph = errors.New("invalid synthesis graph")

// plan orders steps so every step follows its upstreams. Ties keep declaration order,
// which makes the launch order of a run reproducible.
func plan(steps []nodex.Step) ([]nodex.Step, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: step %d has no name", ErrInvalidGraph, i)
		}
		if s.Run == nil {
			return nil, fmt.Errorf("%w: step %q has no runner", ErrInvalidGraph, name)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate step %q", ErrInvalidGraph, name)
		}
		index[name] = i
	}

	indegree := make([]int, len(steps))
	downstream := make([][]int, len(steps))
	for i, s := range steps {
		seen := make(map[string]bool)
		for _, dep := range s.Upstreams() {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: step %q depends on unknown step %q", ErrInvalidGraph, s.Name, dep)
			}
			if j == i {
				return nil, fmt.Errorf("%w: step %q depends on itself", ErrInvalidGraph, s.Name)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[i]++
			downstream[j] = append(downstream[j], i)
		}
	}

	ordered := make([]nodex.Step, 0, len(steps))
	done := make([]bool, len(steps))
	for len(ordered) < len(steps) {
		next := -1
		for i := range steps {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, s := range steps {
				if !done[i] {
					stuck = append(stuck, s.Name)
				}
			}
			return nil, fmt.Errorf("%w: cycle through %s", ErrInvalidGraph, strings.Join(stuck, ", "))
		}
		done[next] = true
		ordered = append(ordered, steps[next])
		for _, d := range downstream[next] {
			indegree[d]--
		}
	}
	return ordered, nil
}
