package taskgraph

// CriticalPath computes the longest path through the dependency DAG,
// weighted by each task's Estimate.ExpectedHours(), and returns the task
// ids on that path in execution order along with its total duration.
// Assumes ValidateDependencies has already confirmed the graph is acyclic.
func (g *Graph) CriticalPath() ([]string, float64) {
	predecessorsOf := make(map[string][]string, len(g.tasks))
	for id, t := range g.tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.tasks[dep.TaskID]; !ok {
				continue
			}
			predecessorsOf[id] = append(predecessorsOf[id], dep.TaskID)
		}
	}

	longest := make(map[string]float64, len(g.tasks))
	prevOnPath := make(map[string]string, len(g.tasks))
	order := g.topologicalOrder()

	var bestEnd string
	var bestLen float64
	for _, id := range order {
		weight := g.tasks[id].Estimate.ExpectedHours()
		best := 0.0
		var bestPred string
		for _, pred := range predecessorsOf[id] {
			if longest[pred] > best {
				best = longest[pred]
				bestPred = pred
			}
		}
		longest[id] = best + weight
		if bestPred != "" {
			prevOnPath[id] = bestPred
		}
		if longest[id] > bestLen {
			bestLen = longest[id]
			bestEnd = id
		}
	}

	if bestEnd == "" {
		return nil, 0
	}

	var path []string
	for id := bestEnd; id != ""; id = prevOnPath[id] {
		path = append([]string{id}, path...)
	}
	return path, bestLen
}

// topologicalOrder returns task ids in an order where every task appears
// after all of its in-graph predecessors (Kahn's algorithm, assumes no
// cycle). Ties break on id for determinism.
func (g *Graph) topologicalOrder() []string {
	indegree := make(map[string]int, len(g.tasks))
	adjacency := make(map[string][]string, len(g.tasks))
	for id := range g.tasks {
		indegree[id] = 0
	}
	for id, t := range g.tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.tasks[dep.TaskID]; !ok {
				continue
			}
			adjacency[dep.TaskID] = append(adjacency[dep.TaskID], id)
			indegree[id]++
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	return order
}
