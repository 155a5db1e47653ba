package cluster

// DBSCANResult is the per-agent-row cluster label from a DBSCAN pass:
// label >= 0 is a cluster id, label == -1 marks noise.
type DBSCANResult struct {
	Labels []int
	NumClusters int
}

// DBSCAN runs density-based clustering over live agents' belief vectors,
// for the `cluster dbscan eps minPts` shell verb. Labels are
// indexed by row; dead rows get -1.
func DBSCAN(points [][4]float64, alive []bool, eps float64, minPts int) DBSCANResult {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	visited := make([]bool, n)
	eps2 := eps * eps
	nextCluster := 0

	neighbors := func(i int) []int {
		out := make([]int, 0, 8)
		for j := 0; j < n; j++ {
			if j == i || !alive[j] {
				continue
			}
			if sqDist(points[i], points[j]) <= eps2 {
				out = append(out, j)
			}
		}
		return out
	}

	for i := 0; i < n; i++ {
		if !alive[i] || visited[i] {
			continue
		}
		visited[i] = true
		nbrs := neighbors(i)
		if len(nbrs)+1 < minPts {
			continue // stays noise (-1)
		}

		labels[i] = nextCluster
		queue := append([]int(nil), nbrs...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if !visited[j] {
				visited[j] = true
				jNbrs := neighbors(j)
				if len(jNbrs)+1 >= minPts {
					queue = append(queue, jNbrs...)
				}
			}
			if labels[j] == -1 {
				labels[j] = nextCluster
			}
		}
		nextCluster++
	}

	return DBSCANResult{Labels: labels, NumClusters: nextCluster}
}
