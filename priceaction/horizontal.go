package priceaction

import (
	"math"
	"sort"
	"time"

	"github.com/dnldd/mtbridge/shared"
	"github.com/montanaflynn/stats"
)

const (
	// touchScore is the score awarded per line touch.
	touchScore = 25
	// maxAgeScore is the recency score of a level touched at the end time.
	maxAgeScore = 100
)

// cluster represents a group of fractals at a similar price.
type cluster struct {
	members []shared.FractalPoint
	price   float64
	score   float64
}

// mean returns the average value of the provided points.
func mean(points []shared.FractalPoint) float64 {
	values := make(stats.Float64Data, 0, len(points))
	for idx := range points {
		values = append(values, points[idx].Value)
	}

	avg, err := stats.Mean(values)
	if err != nil {
		return 0
	}

	return avg
}

// refine drops the member furthest from the cluster mean until every member is
// within tolerance of the mean, returning the retained members and their mean.
func refine(members []shared.FractalPoint, tolerancePercent float64) ([]shared.FractalPoint, float64) {
	for len(members) > 0 {
		avg := mean(members)

		worst := -1
		var worstDeviation float64
		for idx := range members {
			if withinTolerance(members[idx].Value, avg, tolerancePercent) {
				continue
			}

			deviation := math.Abs(members[idx].Value - avg)
			if worst == -1 || deviation > worstDeviation {
				worst = idx
				worstDeviation = deviation
			}
		}

		if worst == -1 {
			return members, avg
		}

		members = append(members[:worst:worst], members[worst+1:]...)
	}

	return nil, 0
}

// clusterPoints groups the provided points into price clusters, most recent anchors first.
func clusterPoints(points []shared.FractalPoint, endTime int64, cfg LineConfig) []cluster {
	sorted := make([]shared.FractalPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time > sorted[j].Time
	})

	used := make([]bool, len(sorted))
	clusters := make([]cluster, 0)
	for anchor := range sorted {
		if used[anchor] {
			continue
		}

		candidates := []shared.FractalPoint{sorted[anchor]}
		indexes := map[int64]int{sorted[anchor].Time: anchor}
		for idx := range sorted {
			if idx == anchor || used[idx] {
				continue
			}

			if withinTolerance(sorted[idx].Value, sorted[anchor].Value, cfg.TolerancePercent) {
				candidates = append(candidates, sorted[idx])
				indexes[sorted[idx].Time] = idx
			}
		}

		if len(candidates) < cfg.MinTouches {
			continue
		}

		members, price := refine(candidates, cfg.TolerancePercent)
		if len(members) < cfg.MinTouches {
			continue
		}

		latest := members[0].Time
		for idx := range members {
			used[indexes[members[idx].Time]] = true
			if members[idx].Time > latest {
				latest = members[idx].Time
			}
		}

		ageHours := float64(endTime-latest) / 3600
		clusters = append(clusters, cluster{
			members: members,
			price:   price,
			score:   float64(len(members)*touchScore) + math.Max(0, maxAgeScore-ageHours),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].score > clusters[j].score
	})

	return clusters
}

// horizontalLines builds up to the configured number of horizontal lines of the provided kind.
func horizontalLines(points []shared.FractalPoint, kind shared.LevelKind, endTime int64, cfg LineConfig) []shared.HorizontalLine {
	clusters := clusterPoints(points, endTime, cfg)
	if len(clusters) > cfg.MaxLines {
		clusters = clusters[:cfg.MaxLines]
	}

	lines := make([]shared.HorizontalLine, 0, len(clusters))
	for _, c := range clusters {
		start := c.members[0].Time
		for idx := range c.members {
			if c.members[idx].Time < start {
				start = c.members[idx].Time
			}
		}

		lines = append(lines, shared.HorizontalLine{
			Price:      c.price,
			StartTime:  start,
			EndTime:    endTime,
			Kind:       kind,
			TouchCount: len(c.members),
			Score:      c.score,
		})
	}

	return lines
}

// HorizontalLines synthesizes resistance levels from peaks and support levels from bottoms.
//
// The end time is the right edge of every line, the current time is used when it is zero.
func HorizontalLines(fractals shared.Fractals, endTime int64, cfg LineConfig) shared.HorizontalLines {
	if endTime == 0 {
		endTime = time.Now().Unix()
	}

	return shared.HorizontalLines{
		Resistance: horizontalLines(fractals.Peaks, shared.Resistance, endTime, cfg),
		Support:    horizontalLines(fractals.Bottoms, shared.Support, endTime, cfg),
	}
}
