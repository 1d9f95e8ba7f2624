package exam

type TrendPoint struct {
	ResultID     string `json:"result_id"`
	ScorePercent int    `json:"score_percent"`
}

type Trend struct {
	Points []TrendPoint `json:"points"`
	Mean   float64      `json:"mean"`
}

// TrailingTrend takes the last window results of history, which must be in
// chronological order, oldest first. A window at or below zero yields an
// empty trend.
func TrailingTrend(history []Result, window int) Trend {
	t := Trend{Points: []TrendPoint{}}
	if window <= 0 || len(history) == 0 {
		return t
	}
	start := len(history) - window
	if start < 0 {
		start = 0
	}

	sum := 0
	for _, r := range history[start:] {
		t.Points = append(t.Points, TrendPoint{ResultID: r.ID, ScorePercent: r.ScorePercent})
		sum += r.ScorePercent
	}
	t.Mean = float64(sum) / float64(len(t.Points))
	return t
}
