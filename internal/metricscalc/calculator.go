package metricscalc

import "math"

// Input is one keyword observation feeding the category metric formulas.
type Input struct {
	Volume       int64
	Status       string
	IntentBucket string
}

type Metrics struct {
	DemandIndexMn  float64
	ReadinessScore float64
	SpreadScore    float64
}

// Calculator computes category metrics from keyword inputs. The orchestration
// engine treats it as a black box; Deterministic is the reference
// implementation.
type Calculator interface {
	CalculateCategoryMetrics(inputs []Input) Metrics
}

type Deterministic struct{}

var _ Calculator = (*Deterministic)(nil)

func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

// CalculateCategoryMetrics is a pure function of its inputs: the same rows
// always produce the same metrics, regardless of ordering.
func (c *Deterministic) CalculateCategoryMetrics(inputs []Input) Metrics {
	if len(inputs) == 0 {
		return Metrics{}
	}

	var totalVolume int64
	var valid int
	buckets := map[string]int64{}
	for _, in := range inputs {
		totalVolume += in.Volume
		if in.Status == "VALID" {
			valid++
		}
		if in.IntentBucket != "" {
			buckets[in.IntentBucket] += in.Volume
		}
	}

	demand := float64(totalVolume) / 1e6
	readiness := 100 * float64(valid) / float64(len(inputs))

	// spread: normalized volume entropy across intent buckets
	var spread float64
	if totalVolume > 0 && len(buckets) > 1 {
		var entropy float64
		for _, v := range buckets {
			if v == 0 {
				continue
			}
			p := float64(v) / float64(totalVolume)
			entropy -= p * math.Log2(p)
		}
		spread = 100 * entropy / math.Log2(float64(len(buckets)))
	}

	return Metrics{
		DemandIndexMn:  demand,
		ReadinessScore: readiness,
		SpreadScore:    spread,
	}
}
