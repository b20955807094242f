// profiler/analyzer.go
package profiler

// unknownInstance labels samples whose series carries no instance label, such as a sum over all instances.
const unknownInstance = "unknown_instance"

// Sample is one value returned by an instant query, keyed by the instance that reported it.
type Sample struct {
	Instance string  `json:"instance"`
	Value    float64 `json:"value"`
}

// Average returns the arithmetic mean of the sample values, or 0 when there are none.
func Average(samples []Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}

// DetectAnomalies returns, in sample order, the instances whose value is strictly above threshold.
func DetectAnomalies(samples []Sample, threshold float64) []string {
	var anomalies []string
	for _, s := range samples {
		if s.Value > threshold {
			anomalies = append(anomalies, s.Instance)
		}
	}
	return anomalies
}
