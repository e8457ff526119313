package indicator

// SMA returns the simple moving average over period samples, trimmed: the
// result has len(prices)-period+1 entries and entry 0 covers prices[0:period].
// The running sum is Kahan-compensated so long series do not drift.
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	var acc kahan
	for _, p := range prices[:period] {
		acc.add(p)
	}
	result = append(result, acc.sum/float64(period))

	for i := period; i < len(prices); i++ {
		acc.add(prices[i])
		acc.add(-prices[i-period])
		result = append(result, acc.sum/float64(period))
	}
	return result
}

// EMA returns the exponential moving average with smoothing 2/(period+1),
// seeded with the SMA of the first period samples. Trimmed like SMA.
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}
	seed := SMA(prices[:period], period)

	alpha := 2.0 / float64(period+1)
	result := make([]float64, 1, len(prices)-period+1)
	result[0] = seed[0]
	for _, p := range prices[period:] {
		prev := result[len(result)-1]
		result = append(result, prev+alpha*(p-prev))
	}
	return result
}

type kahan struct {
	sum, c float64
}

func (k *kahan) add(v float64) {
	y := v - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}
