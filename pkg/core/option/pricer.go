// Package option prices the call options used to value preferred rounds:
// a European Black-Scholes call and a Random Expiration (RE) call whose
// exercise date is averaged over an exponential holding period.
package option

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultPeriods is the number of steps used to discretise the RE holding
// period.
const DefaultPeriods = 20

// Abramowitz & Stegun 7.1.26
const (
	a1 = 0.254829592
	a2 = -0.284496736
	a3 = 1.421413741
	a4 = -1.453152027
	a5 = 1.061405429
	p  = 0.3275911
)

// NormalCDF is the A&S rational approximation of the standard normal CDF
// (absolute error below 1.5e-7).
func NormalCDF(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

// ExactNormalCDF evaluates the standard normal CDF to machine precision.
func ExactNormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// CDF selects which normal CDF a deployment uses. Mixing the two within one
// deployment makes conversion points and valuations irreproducible.
type CDF string

const (
	CDFApprox CDF = "approx"
	CDFExact  CDF = "exact"
)

// Model selects the option formula used for partial valuation.
type Model string

const (
	ModelRandomExpiration Model = "re"
	ModelBlackScholes     Model = "bs"
)

// Pricer bundles the numeric choices of one deployment.
type Pricer struct {
	CDF     CDF
	Model   Model
	Periods int
	// NormalizeRE divides the RE sum by the total weight instead of
	// multiplying by H, so the RE call tends to intrinsic value as H -> 0.
	NormalizeRE bool
}

// DefaultPricer uses the A&S CDF and RE calls over 20 periods.
func DefaultPricer() Pricer {
	return Pricer{CDF: CDFApprox, Model: ModelRandomExpiration, Periods: DefaultPeriods}
}

func (pr Pricer) cdf() func(float64) float64 {
	if pr.CDF == CDFExact {
		return ExactNormalCDF
	}
	return NormalCDF
}

func (pr Pricer) periods() int {
	if pr.Periods > 0 {
		return pr.Periods
	}
	return DefaultPeriods
}

// Call prices a call with the configured model. T is the expiry for
// Black-Scholes and the expected holding period for RE.
func (pr Pricer) Call(S, K, T, r, sigma float64) float64 {
	if pr.Model == ModelBlackScholes {
		return blackScholesCall(pr.cdf(), S, K, T, r, sigma)
	}
	return pr.RandomExpirationCall(S, K, T, r, sigma)
}

// BlackScholesCall prices a European call with the configured CDF.
func (pr Pricer) BlackScholesCall(S, K, T, r, sigma float64) float64 {
	return blackScholesCall(pr.cdf(), S, K, T, r, sigma)
}

// RandomExpirationCall prices an RE call with the configured CDF.
func (pr Pricer) RandomExpirationCall(S, K, H, r, sigma float64) float64 {
	if pr.NormalizeRE {
		return normalizedRandomExpirationCall(pr.cdf(), S, K, H, r, sigma, pr.periods())
	}
	return randomExpirationCall(pr.cdf(), S, K, H, r, sigma, pr.periods())
}

// BlackScholesCall prices a European call using the A&S CDF.
//
// Degenerate inputs fall back to intrinsic value: T<=0, sigma<=0 or S<=0
// give max(0, S-K); K<=0 gives S.
func BlackScholesCall(S, K, T, r, sigma float64) float64 {
	return blackScholesCall(NormalCDF, S, K, T, r, sigma)
}

// RandomExpirationCall prices a call whose exercise date is random with
// mean holding period H, using the A&S CDF.
func RandomExpirationCall(S, K, H, r, sigma float64, periods int) float64 {
	if periods <= 0 {
		periods = DefaultPeriods
	}
	return randomExpirationCall(NormalCDF, S, K, H, r, sigma, periods)
}

func blackScholesCall(phi func(float64) float64, S, K, T, r, sigma float64) float64 {
	if T <= 0 || sigma <= 0 || S <= 0 {
		return math.Max(0, S-K)
	}
	if K <= 0 {
		return S
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+sigma*sigma/2)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	return math.Max(0, S*phi(d1)-K*math.Exp(-r*T)*phi(d2))
}

// randomExpirationCall weights European calls at t_i = i*H/n by the
// exponential density (1/H)e^(-t/H)dt, then multiplies the sum by H.
// The final multiply is kept for numeric compatibility with existing
// valuations; the weights are not a normalised probability measure.
func randomExpirationCall(phi func(float64) float64, S, K, H, r, sigma float64, periods int) float64 {
	if H <= 0 {
		return math.Max(0, S-K)
	}

	dt := H / float64(periods)
	total := 0.0
	for i := 1; i <= periods; i++ {
		t := float64(i) * dt
		weight := (1 / H) * math.Exp(-t/H) * dt
		total += weight * blackScholesCall(phi, S, K, t, r, sigma)
	}

	return total * H
}

// normalizedRandomExpirationCall is the weighted average of the same
// European calls, with weights rescaled to sum to one.
func normalizedRandomExpirationCall(phi func(float64) float64, S, K, H, r, sigma float64, periods int) float64 {
	if H <= 0 {
		return math.Max(0, S-K)
	}

	dt := H / float64(periods)
	total, weights := 0.0, 0.0
	for i := 1; i <= periods; i++ {
		t := float64(i) * dt
		weight := (1 / H) * math.Exp(-t/H) * dt
		weights += weight
		total += weight * blackScholesCall(phi, S, K, t, r, sigma)
	}

	return total / weights
}
