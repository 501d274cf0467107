// Package params clamps caller sampling parameters into each provider's
// accepted range.
package params

import "math"

// Bound is an inclusive numeric range. A nil *Bound leaves the value alone.
type Bound struct {
	Min float64
	Max float64
}

// Clamp returns v moved to the nearest edge when it falls outside the bound.
func (b *Bound) Clamp(v float64) float64 {
	if b == nil {
		return v
	}
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Limits holds one bound per sampling parameter.
type Limits struct {
	Temperature *Bound
	TopP        *Bound
	MaxLength   *Bound
}

// Sampling is the normalized parameter triple. Nil means "let the provider decide".
type Sampling struct {
	Temperature *float64
	TopP        *float64
	MaxLength   *int
}

//nolint:gochecknoglobals // read-only lookup table
var table = map[string]Limits{
	"openai":   {Temperature: &Bound{0, 2}, TopP: &Bound{0, 1}},
	"deepseek": {Temperature: &Bound{0, 2}, TopP: &Bound{0.1, 1}, MaxLength: &Bound{1, 8192}},
	"google":   {Temperature: &Bound{0, 1}, TopP: &Bound{0, 1}},
	"glm":      {Temperature: &Bound{0.1, 1}, TopP: &Bound{0.1, 0.9}},
	"iflytek":  {Temperature: &Bound{0, 2}, TopP: &Bound{0.1, 1}, MaxLength: &Bound{1, 8192}},
	"baidu":    {Temperature: &Bound{0.01, 1}, TopP: &Bound{0, 1}, MaxLength: &Bound{2, 2048}},
	"moonshot": {Temperature: &Bound{0, 1}, TopP: &Bound{0, 1}},
	"aliyun":   {Temperature: &Bound{0, 1.99}, TopP: &Bound{0.01, 1}},
	"xai":      {Temperature: &Bound{0, 2}, TopP: &Bound{0, 1}},
	"other":    {},
}

// For returns the limits registered for a provider. Unknown providers get
// no clamping.
func For(provider string) Limits {
	return table[provider]
}

// Normalize clamps every present value. It never fails and never fills in
// absent values. NaN and infinities are treated as absent.
func (l Limits) Normalize(temperature, topP *float64, maxLength *int) Sampling {
	var out Sampling

	if finite(temperature) {
		v := l.Temperature.Clamp(*temperature)
		out.Temperature = &v
	}
	if finite(topP) {
		v := l.TopP.Clamp(*topP)
		out.TopP = &v
	}
	if maxLength != nil {
		v := int(l.MaxLength.Clamp(float64(*maxLength)))
		out.MaxLength = &v
	}

	return out
}

// Normalize is shorthand for For(provider).Normalize(...).
func Normalize(provider string, temperature, topP *float64, maxLength *int) Sampling {
	return For(provider).Normalize(temperature, topP, maxLength)
}

func finite(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
