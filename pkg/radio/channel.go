package radio

import "fmt"

// Band base frequencies in MHz
const (
	BaseHigh = 850
	BaseLow  = 410
)

// ChannelFor splits a configured frequency into band base and offset.
// 850-930 MHz maps onto the 850 base, 410-493 MHz onto the 410 base.
func ChannelFor(freqMHz int) (base int, ch Channel, err error) {
	switch {
	case freqMHz >= BaseHigh && freqMHz <= 930:
		return BaseHigh, Channel(freqMHz - BaseHigh), nil
	case freqMHz >= BaseLow && freqMHz <= 493:
		return BaseLow, Channel(freqMHz - BaseLow), nil
	default:
		return 0, 0, wrap(KindConfig, "channel plan", fmt.Errorf("frequency %d MHz not in 410-493 or 850-930", freqMHz))
	}
}

// FormatFrequency renders a whole-MHz channel the way the module reports it
func FormatFrequency(mhz int) string {
	return fmt.Sprintf("%d.125", mhz)
}
