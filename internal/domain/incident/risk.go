package incident

import "strconv"

// Qualitative risk bands, lowest to highest.
const (
	BandLow     = "Low"
	BandMedium  = "Medium"
	BandHigh    = "High"
	BandExtreme = "Extreme"
)

// riskBands is the impact x frequency risk matrix keyed by "<impact><frequency>".
// Impact is weighted more heavily than frequency: a level-5 impact is High at
// any frequency, while a level-1 impact never exceeds Medium.
var riskBands = map[string]string{
	"11": BandLow, "12": BandLow, "13": BandLow, "14": BandLow, "15": BandMedium,
	"21": BandLow, "22": BandLow, "23": BandMedium, "24": BandMedium, "25": BandMedium,
	"31": BandMedium, "32": BandMedium, "33": BandMedium, "34": BandHigh, "35": BandHigh,
	"41": BandMedium, "42": BandHigh, "43": BandHigh, "44": BandHigh, "45": BandExtreme,
	"51": BandHigh, "52": BandHigh, "53": BandExtreme, "54": BandExtreme, "55": BandExtreme,
}

var bandRanks = map[string]int{
	BandLow:     1,
	BandMedium:  2,
	BandHigh:    3,
	BandExtreme: 4,
}

// Bands lists the defined bands in rank order.
var Bands = []string{BandLow, BandMedium, BandHigh, BandExtreme}

// RiskCode concatenates the impact and frequency levels, or returns
// UndefinedRisk when either is not numeric.
func RiskCode(impact, frequency string) string {
	if !isLevel(impact) || !isLevel(frequency) {
		return UndefinedRisk
	}
	return impact + frequency
}

// RiskBand looks the risk code up in the matrix. Unknown codes, including
// UndefinedRisk, resolve to BandUndefined.
func RiskBand(code string) string {
	if band, ok := riskBands[code]; ok {
		return band
	}
	return BandUndefined
}

// BandRank orders bands Low=1 .. Extreme=4; BandUndefined ranks 0.
func BandRank(band string) int {
	return bandRanks[band]
}

// RiskRank maps a risk code to its ordinal 1-25 rank, (impact-1)*5 +
// frequency, so any increase in impact outranks every frequency at the lower
// impact.
func RiskRank(code string) (int, bool) {
	if len(code) != 2 || !isLevel(code[:1]) || !isLevel(code[1:]) {
		return 0, false
	}
	impact, _ := strconv.Atoi(code[:1])
	freq, _ := strconv.Atoi(code[1:])
	return (impact-1)*5 + freq, true
}

func isLevel(s string) bool {
	return len(s) == 1 && s[0] >= '1' && s[0] <= '5'
}
