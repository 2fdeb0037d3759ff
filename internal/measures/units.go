package measures

// Reference volumes in millilitres
const (
	OunceUK = 28.4
	OunceUS = 29.6
	PintUK  = 568.0
	PintUS  = 473.0 // 16 oz
)

// MaxValidMeasure is larger than a yard of ale or a Maß. Anything bigger is
// almost always a number written without its unit.
const MaxValidMeasure = 2500

// DefaultUnit applies when an annotation has a quantity but no unit
const DefaultUnit = "pint"

var divisors = map[string]float64{
	"quarter": 4,
	"third":   3,
	"half":    2,
}

// divisorOrder keeps the divisor alternation deterministic
var divisorOrder = []string{"quarter", "third", "half"}

// unitOrder keeps the unit alternation deterministic
var unitOrder = []string{"ml", "cl", "litre", "liter", "pint", "ounce", "oz", "sip", "taste"}

func unitTable(region Region) map[string]float64 {
	units := map[string]float64{
		"ml":    1,
		"cl":    10,
		"litre": 1000,
		"liter": 1000,
		"sip":   25,
		"taste": 25,
	}

	if region == USA {
		units["pint"] = PintUS
		units["ounce"] = OunceUS
		units["oz"] = OunceUS
	} else {
		units["pint"] = PintUK
		units["ounce"] = OunceUK
		units["oz"] = OunceUK
	}

	return units
}

func servingTable(region Region) map[string]float64 {
	if region == USA {
		// Ref: https://beerconnoisseur.com/articles/popular-beer-sizes
		return map[string]float64{
			"draft":  PintUS,
			"cask":   PintUS,
			"taster": OunceUS * 4,
			"bottle": OunceUS * 12,
			"can":    OunceUS * 12,
		}
	}

	return map[string]float64{
		"draft":  PintUK / 2,
		"cask":   PintUK / 2,
		"taster": 150,
		"bottle": 330,
		"can":    330,
	}
}
