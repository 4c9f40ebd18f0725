// Package money converts between decimal currency amounts and the integer
// minor-unit representation used by the payment processor's API.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency is returned for currency codes the codec does not know.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

var hundred = decimal.NewFromInt(100)

// zeroDecimal lists currencies that have no minor unit at the processor.
var zeroDecimal = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true,
	"xpf": true,
}

var twoDecimal = map[string]bool{
	"aed": true, "afn": true, "all": true, "amd": true, "ang": true, "aoa": true,
	"ars": true, "aud": true, "awg": true, "azn": true, "bam": true, "bbd": true,
	"bdt": true, "bgn": true, "bmd": true, "bnd": true, "bob": true, "brl": true,
	"bsd": true, "bwp": true, "byn": true, "bzd": true, "cad": true, "cdf": true,
	"chf": true, "cny": true, "cop": true, "crc": true, "cve": true, "czk": true,
	"dkk": true, "dop": true, "dzd": true, "egp": true, "etb": true, "eur": true,
	"fjd": true, "fkp": true, "gbp": true, "gel": true, "gip": true, "gmd": true,
	"gtq": true, "gyd": true, "hkd": true, "hnl": true, "htg": true, "huf": true,
	"idr": true, "ils": true, "inr": true, "isk": true, "jmd": true, "kes": true,
	"kgs": true, "khr": true, "kyd": true, "kzt": true, "lak": true, "lbp": true,
	"lkr": true, "lrd": true, "lsl": true, "mad": true, "mdl": true, "mkd": true,
	"mmk": true, "mnt": true, "mop": true, "mur": true, "mvr": true, "mwk": true,
	"mxn": true, "myr": true, "mzn": true, "nad": true, "ngn": true, "nio": true,
	"nok": true, "npr": true, "nzd": true, "pab": true, "pen": true, "pgk": true,
	"php": true, "pkr": true, "pln": true, "qar": true, "ron": true, "rsd": true,
	"rub": true, "sar": true, "sbd": true, "scr": true, "sek": true, "sgd": true,
	"shp": true, "sle": true, "sos": true, "srd": true, "szl": true, "thb": true,
	"tjs": true, "top": true, "try": true, "ttd": true, "twd": true, "tzs": true,
	"uah": true, "usd": true, "uyu": true, "uzs": true, "wst": true, "xcd": true,
	"yer": true, "zar": true, "zmw": true,
}

// factor returns the number of minor units in one whole unit of currency.
func factor(currency string) (decimal.Decimal, error) {
	c := strings.ToLower(strings.TrimSpace(currency))
	switch {
	case zeroDecimal[c]:
		return decimal.NewFromInt(1), nil
	case twoDecimal[c]:
		return hundred, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
}

// IsZeroDecimal reports whether currency is charged in whole units.
func IsZeroDecimal(currency string) bool {
	return zeroDecimal[strings.ToLower(strings.TrimSpace(currency))]
}

// ToMinorUnits converts amount into the processor's integer encoding for
// currency, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	f, err := factor(currency)
	if err != nil {
		return 0, err
	}
	return amount.Mul(f).Round(0).IntPart(), nil
}

// ToDecimal converts a minor-unit figure reported by the processor back into
// a decimal amount of currency.
func ToDecimal(minor int64, currency string) (decimal.Decimal, error) {
	f, err := factor(currency)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromInt(minor).Div(f), nil
}
