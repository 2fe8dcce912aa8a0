package ops

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// unit converts a magnitude to its dimension's base unit as
// base = (value + offset) * factor.
type unit struct {
	dimension string
	factor    float64
	offset    float64
}

// unitDef declares one unit under its long names and symbols. Long names
// accept long SI prefixes (kilometer) and symbols accept short ones (km)
// when the unit is prefixable.
type unitDef struct {
	names      []string
	symbols    []string
	prefixable bool
	unit
}

type unitEntry struct {
	unit
	prefixable bool
}

type unitPrefix struct {
	names   []string
	symbols []string
	factor  float64
}

const (
	secondsPerDay  = 86400.0
	secondsPerYear = 365.25 * secondsPerDay
	metersPerInch  = 0.0254
	kilogramsPerLb = 0.45359237
	cubicMPerGal   = 231 * metersPerInch * metersPerInch * metersPerInch
)

// Base units are kelvin, kilogram, meter, second and cubic meter. Names
// follow the pint default registry.
var unitDefs = []unitDef{
	// temperature
	{names: []string{"kelvin"}, symbols: []string{"K"}, prefixable: true,
		unit: unit{dimension: "temperature", factor: 1}},
	{names: []string{"degree_Celsius", "celsius", "degreeC"}, symbols: []string{"degC", "°C"},
		unit: unit{dimension: "temperature", factor: 1, offset: 273.15}},
	{names: []string{"degree_Fahrenheit", "fahrenheit", "degreeF"}, symbols: []string{"degF", "°F"},
		unit: unit{dimension: "temperature", factor: 5.0 / 9.0, offset: 459.67}},
	{names: []string{"degree_Rankine", "rankine", "degreeR"}, symbols: []string{"degR", "°R"},
		unit: unit{dimension: "temperature", factor: 5.0 / 9.0}},
	{names: []string{"degree_Reaumur", "reaumur", "degreeRe"}, symbols: []string{"degRe", "°Re"},
		unit: unit{dimension: "temperature", factor: 1.25, offset: 218.52}},

	// mass
	{names: []string{"gram"}, symbols: []string{"g"}, prefixable: true,
		unit: unit{dimension: "mass", factor: 1e-3}},
	{names: []string{"tonne", "metric_ton"}, symbols: []string{"t"},
		unit: unit{dimension: "mass", factor: 1e3}},
	{names: []string{"pound"}, symbols: []string{"lb"},
		unit: unit{dimension: "mass", factor: kilogramsPerLb}},
	{names: []string{"ounce"}, symbols: []string{"oz"},
		unit: unit{dimension: "mass", factor: kilogramsPerLb / 16}},
	{names: []string{"stone"}, symbols: []string{"st"},
		unit: unit{dimension: "mass", factor: 14 * kilogramsPerLb}},
	{names: []string{"grain"}, symbols: []string{"gr"},
		unit: unit{dimension: "mass", factor: 64.79891e-6}},
	{names: []string{"short_ton", "ton"},
		unit: unit{dimension: "mass", factor: 2000 * kilogramsPerLb}},
	{names: []string{"long_ton"},
		unit: unit{dimension: "mass", factor: 2240 * kilogramsPerLb}},

	// length
	{names: []string{"meter", "metre"}, symbols: []string{"m"}, prefixable: true,
		unit: unit{dimension: "length", factor: 1}},
	{names: []string{"micron"},
		unit: unit{dimension: "length", factor: 1e-6}},
	{names: []string{"angstrom", "ångström"}, symbols: []string{"Å"},
		unit: unit{dimension: "length", factor: 1e-10}},
	{names: []string{"inch", "international_inch"}, symbols: []string{"in"},
		unit: unit{dimension: "length", factor: metersPerInch}},
	{names: []string{"thou"}, symbols: []string{"th"},
		unit: unit{dimension: "length", factor: 1e-3 * metersPerInch}},
	{names: []string{"hand"},
		unit: unit{dimension: "length", factor: 4 * metersPerInch}},
	{names: []string{"foot", "feet", "international_foot"}, symbols: []string{"ft"},
		unit: unit{dimension: "length", factor: 12 * metersPerInch}},
	{names: []string{"yard", "international_yard"}, symbols: []string{"yd"},
		unit: unit{dimension: "length", factor: 36 * metersPerInch}},
	{names: []string{"mile", "international_mile"}, symbols: []string{"mi"},
		unit: unit{dimension: "length", factor: 63360 * metersPerInch}},
	{names: []string{"furlong"},
		unit: unit{dimension: "length", factor: 660 * 1200.0 / 3937.0}},
	{names: []string{"nautical_mile"}, symbols: []string{"nmi"},
		unit: unit{dimension: "length", factor: 1852}},
	{names: []string{"astronomical_unit"}, symbols: []string{"au"},
		unit: unit{dimension: "length", factor: 149597870700}},
	{names: []string{"light_year", "lightyear"}, symbols: []string{"ly"},
		unit: unit{dimension: "length", factor: 9460730472580800}},
	{names: []string{"parsec"}, symbols: []string{"pc"},
		unit: unit{dimension: "length", factor: 3.0856775814913673e16}},

	// time
	{names: []string{"second"}, symbols: []string{"s", "sec"}, prefixable: true,
		unit: unit{dimension: "time", factor: 1}},
	{names: []string{"minute"}, symbols: []string{"min"},
		unit: unit{dimension: "time", factor: 60}},
	{names: []string{"hour"}, symbols: []string{"h", "hr"},
		unit: unit{dimension: "time", factor: 3600}},
	{names: []string{"day"}, symbols: []string{"d"},
		unit: unit{dimension: "time", factor: secondsPerDay}},
	{names: []string{"week"},
		unit: unit{dimension: "time", factor: 7 * secondsPerDay}},
	{names: []string{"fortnight"},
		unit: unit{dimension: "time", factor: 14 * secondsPerDay}},
	{names: []string{"month"},
		unit: unit{dimension: "time", factor: secondsPerYear / 12}},
	{names: []string{"year", "julian_year"}, symbols: []string{"a", "yr"},
		unit: unit{dimension: "time", factor: secondsPerYear}},
	{names: []string{"decade"},
		unit: unit{dimension: "time", factor: 10 * secondsPerYear}},
	{names: []string{"century", "centuries"},
		unit: unit{dimension: "time", factor: 100 * secondsPerYear}},

	// volume
	{names: []string{"liter", "litre"}, symbols: []string{"l", "L", "ℓ"}, prefixable: true,
		unit: unit{dimension: "volume", factor: 1e-3}},
	{names: []string{"cubic_centimeter"}, symbols: []string{"cc"},
		unit: unit{dimension: "volume", factor: 1e-6}},
	{names: []string{"cubic_meter"},
		unit: unit{dimension: "volume", factor: 1}},
	{names: []string{"gallon"}, symbols: []string{"gal"},
		unit: unit{dimension: "volume", factor: cubicMPerGal}},
	{names: []string{"quart"}, symbols: []string{"qt"},
		unit: unit{dimension: "volume", factor: cubicMPerGal / 4}},
	{names: []string{"pint"}, symbols: []string{"pt"},
		unit: unit{dimension: "volume", factor: cubicMPerGal / 8}},
	{names: []string{"cup"},
		unit: unit{dimension: "volume", factor: cubicMPerGal / 16}},
	{names: []string{"fluid_ounce"}, symbols: []string{"floz"},
		unit: unit{dimension: "volume", factor: cubicMPerGal / 128}},
	{names: []string{"tablespoon"}, symbols: []string{"tbsp"},
		unit: unit{dimension: "volume", factor: cubicMPerGal / 256}},
	{names: []string{"teaspoon"}, symbols: []string{"tsp"},
		unit: unit{dimension: "volume", factor: cubicMPerGal / 768}},
	{names: []string{"imperial_gallon"},
		unit: unit{dimension: "volume", factor: 4.54609e-3}},
}

var unitPrefixes = []unitPrefix{
	{names: []string{"yocto"}, symbols: []string{"y"}, factor: 1e-24},
	{names: []string{"zepto"}, symbols: []string{"z"}, factor: 1e-21},
	{names: []string{"atto"}, symbols: []string{"a"}, factor: 1e-18},
	{names: []string{"femto"}, symbols: []string{"f"}, factor: 1e-15},
	{names: []string{"pico"}, symbols: []string{"p"}, factor: 1e-12},
	{names: []string{"nano"}, symbols: []string{"n"}, factor: 1e-9},
	{names: []string{"micro"}, symbols: []string{"µ", "μ", "u"}, factor: 1e-6},
	{names: []string{"milli"}, symbols: []string{"m"}, factor: 1e-3},
	{names: []string{"centi"}, symbols: []string{"c"}, factor: 1e-2},
	{names: []string{"deci"}, symbols: []string{"d"}, factor: 1e-1},
	{names: []string{"deca", "deka"}, symbols: []string{"da"}, factor: 1e1},
	{names: []string{"hecto"}, symbols: []string{"h"}, factor: 1e2},
	{names: []string{"kilo"}, symbols: []string{"k"}, factor: 1e3},
	{names: []string{"mega"}, symbols: []string{"M"}, factor: 1e6},
	{names: []string{"giga"}, symbols: []string{"G"}, factor: 1e9},
	{names: []string{"tera"}, symbols: []string{"T"}, factor: 1e12},
	{names: []string{"peta"}, symbols: []string{"P"}, factor: 1e15},
	{names: []string{"exa"}, symbols: []string{"E"}, factor: 1e18},
	{names: []string{"zetta"}, symbols: []string{"Z"}, factor: 1e21},
	{names: []string{"yotta"}, symbols: []string{"Y"}, factor: 1e24},
}

var unitNames, unitSymbols = indexUnits(unitDefs)

func indexUnits(defs []unitDef) (names, symbols map[string]unitEntry) {
	names = make(map[string]unitEntry)
	symbols = make(map[string]unitEntry)
	for _, d := range defs {
		e := unitEntry{unit: d.unit, prefixable: d.prefixable}
		for _, n := range d.names {
			names[n] = e
		}
		for _, s := range d.symbols {
			symbols[s] = e
		}
	}
	return names, symbols
}

// lookupUnit resolves a unit identifier: exact names and symbols first,
// then SI-prefixed forms, then plurals ending in "s" or "es".
func lookupUnit(name string) (unit, bool) {
	if u, ok := resolveUnit(name); ok {
		return u, true
	}
	for _, suffix := range []string{"s", "es"} {
		if stem, ok := strings.CutSuffix(name, suffix); ok && stem != "" {
			if u, ok := resolveUnit(stem); ok {
				return u, true
			}
		}
	}
	return unit{}, false
}

func resolveUnit(name string) (unit, bool) {
	if e, ok := unitNames[name]; ok {
		return e.unit, true
	}
	if e, ok := unitSymbols[name]; ok {
		return e.unit, true
	}
	for _, p := range unitPrefixes {
		if e, ok := prefixed(unitNames, name, p.names); ok {
			return e.scaled(p.factor), true
		}
		if e, ok := prefixed(unitSymbols, name, p.symbols); ok {
			return e.scaled(p.factor), true
		}
	}
	return unit{}, false
}

func prefixed(index map[string]unitEntry, name string, prefixes []string) (unitEntry, bool) {
	for _, p := range prefixes {
		rest, ok := strings.CutPrefix(name, p)
		if !ok || rest == "" {
			continue
		}
		if e, ok := index[rest]; ok && e.prefixable {
			return e, true
		}
	}
	return unitEntry{}, false
}

func (e unitEntry) scaled(f float64) unit {
	u := e.unit
	u.factor *= f
	return u
}

// Units returns every unprefixed unit name and symbol in sorted order.
func Units() []string {
	out := make([]string, 0, len(unitNames)+len(unitSymbols))
	for name := range unitNames {
		out = append(out, name)
	}
	for sym := range unitSymbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// ConvertUnits converts magnitudes between units of the same dimension.
// Affine units such as temperatures apply their offsets.
type ConvertUnits struct {
	source string
	target string
	from   unit
	to     unit
}

// NewConvertUnits creates a ConvertUnits. Both units must resolve through
// lookupUnit and must measure the same dimension.
func NewConvertUnits(source, target string) (*ConvertUnits, error) {
	from, ok := lookupUnit(source)
	if !ok {
		return nil, validationError(TagConvertUnits, "unknown unit %q", source)
	}
	to, ok := lookupUnit(target)
	if !ok {
		return nil, validationError(TagConvertUnits, "unknown unit %q", target)
	}
	if from.dimension != to.dimension {
		return nil, validationError(TagConvertUnits, "cannot convert %s (%s) to %s (%s)",
			source, from.dimension, target, to.dimension)
	}
	return &ConvertUnits{source: source, target: target, from: from, to: to}, nil
}

func (c *ConvertUnits) operation()  {}
func (c *ConvertUnits) Tag() string { return TagConvertUnits }

func (c *ConvertUnits) String() string {
	return fmt.Sprintf("Perform conversion from %s to %s", c.source, c.target)
}

func (c *ConvertUnits) Transform(value any) (any, error) {
	return elementwise(value, func(v any) (any, error) {
		if _, ok := v.(bool); ok {
			return nil, typeError(TagConvertUnits, v, "number")
		}
		f, ok := numeric(v)
		if !ok {
			return nil, typeError(TagConvertUnits, v, "number")
		}
		if c.source == c.target {
			return f, nil
		}
		base := (f + c.from.offset) * c.from.factor
		return base/c.to.factor - c.to.offset, nil
	})
}

type unitsWire struct {
	Operation string  `json:"operation"`
	Source    *string `json:"source"`
	Target    *string `json:"target"`
}

func (c *ConvertUnits) MarshalJSON() ([]byte, error) {
	return json.Marshal(unitsWire{Operation: TagConvertUnits, Source: &c.source, Target: &c.target})
}

func decodeConvertUnits(data []byte) (Operation, error) {
	var w unitsWire
	if err := decodeParams(TagConvertUnits, data, &w); err != nil {
		return nil, err
	}
	if w.Source == nil {
		return nil, missing(TagConvertUnits, "source")
	}
	if w.Target == nil {
		return nil, missing(TagConvertUnits, "target")
	}
	return NewConvertUnits(*w.Source, *w.Target)
}
