package providers

import (
	"strings"

	"golang.org/x/text/language"
)

// Regional variants each upstream accepts. Everything else is sent as the
// bare ISO 639-1 code.
var (
	openWeatherVariants = map[string]bool{"pt_br": true, "zh_cn": true, "zh_tw": true}
	weatherAPIVariants  = map[string]bool{"zh_tw": true}
)

// openWeatherLang maps a BCP-47 tag to an OpenWeatherMap lang code
// ("pt-BR" -> "pt_br", "de-AT" -> "de", "zh-Hant" -> "zh_tw").
func openWeatherLang(tag string) string {
	code := providerLang(tag)
	if openWeatherVariants[code] {
		return code
	}
	base, _, _ := strings.Cut(code, "_")
	if base == "zh" {
		return "zh_cn"
	}
	return base
}

// weatherAPILang maps a BCP-47 tag to a WeatherAPI lang code.
func weatherAPILang(tag string) string {
	code := providerLang(tag)
	if weatherAPIVariants[code] {
		return code
	}
	base, _, _ := strings.Cut(code, "_")
	return base
}

// providerLang renders tag as lower-case "lang" or "lang_region". Chinese
// scripts are folded into their usual region. Unparseable input is passed
// through lower-cased.
func providerLang(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "-", "_"))
	}

	base, _ := t.Base()
	code := base.String()

	if code == "zh" {
		if script, conf := t.Script(); conf == language.Exact && script.String() == "Hant" {
			return "zh_tw"
		}
	}
	if region, conf := t.Region(); conf == language.Exact {
		r := strings.ToLower(region.String())
		if code == "zh" && r == "hk" {
			r = "tw"
		}
		return code + "_" + r
	}
	return code
}
