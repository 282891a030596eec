// Package naming turns KiCad names (nets, parts, designators, sheet paths)
// into atopile identifiers and file paths.
//
// All functions are pure. Each returns "" when nothing usable remains after
// sanitizing, so callers can fall back to a synthetic name.
package naming

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keywords of the atopile language that can not be used as identifiers.
var keywords = map[string]bool{
	"from":      true,
	"import":    true,
	"component": true,
	"module":    true,
	"interface": true,
	"signal":    true,
	"pin":       true,
	"new":       true,
	"pass":      true,
	"assert":    true,
	"within":    true,
	"to":        true,
	"trait":     true,
	"True":      true,
	"False":     true,
}

// IsKeyword reports whether s is a reserved word of the generated language.
func IsKeyword(s string) bool {
	return keywords[s]
}

// Fold removes diacritics so that "Résistance" becomes "Resistance".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

func isASCIILetter(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

func isASCIIAlnum(r rune) bool {
	return isASCIILetter(r) || ('0' <= r && r <= '9')
}

func keep(s string, allowed func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// letterFirst prefixes identifiers that do not start with a letter with "S".
func letterFirst(s string) string {
	if s == "" {
		return ""
	}
	if !isASCIILetter(rune(s[0])) {
		return "S" + s
	}
	return s
}

// Net sanitizes a net or signal name. A leading '~' (active low) becomes
// 'n', '+' becomes 'P', '-' and '/' become '_'. Other characters outside
// [A-Za-z0-9_] are dropped. Leading sheet separators are stripped so that
// the local label "/power/VIN" becomes "power_VIN".
//
//	Net("+3V3")   == "P3V3"
//	Net("~RESET") == "nRESET"
//	Net("3V3")    == "S3V3"
func Net(name string) string {
	s := strings.TrimLeft(Fold(name), "/")
	if strings.HasPrefix(s, "~") {
		s = "n" + s[1:]
	}
	s = strings.NewReplacer("+", "P", "-", "_", "/", "_").Replace(s)
	s = keep(s, func(r rune) bool { return isASCIIAlnum(r) || r == '_' })
	return letterFirst(s)
}

// Signal sanitizes a pin name into a signal name. It follows the Net rules.
func Signal(pinName string) string {
	return Net(pinName)
}

// Part sanitizes a library part name: only [A-Za-z0-9] survive.
//
//	Part("LM1117-3.3") == "LM111733"
//	Part("74HC595")    == "S74HC595"
func Part(name string) string {
	return letterFirst(keep(Fold(name), isASCIIAlnum))
}

// Component sanitizes a reference designator. Designators follow the part
// rules, so "#PWR01" becomes "PWR01".
func Component(ref string) string {
	return Part(ref)
}

// Module turns one sheet path segment into a module identifier.
//
//	Module("power supply") == "PowerSupply"
//	Module("usb-c")        == "UsbC"
func Module(segment string) string {
	s := strings.NewReplacer(" ", "_", ".", "_").Replace(Fold(segment))
	s = Net(s)
	if s == "" {
		return ""
	}
	return letterFirst(inflect.Camelize(s))
}

// Project turns a project name into the root module identifier. The first
// letter is always upper case.
func Project(name string) string {
	s := Module(name)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FileSegment turns one sheet path segment into a lower-case file path
// segment.
func FileSegment(segment string) string {
	return strings.ToLower(Net(strings.ReplaceAll(Fold(segment), " ", "_")))
}

// Instance derives the instance name of a sheet module from its path
// segments: Instance([]string{"Power", "Regulator"}) == "power_regulator".
func Instance(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if s := FileSegment(seg); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return letterFirst(strings.Join(parts, "_"))
}

// PinToken sanitizes a pin number for use after the "pin" keyword.
// The second result reports whether characters were dropped.
func PinToken(num string) (string, bool) {
	s := keep(Fold(num), func(r rune) bool { return isASCIIAlnum(r) || r == '_' })
	return s, s != num
}

// Unreserved appends suffix to id when it is a keyword.
func Unreserved(id, suffix string) string {
	if IsKeyword(id) {
		return id + suffix
	}
	return id
}

// Suffix sanitizes a free-form value ("10k", "100n/50V") into an identifier
// suffix. Unlike Net it never adds a letter prefix.
func Suffix(value string) string {
	s := strings.NewReplacer(
		"+", "P", "-", "_", "/", "_", ".", "_", " ", "_",
		"µ", "u", "μ", "u", "Ω", "R",
	).Replace(Fold(value))
	s = keep(s, func(r rune) bool { return isASCIIAlnum(r) || r == '_' })
	return strings.Trim(s, "_")
}
