package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNet(t *testing.T) {
	tests := map[string]string{
		"GND":           "GND",
		"+3V3":          "P3V3",
		"~RESET":        "nRESET",
		"3V3":           "S3V3",
		"/SIG":          "SIG",
		"/power/VIN":    "power_VIN",
		"Net-(R1-Pad2)": "Net_R1_Pad2",
		"I²C SDA":       "ICSDA",
		"Température":   "Temperature",
		"***":           "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Net(in), "Net(%q)", in)
	}
}

func TestPartAndComponent(t *testing.T) {
	assert.Equal(t, "R", Part("R"))
	assert.Equal(t, "LM111733", Part("LM1117-3.3"))
	assert.Equal(t, "S74HC595", Part("74HC595"))
	assert.Equal(t, "", Part("--"))
	assert.Equal(t, "PWR01", Component("#PWR01"))
	assert.Equal(t, "R12", Component("R12"))
}

func TestModule(t *testing.T) {
	assert.Equal(t, "Power", Module("power"))
	assert.Equal(t, "PowerSupply", Module("power supply"))
	assert.Equal(t, "UsbC", Module("usb-c"))
	assert.Equal(t, "", Module("!!"))
	assert.Equal(t, "Divider", Project("divider"))
	assert.Equal(t, "MyBoard", Project("my_board"))
}

func TestFileSegmentAndInstance(t *testing.T) {
	assert.Equal(t, "power_supply", FileSegment("Power Supply"))
	assert.Equal(t, "power_regulator", Instance([]string{"Power", "Regulator"}))
	assert.Equal(t, "s3v3_ldo", Instance([]string{"3V3", "LDO"}))
	assert.Equal(t, "", Instance([]string{"??"}))
}

func TestPinToken(t *testing.T) {
	tok, changed := PinToken("A1")
	assert.Equal(t, "A1", tok)
	assert.False(t, changed)

	tok, changed = PinToken("EP-1")
	assert.Equal(t, "EP1", tok)
	assert.True(t, changed)
}

func TestKeywords(t *testing.T) {
	assert.True(t, IsKeyword("signal"))
	assert.False(t, IsKeyword("SIGNAL"))
	assert.Equal(t, "pin_net", Unreserved("pin", "_net"))
	assert.Equal(t, "GND", Unreserved("GND", "_net"))
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "10k", Suffix("10k"))
	assert.Equal(t, "100n_50V", Suffix("100n/50V"))
	assert.Equal(t, "4_7uF", Suffix("4.7µF"))
	assert.Equal(t, "", Suffix("~"))
}
