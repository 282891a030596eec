package partition

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/OpenTraceLab/diode/pkg/circuit"
)

func eps(pairs ...string) []circuit.Endpoint {
	var out []circuit.Endpoint
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, circuit.Endpoint{Ref: pairs[i], Pin: pairs[i+1]})
	}
	return out
}

func TestNetIdentifiers(t *testing.T) {
	nets := []*circuit.Net{
		{Name: "", Endpoints: eps("R3", "1", "R4", "1")},
		{Name: "GND", Endpoints: eps("R1", "1", "R2", "2")},
		{Name: "", Endpoints: eps("R1", "2", "R10", "1")},
		{Name: "/a/DATA", Endpoints: eps("U1", "3", "U2", "3")},
		{Name: "a-DATA", Endpoints: eps("U1", "2", "U2", "2")},
		{Name: "+5V", Endpoints: eps("C1", "1", "U1", "1")},
		{Name: "R2", Endpoints: eps("R2", "1", "R5", "1")},
		{Name: "signal", Endpoints: eps("R6", "1", "R7", "1")},
	}
	reserved := map[string]bool{"R2": true}

	got := NetIdentifiers(nets, reserved, nil)
	assert.Equal(t, []string{
		"net_2",
		"GND",
		"net_1",
		"a_DATA_2",
		"a_DATA_1",
		"P5V",
		"R2_net",
		"signal_net",
	}, got)
}

func TestNetIdentifiersUniqueAfterSuffixes(t *testing.T) {
	nets := []*circuit.Net{
		{Name: "X", Endpoints: eps("R1", "1", "R2", "1")},
		{Name: "X", Endpoints: eps("R3", "1", "R4", "1")},
		{Name: "X_1", Endpoints: eps("R5", "1", "R6", "1")},
	}

	got := NetIdentifiers(nets, nil, nil)
	assert.Equal(t, []string{"X_1", "X_2", "X_1_2"}, got)
}

func TestNetIdentifiersRename(t *testing.T) {
	nets := []*circuit.Net{
		{Name: "Net-(R1-Pad2)", Endpoints: eps("R1", "2", "R2", "1")},
	}
	got := NetIdentifiers(nets, nil, map[string]string{"Net-(R1-Pad2)": "mid point"})
	assert.Equal(t, []string{"midpoint"}, got)
}

// Identifiers do not depend on the order nets are listed in, and running
// the assignment again gives the same result.
func TestNetIdentifiersIdempotent(t *testing.T) {
	nets := []*circuit.Net{
		{Endpoints: eps("R1", "1", "R2", "1")},
		{Endpoints: eps("R1", "2", "R3", "1")},
		{Endpoints: eps("C1", "1", "R9", "2")},
		{Endpoints: eps("R10", "1", "R11", "1")},
		{Name: "VCC", Endpoints: eps("U1", "8", "C1", "2")},
	}

	want := make(map[*circuit.Net]string)
	for i, id := range NetIdentifiers(nets, nil, nil) {
		want[nets[i]] = id
	}
	assert.Equal(t, "net_1", want[nets[2]])
	assert.Equal(t, "net_4", want[nets[3]])

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 10; round++ {
		shuffled := append([]*circuit.Net(nil), nets...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		for i, id := range NetIdentifiers(shuffled, nil, nil) {
			assert.Equal(t, want[shuffled[i]], id)
		}
	}
}
