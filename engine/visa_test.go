package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func trav(nationalities ...string) Traveler {
	return Traveler{Name: "T", Nationalities: nationalities}
}

func TestVisaFeeSameCountry(t *testing.T) {
	assert.Equal(t, 0.0, VisaFeeForTraveler("France", trav("France")))
	assert.Equal(t, 0.0, VisaFeeForTraveler("Turkey", trav("turkey")))
	assert.Equal(t, 0.0, VisaFeeForTraveler("united states", trav("United States")))
}

func TestVisaFeeSchengen(t *testing.T) {
	// Indian national with no EU ties pays the Schengen fee.
	assert.Equal(t, schengenVisaFee, VisaFeeForTraveler("France", trav("India")))

	// A Schengen nationality exempts the whole area.
	assert.Equal(t, 0.0, VisaFeeForTraveler("Italy", trav("Germany")))

	// A Schengen residency permit exempts regardless of nationality.
	resident := Traveler{Nationalities: []string{"India"}, Residencies: []string{"Schengen residence permit"}}
	assert.Equal(t, 0.0, VisaFeeForTraveler("Spain", resident))

	euPR := Traveler{Nationalities: []string{"Brazil"}, Residencies: []string{"EU PR"}}
	assert.Equal(t, 0.0, VisaFeeForTraveler("Netherlands", euPR))

	// Any single qualifying nationality is enough.
	dual := trav("India", "France")
	assert.Equal(t, 0.0, VisaFeeForTraveler("Germany", dual))
}

func TestVisaFeeTurkey(t *testing.T) {
	assert.Equal(t, 0.0, VisaFeeForTraveler("Turkey", trav("United States")))
	assert.Equal(t, 0.0, VisaFeeForTraveler("Turkey", trav("Japan")))
	assert.Equal(t, float64(turkeyEVisaFee), VisaFeeForTraveler("Turkey", trav("India")))

	// Schengen exemptions do not carry over to Turkey.
	schengenHolder := Traveler{Nationalities: []string{"India"}, Residencies: []string{"Schengen visa"}}
	assert.Equal(t, float64(turkeyEVisaFee), VisaFeeForTraveler("Turkey", schengenHolder))
}

func TestVisaFeeUnitedStates(t *testing.T) {
	assert.Equal(t, float64(usVisaFee), VisaFeeForTraveler("United States", trav("India")))
	assert.Equal(t, float64(usVisaFee), VisaFeeForTraveler("USA", trav("Turkey")))
	assert.Equal(t, float64(usVisaFee), VisaFeeForTraveler("United States of America", trav("Brazil")))

	// Hawaii is a US destination even when the label never says so.
	assert.Equal(t, float64(usVisaFee), VisaFeeForTraveler("Hawaii", trav("India")))

	assert.Equal(t, 0.0, VisaFeeForTraveler("USA", trav("United States")))

	greenCard := Traveler{Nationalities: []string{"India"}, Residencies: []string{"US Green Card"}}
	assert.Equal(t, 0.0, VisaFeeForTraveler("United States", greenCard))
}

func TestVisaFeeJapanAndCanada(t *testing.T) {
	assert.Equal(t, 0.0, VisaFeeForTraveler("Japan", trav("India")))
	assert.Equal(t, 0.0, VisaFeeForTraveler("Canada", trav("Nigeria")))
}

func TestVisaFeeUnknownDestinationDefaultsFree(t *testing.T) {
	assert.Equal(t, 0.0, VisaFeeForTraveler("Thailand", trav("India")))
	assert.Equal(t, 0.0, VisaFeeForTraveler("", trav("India")))
}

func TestVisaFeeForParty(t *testing.T) {
	party := []Traveler{trav("India"), trav("Brazil")}
	assert.InDelta(t, 2*schengenVisaFee, VisaFeeForParty("France", party), 0.001)

	// Mixed party: one exempt, one paying.
	mixed := []Traveler{trav("Germany"), trav("India")}
	assert.InDelta(t, schengenVisaFee, VisaFeeForParty("France", mixed), 0.001)

	assert.Equal(t, 0.0, VisaFeeForParty("France", nil))
}
