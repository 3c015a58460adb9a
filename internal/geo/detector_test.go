package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialora/outreach/internal/db/models"
)

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	lex, err := NewLexicon()
	require.NoError(t, err)
	return NewDetector(lex)
}

func TestDetectLocation(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name string
		text string
		want *Location
	}{
		{
			name: "district then locality, blacklisted garden word ignored",
			text: "Bodrum Yalıkavak'ta satılık lüks villa, bahçe katı",
			want: &Location{City: "Muğla", Town: "Yalıkavak"},
		},
		{
			name: "only a blacklisted word",
			text: "Harika bir bahçe katı, deniz manzaralı.",
			want: nil,
		},
		{
			name: "no location at all",
			text: "Fiyat bilgisi için DM atın",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "city only",
			text: "İzmir'de kiralık daire",
			want: &Location{City: "İzmir"},
		},
		{
			name: "upper case input with dotted capital I",
			text: "İSTANBUL SARIYER",
			want: &Location{City: "İstanbul", Town: "Sarıyer"},
		},
		{
			name: "longer city wins over its prefix alias",
			text: "Afyonkarahisar merkezde arsa",
			want: &Location{City: "Afyonkarahisar"},
		},
		{
			name: "alias resolves to canonical city",
			text: "Afyon'da satılık tarla",
			want: &Location{City: "Afyonkarahisar"},
		},
		{
			name: "later locality overrides an earlier city",
			text: "Muğla, Antalya ve Kalkan'da villalar",
			want: &Location{City: "Antalya", Town: "Kalkan"},
		},
		{
			name: "first locality wins",
			text: "Alaçatı veya Yalıkavak",
			want: &Location{City: "İzmir", Town: "Alaçatı"},
		},
		{
			name: "ambiguous locality without parent mention takes first parent",
			text: "Yenice'de müstakil ev",
			want: &Location{City: "Çanakkale", Town: "Yenice"},
		},
		{
			name: "ambiguous locality with parent mention",
			text: "Karabük Yenice'de müstakil ev",
			want: &Location{City: "Karabük", Town: "Yenice"},
		},
		{
			name: "ambiguous locality with parent mentioned after it",
			text: "Yenişehir, Mersin 3+1 daire",
			want: &Location{City: "Mersin", Town: "Yenişehir"},
		},
		{
			name: "ambiguous locality resolved through a district of the parent",
			text: "Safranbolu yakınında Yenice köyü",
			want: &Location{City: "Karabük", Town: "Yenice"},
		},
		{
			name: "name inside a longer word does not match",
			text: "Vanlı ustalar ile Batmanlar",
			want: nil,
		},
		{
			name: "locality containing a blacklisted word still matches",
			text: "Akçay sahilinde yazlık",
			want: &Location{City: "Balıkesir", Town: "Akçay"},
		},
		{
			name: "district in its city keeps the district as town",
			text: "Antalya Alanya deniz manzaralı",
			want: &Location{City: "Antalya", Town: "Alanya"},
		},
		{
			name: "district of another city is not used as town",
			text: "İzmir ve Bodrum",
			want: &Location{City: "İzmir"},
		},
		{
			name: "punctuation boundaries",
			text: "#bodrum,(çeşme)",
			want: &Location{City: "Muğla", Town: "Bodrum"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.DetectLocation(tt.text))
		})
	}
}

func TestDetectLocationNeverReturnsTownWithoutCity(t *testing.T) {
	d := newTestDetector(t)
	for name, p := range d.lex.places {
		loc := d.DetectLocation(name + " satılık")
		if _, blocked := d.lex.blacklist[name]; blocked {
			assert.Nil(t, loc, name)
			continue
		}
		require.NotNil(t, loc, name)
		assert.NotEmpty(t, loc.City, name)
		if p.kind == kindTown {
			assert.Equal(t, p.display, loc.Town, name)
		}
	}
}

func TestDetectPropertyType(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		text    string
		want    string
		subType string
	}{
		{text: "Bodrum Yalıkavak'ta satılık lüks villa, bahçe katı", want: "Konut", subType: "Villa"},
		{text: "Harika bir bahçe katı, deniz manzaralı.", want: "Konut", subType: "Bahçe Katı"},
		{text: "Merkezi konumda 3+1 DAİRE", want: "Konut", subType: "Daire"},
		{text: "Villası olan arsa", want: "Konut", subType: "Villa"},
		{text: "İmarlı arsa, yola cepheli", want: "Arsa", subType: "İmarlı Arsa"},
		{text: "Cadde üzeri kiralık dükkan", want: "İşyeri", subType: "Dükkan"},
		{text: "Butik otel devren satılık", want: "Turistik Tesis", subType: "Otel"},
		{text: "evet çok güzel", want: "", subType: ""},
		{text: "", want: "", subType: ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, d.DetectPropertyType(tt.text))
			assert.Equal(t, tt.subType, d.DetectPropertySubType(tt.text))
		})
	}
}

func TestDetectListingType(t *testing.T) {
	d := newTestDetector(t)

	assert.Equal(t, models.ListingSale, d.DetectListingType("Bodrum Yalıkavak'ta satılık lüks villa"))
	assert.Equal(t, models.ListingRent, d.DetectListingType("KİRALIK daire"))
	assert.Equal(t, models.ListingRent, d.DetectListingType("Villa for rent in Kaş"))
	assert.Equal(t, models.ListingRent, d.DetectListingType("aylık kirası 20.000 TL"))
	assert.Equal(t, models.ListingSale, d.DetectListingType("no marker at all"))
}

func TestParseLexiconRejectsBadData(t *testing.T) {
	_, err := ParseLexicon([]byte(`{`))
	assert.Error(t, err)

	_, err = ParseLexicon([]byte(`{"cities":[{"name":"Muğla"}],"towns":[{"name":"Yalıkavak","cities":["Ankara"]}]}`))
	assert.Error(t, err, "unknown parent city")

	_, err = ParseLexicon([]byte(`{"cities":[{"name":"Muğla"}],"towns":[{"name":"Yalıkavak"}]}`))
	assert.Error(t, err, "missing parent city")

	_, err = ParseLexicon([]byte(`{"cities":[{"name":"Muğla"}],"districts":[{"name":"Muğla","cities":["Muğla"]}]}`))
	assert.Error(t, err, "duplicate name")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ısparta", Normalize("ISPARTA"))
	assert.Equal(t, "istanbul", Normalize("İSTANBUL"))
	assert.Equal(t, "Iğdır", capitalize("ığdır"))
	assert.Equal(t, "İzmir", capitalize("izmir"))
}
