package manifest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/quack-go/internal/errors"
)

func ptr(s string) *string { return &s }

func TestDecode_FullRecord(t *testing.T) {
	t.Parallel()
	payload := `[{
		"species_name": "Mallard",
		"scientific_name": "Anas platyrhynchos",
		"order": "Anseriformes",
		"family": "Anatidae",
		"basic_description": "ducks/mallard/description.txt",
		"cool_facts": "ducks/mallard/cool_facts.txt",
		"find_this_bird": "ducks/mallard/find.txt",
		"images": ["ducks/mallard/img1.jpg", "ducks/mallard/img2.jpg"],
		"videos": ["ducks/mallard/video.mp4"],
		"sounds": ["ducks/mallard/quack.mp3"],
		"regions": ["North America", "Europe"]
	}]`

	records, err := Decode([]byte(payload))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "Mallard", *r.SpeciesName)
	assert.Equal(t, "Anas platyrhynchos", *r.ScientificName)
	assert.Equal(t, "ducks/mallard/description.txt", *r.BasicDescription)
	assert.Equal(t, "ducks/mallard/cool_facts.txt", *r.CoolFacts)
	assert.Equal(t, "ducks/mallard/find.txt", *r.FindThisBird)
	assert.Len(t, r.Images, 2)
	assert.Len(t, r.Videos, 1)
	assert.Len(t, r.Sounds, 1)
	assert.Equal(t, []string{"North America", "Europe"}, r.Regions)
}

func TestDecode_EmptyObjectHasNoFields(t *testing.T) {
	t.Parallel()
	records, err := Decode([]byte("\xef\xbb\xbf  [{}] \n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Record{}, records[0])
}

func TestDecode_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{"empty body", ""},
		{"object", `{"species_name":"Mallard"}`},
		{"null", `null`},
		{"html", `<html>not found</html>`},
		{"array of numbers", `[1, 2]`},
		{"null element", `[{"species_name":"Teal"}, null]`},
		{"wrong field type", `[{"species_name": 5}]`},
		{"truncated", `[{"species_name":"Teal"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.payload))
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
		})
	}
}

func TestIsNoise(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		record Record
		noise  bool
	}{
		{"empty", Record{}, true},
		{"only sounds", Record{Sounds: []string{"q.mp3"}}, true},
		{"only videos and regions", Record{Videos: []string{"v.mp4"}, Regions: []string{"Europe"}}, true},
		{"empty images", Record{Images: []string{}}, true},
		{"name", Record{SpeciesName: ptr("Teal")}, false},
		{"empty name still counts", Record{SpeciesName: ptr("")}, false},
		{"description", Record{BasicDescription: ptr("d.txt")}, false},
		{"image", Record{Images: []string{"a.jpg"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.noise, IsNoise(tt.record))
		})
	}
}

func TestFilter_KeepsOrder(t *testing.T) {
	t.Parallel()
	in := []Record{
		{SpeciesName: ptr("A")},
		{Sounds: []string{"x"}},
		{BasicDescription: ptr("b.txt")},
		{},
		{Images: []string{"c.jpg"}},
	}

	out := Filter(in)
	require.Len(t, out, 3)
	assert.Equal(t, "A", *out[0].SpeciesName)
	assert.Equal(t, "b.txt", *out[1].BasicDescription)
	assert.Equal(t, []string{"c.jpg"}, out[2].Images)

	assert.Empty(t, Filter(nil))
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    string
		rel     string
		want    string
		wantErr bool
	}{
		{"root base", "http://a/", "manifest.json", "http://a/manifest.json", false},
		{"base without slash", "http://a", "manifest.json", "http://a/manifest.json", false},
		{"nested base", "http://a/app/", "ducks/x.jpg", "http://a/app/ducks/x.jpg", false},
		{"leading slash", "http://a/app", "/ducks/manifest.json", "http://a/app/ducks/manifest.json", false},
		{"spaces escaped", "http://a/", "ducks/wood duck.jpg", "http://a/ducks/wood%20duck.jpg", false},
		{"trimmed", "http://a/", "  img.jpg\n", "http://a/img.jpg", false},
		{"absolute kept", "http://a/", "https://cdn.example/x.jpg", "https://cdn.example/x.jpg", false},
		{"port kept", "http://a:8080/", "m.json", "http://a:8080/m.json", false},
		{"empty", "http://a/", "", "", true},
		{"whitespace", "http://a/", "   ", "", true},
		{"bad escape", "http://a/", "bad%zzname.jpg", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			base, err := url.Parse(tt.base)
			require.NoError(t, err)

			got, err := ResolvePath(base, tt.rel)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestResolvePath_DoesNotMutateBase(t *testing.T) {
	t.Parallel()
	base, err := url.Parse("http://a/app/")
	require.NoError(t, err)

	_, err = ResolvePath(base, "x.jpg")
	require.NoError(t, err)
	assert.Equal(t, "http://a/app/", base.String())

	_, err = ResolvePath(nil, "x.jpg")
	require.Error(t, err)
}
