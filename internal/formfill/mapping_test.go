package formfill

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestParseMapping_JSON(t *testing.T) {
	doc := `{
		"fields": {
			"subscriber_name_print": {"page": 1, "x": 120.5, "y": 700, "size": 11},
			"phone": {"page": 2, "x": 50, "y": 40, "source": ["phone1", "phone2", "phone3"]},
			"mnp1": {"page": 3, "x": 10, "y": 10, "type": "Checkbox"},
			"join_port": {"x": 10, "y": 20, "type": "checkbox", "source": "join_type", "on_value": "port"},
			"gender_m": {"page": 1, "x": 1, "y": 1, "type": "checkbox", "on_value": 1}
		}
	}`
	m, err := ParseMapping("mapping.json", []byte(doc))
	require.NoError(t, err)

	want := map[string]Descriptor{
		"subscriber_name_print": {Page: 1, X: 120.5, Y: 700, Size: 11, Type: TypeText},
		"phone":                 {Page: 2, X: 50, Y: 40, Size: 10, Type: TypeText, Sources: []string{"phone1", "phone2", "phone3"}},
		"mnp1":                  {Page: 3, X: 10, Y: 10, Size: 10, Type: TypeCheckbox},
		"join_port":             {Page: 1, X: 10, Y: 20, Size: 10, Type: TypeCheckbox, Sources: []string{"join_type"}, OnValue: strPtr("port")},
		"gender_m":              {Page: 1, X: 1, Y: 1, Size: 10, Type: TypeCheckbox, OnValue: strPtr("1")},
	}
	if diff := cmp.Diff(want, m.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"gender_m", "join_port", "mnp1", "phone", "subscriber_name_print"}, m.Keys())
}

func TestParseMapping_MalformedValuesFallBack(t *testing.T) {
	doc := `{
		"fields": {
			"bad": {"page": "two", "x": "left", "y": null, "size": "big", "type": 7, "source": 12, "on_value": null},
			"strings": {"page": "2", "x": " 15.5 ", "y": "30", "size": "9"},
			"empty_source": {"source": ""},
			"empty_list": {"source": []}
		}
	}`
	m, err := ParseMapping("mapping.json", []byte(doc))
	require.NoError(t, err)

	want := map[string]Descriptor{
		"bad":          {Page: 1, X: 0, Y: 0, Size: 10, Type: "7"},
		"strings":      {Page: 2, X: 15.5, Y: 30, Size: 9, Type: TypeText},
		"empty_source": {Page: 1, Size: 10, Type: TypeText},
		"empty_list":   {Page: 1, Size: 10, Type: TypeText},
	}
	if diff := cmp.Diff(want, m.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMapping_YAML(t *testing.T) {
	doc := `
fields:
  addr:
    page: 1
    x: 100
    y: 500.25
  agree:
    page: 2
    x: 30
    y: 40
    size: 12
    type: checkbox
    on_value: yes_please
  phone:
    source: [phone1, phone2]
`
	m, err := ParseMapping("mapping.yaml", []byte(doc))
	require.NoError(t, err)

	want := map[string]Descriptor{
		"addr":  {Page: 1, X: 100, Y: 500.25, Size: 10, Type: TypeText},
		"agree": {Page: 2, X: 30, Y: 40, Size: 12, Type: TypeCheckbox, OnValue: strPtr("yes_please")},
		"phone": {Page: 1, Size: 10, Type: TypeText, Sources: []string{"phone1", "phone2"}},
	}
	if diff := cmp.Diff(want, m.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMapping_NonObjectEntryIsSkipped(t *testing.T) {
	doc := `{
		"fields": {
			"addr": {"page": 1, "x": 100, "y": 700},
			"bad": "oops",
			"count": 5,
			"list": [1, 2],
			"nothing": null
		}
	}`
	m, err := ParseMapping("mapping.json", []byte(doc))
	require.NoError(t, err)
	require.Len(t, m.Fields, 5)
	require.Equal(t, Descriptor{Page: 1, X: 100, Y: 700, Size: 10, Type: TypeText}, m.Fields["addr"])
	require.Equal(t, typeMalformed, m.Fields["bad"].Type)

	rec := Record{"addr": "Main St", "bad": "x", "count": "1", "list": "y", "nothing": "z"}
	c := &recordingCanvas{pages: 1}
	st, err := Render(rec, m, c)
	require.NoError(t, err)
	require.Equal(t, Stats{Drawn: 1, Skipped: 4}, st)
	require.Equal(t, []drawCall{{Page: 1, X: 100, Y: 700, Size: 10, Text: "Main St"}}, c.calls)
}

func TestParseMapping_NonObjectEntryYAML(t *testing.T) {
	doc := "fields:\n  addr:\n    x: 10\n    y: 20\n  bad: oops\n"
	m, err := ParseMapping("mapping.yaml", []byte(doc))
	require.NoError(t, err)
	require.Equal(t, TypeText, m.Fields["addr"].Type)
	require.Equal(t, typeMalformed, m.Fields["bad"].Type)
}

func TestParseMapping_InvalidDocument(t *testing.T) {
	_, err := ParseMapping("mapping.json", []byte(`{"fields": [`))
	require.Error(t, err)
}

func TestParseMapping_NoFields(t *testing.T) {
	m, err := ParseMapping("mapping.json", []byte(`{}`))
	require.NoError(t, err)
	require.Empty(t, m.Fields)
}
