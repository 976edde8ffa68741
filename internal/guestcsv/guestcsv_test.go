package guestcsv

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortRecords(records []Record) []Record {
	out := append([]Record(nil), records...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func TestEncodeWritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, []Record{
		{Name: "Budi Santoso", Category: CategoryFamily},
		{Name: "Smith, John", Category: CategoryColleague},
		{Name: `Ann "Nana" Lee`, Category: CategoryFriend},
	})
	require.NoError(t, err)

	expected := "name,category\n" +
		"Budi Santoso,family\n" +
		"\"Smith, John\",colleague\n" +
		"\"Ann \"\"Nana\"\" Lee\",friend\n"
	assert.Equal(t, expected, buf.String())
}

func TestEncodeEmptyListWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Equal(t, "name,category\n", buf.String())
}

func TestRoundTrip(t *testing.T) {
	cases := map[string][]Record{
		"empty": nil,
		"single": {
			{Name: "Alice", Category: CategoryFriend},
		},
		"quoting": {
			{Name: "Smith, John", Category: CategoryColleague},
			{Name: "Line\nBreak", Category: CategoryFamily},
			{Name: `Quote " Inside`, Category: CategoryFriend},
			{Name: "Ñandú Pérez", Category: CategoryFamily},
		},
		"duplicates": {
			{Name: "Alice", Category: CategoryFriend},
			{Name: "Alice", Category: CategoryFriend},
		},
	}

	for name, records := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, records))

			result, err := Decode(&buf)
			require.NoError(t, err)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Records, len(records))
			assert.Equal(t, sortRecords(records), sortRecords(result.Records))
		})
	}
}

func TestDecodeIsolatesInvalidRows(t *testing.T) {
	input := strings.Join([]string{
		"name,category",
		"Alice,friend",
		",family",
		"Bob,enemy",
		"  Carol  ,  FAMILY ",
		"Dave",
		"Eve,colleague",
	}, "\n")

	result, err := Decode(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []Record{
		{Name: "Alice", Category: CategoryFriend},
		{Name: "Carol", Category: CategoryFamily},
		{Name: "Eve", Category: CategoryColleague},
	}, result.Records)

	require.Len(t, result.Errors, 3)
	assert.Equal(t, 3, result.Errors[0].Line)
	assert.Equal(t, ErrCodeEmptyName, result.Errors[0].Code)
	assert.Equal(t, "row 3: name is required", result.Errors[0].Error())
	assert.Equal(t, 4, result.Errors[1].Line)
	assert.Equal(t, ErrCodeInvalidCategory, result.Errors[1].Code)
	assert.Equal(t, "enemy", result.Errors[1].Value)
	assert.Equal(t, 6, result.Errors[2].Line)
	assert.Equal(t, ErrCodeColumnCount, result.Errors[2].Code)
	assert.Contains(t, result.Errors[2].Error(), "columns")
}

func TestDecodeAcceptsBOMAndCaseInsensitiveHeader(t *testing.T) {
	input := "\xef\xbb\xbfName , Category\nAlice,friend\n"

	result, err := Decode(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Record{{Name: "Alice", Category: CategoryFriend}}, result.Records)
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"wrong header": "guest,type\nAlice,friend\n",
		"extra column": "name,category,phone\nAlice,friend,1\n",
		"bad quoting":  "name,category\n\"Alice,friend\nBob\"x,family\n",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			result, err := Decode(strings.NewReader(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			assert.Empty(t, result.Records)
		})
	}
}

func TestNormalizeNameComposesUnicode(t *testing.T) {
	decomposed := "Jose\u0301"
	assert.Equal(t, "Jos\u00e9", NormalizeName("  "+decomposed+" "))
}

func TestNormalizeNameFoldsCRLF(t *testing.T) {
	name := NormalizeName("Ana\r\nBudi")
	assert.Equal(t, "Ana\nBudi", name)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []Record{{Name: name, Category: CategoryFamily}}))

	result, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, name, result.Records[0].Name)
}
