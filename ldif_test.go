package slapdtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLDIFSingleRecord(t *testing.T) {
	input := "version: 1\n\ndn: dc=example,dc=org\nobjectClass: top\n\n"

	records, err := DecodeLDIF([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "dc=example,dc=org", records[0].DN)
	assert.Equal(t, []Attribute{{Name: "objectClass", Value: "top"}}, records[0].Attributes)
}

func TestDecodeLDIFContinuationLine(t *testing.T) {
	// The objectClass line is folded across two physical lines; the
	// second carries a single leading space.
	input := "version: 1\n\n" +
		"dn: dc=example,dc=org\n" +
		"objectClass: organizationalUn\n it\n\n"

	records, err := DecodeLDIF([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []Attribute{{Name: "objectClass", Value: "organizationalUnit"}}, records[0].Attributes)
}

func TestDecodeLDIFBase64Value(t *testing.T) {
	// "c3VycHJpc2U=" is base64 for "surprise".
	input := "version: 1\n\n" +
		"dn: dc=example,dc=org\n" +
		"description:: c3VycHJpc2U=\n\n"

	records, err := DecodeLDIF([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "surprise", records[0].GetAttributeValue("description"))
}

func TestDecodeLDIFMultipleRecords(t *testing.T) {
	input := "version: 1\n\n" +
		"dn: dc=example,dc=org\n" +
		"objectClass: dcObject\n" +
		"objectClass: organization\n\n" +
		"dn: cn=Manager,dc=example,dc=org\n" +
		"objectClass: organizationalRole\n" +
		"cn: Manager\n\n"

	records, err := DecodeLDIF([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "dc=example,dc=org", records[0].DN)
	assert.Equal(t, []string{"dcObject", "organization"},
		records[0].GetAttributeValues("objectClass"),
		"repeated attributes must keep their order")

	assert.Equal(t, "cn=Manager,dc=example,dc=org", records[1].DN)
	assert.Equal(t, "Manager", records[1].GetAttributeValue("cn"))
}

func TestDecodeLDIFCommentsAndBlankRuns(t *testing.T) {
	input := "# extended LDIF\n" +
		"#\n" +
		"version: 1\n\n\n" +
		"# search result\n" +
		"dn: dc=example,dc=org\n" +
		"objectClass: top\n\n\n\n"

	records, err := DecodeLDIF([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "dc=example,dc=org", records[0].DN)
}

func TestDecodeLDIFMissingTrailingBlank(t *testing.T) {
	// The final record is not blank-line-terminated; the decoder must
	// supply the terminator itself.
	input := "version: 1\n\ndn: dc=example,dc=org\nobjectClass: top"

	records, err := DecodeLDIF([]byte(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestDecodeLDIFEmptyResult(t *testing.T) {
	records, err := DecodeLDIF([]byte("version: 1\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeLDIFErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected error
	}{
		{
			name:     "missing version marker",
			input:    "dn: dc=example,dc=org\nobjectClass: top\n\n",
			expected: ErrExpectedVersion,
		},
		{
			name:     "wrong version marker",
			input:    "version: 2\n\ndn: dc=example,dc=org\n\n",
			expected: ErrExpectedVersion,
		},
		{
			name:     "empty input",
			input:    "",
			expected: ErrExpectedVersion,
		},
		{
			name:     "first attribute not dn",
			input:    "version: 1\n\nobjectClass: top\ndn: dc=example,dc=org\n\n",
			expected: ErrMissingDN,
		},
		{
			name:     "line without colon",
			input:    "version: 1\n\ndn: dc=example,dc=org\nbogus line\n\n",
			expected: ErrBadLine,
		},
		{
			name:     "value without space after colon",
			input:    "version: 1\n\ndn: dc=example,dc=org\nobjectClass:top\n\n",
			expected: ErrBadLine,
		},
		{
			name:     "invalid base64 value",
			input:    "version: 1\n\ndn: dc=example,dc=org\ndescription:: !!!\n\n",
			expected: ErrBadLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := DecodeLDIF([]byte(tt.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)
			assert.Nil(t, records, "no partial result may be returned")
		})
	}
}
