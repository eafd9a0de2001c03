package soap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogonRequest(t *testing.T) {
	body, headers := LogonRequest("user", "pass")

	assert.Contains(t, body, "<username>user</username>")
	assert.Contains(t, body, "<password>pass</password>")
	assert.Contains(t, body, "<ene:logonex>")
	assert.Equal(t, "text/xml; charset=utf-8", headers["Content-Type"])
	assert.Equal(t, "logonex", headers["SOAPAction"])
}

func TestExportRequest(t *testing.T) {
	body, headers := ExportRequest("user", "key", []int{1, 2, 3}, "010120250000", "020120250000", "d")

	assert.Contains(t, body, "<exuziv>user</exuziv>")
	assert.Contains(t, body, "<exklic>key</exklic>")
	assert.Contains(t, body, "<uzel>1,2,3</uzel>")
	assert.Contains(t, body, "<typuz>2</typuz>")
	assert.Contains(t, body, "<per>d</per>")
	assert.Contains(t, body, "<cas>010120250000,020120250000</cas>")
	assert.Contains(t, body, "<typhodn>hodnota</typhodn>")
	assert.Equal(t, "xexport", headers["SOAPAction"])
}

func TestExportPeriodRequest(t *testing.T) {
	body, headers := ExportPeriodRequest("user", "key", []int{7090001}, "m-3", "m")

	assert.Contains(t, body, "<uzel>7090001</uzel>")
	assert.Contains(t, body, "<cas>m-3</cas>")
	assert.Contains(t, body, "<per>m</per>")
	assert.Equal(t, "xexport", headers["SOAPAction"])
}

func TestJournalRequest(t *testing.T) {
	body, headers := JournalRequest("user", "key", []int{7090001}, "010120250000", "020120250000", "alarm", "L1")

	assert.Contains(t, body, "<ene:xjournal>")
	assert.Contains(t, body, "<uzel>7090001</uzel>")
	assert.Contains(t, body, "<cas>010120250000,020120250000</cas>")
	assert.Contains(t, body, "<udalost>alarm</udalost>")
	assert.Contains(t, body, "<faze>L1</faze>")
	assert.Equal(t, "xjournal", headers["SOAPAction"])
}

func TestJournalRequestWithoutFilters(t *testing.T) {
	body, _ := JournalRequest("user", "key", []int{1}, "010120250000", "020120250000", "", "")

	assert.NotContains(t, body, "<udalost>")
	assert.NotContains(t, body, "<faze>")
}

func TestEncodeDate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2025-03-06", "030620250000"},
		{"2025-03-01", "030120250000"},
		{"1999-12-31", "123119990000"},
	}

	for _, tt := range tests {
		encoded, err := EncodeDate(tt.input)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, encoded)
	}
}

func TestEncodeDateInvalid(t *testing.T) {
	for _, input := range []string{"06.03.2025", "2025-13-01", "2025-02-30", "not-a-date"} {
		_, err := EncodeDate(input)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", input)
	}
}

func TestMaskSensitiveData(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<username>admin</username>", "<username>a*****</username>"},
		{"<password>secret123</password>", "<password>s*********</password>"},
		{"<exuziv>test</exuziv>", "<exuziv>t****</exuziv>"},
		{"<exklic>key</exklic>", "<exklic>k***</exklic>"},
		{"<password>x</password>", "<password>*</password>"},
		{"<password></password>", "<password>*</password>"},
		{"<uzel>7090001</uzel>", "<uzel>7090001</uzel>"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MaskSensitiveData(tt.input))
	}
}

func TestMaskSensitiveDataMultipleOccurrences(t *testing.T) {
	input := "<exuziv>Alice</exuziv><hodnota>1</hodnota><exuziv>Bob</exuziv>"
	expected := "<exuziv>a*****</exuziv><hodnota>1</hodnota><exuziv>b***</exuziv>"
	assert.Equal(t, expected, MaskSensitiveData(input))
}

func TestMaskSensitiveDataCaseInsensitive(t *testing.T) {
	assert.Equal(t, "<password>s*******</password>", MaskSensitiveData("<PassWord>secret1</PassWord>"))
}

func TestMaskSensitiveDataFullEnvelope(t *testing.T) {
	body, _ := LogonRequest("admin", "secret123")
	masked := MaskSensitiveData(body)

	assert.NotContains(t, masked, "admin")
	assert.NotContains(t, masked, "secret123")
	assert.Contains(t, masked, "<username>a*****</username>")
	assert.Contains(t, masked, "<password>s*********</password>")
}

func TestMaskKeyPrefix(t *testing.T) {
	assert.Equal(t, "abcd****", MaskKeyPrefix("abcdefgh"))
	assert.Equal(t, "****", MaskKeyPrefix("ab"))
}
