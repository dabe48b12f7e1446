package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaseIdentityTitle(t *testing.T) {
	identity := CaseIdentity{
		Jurisdiction: "Civil",
		Court:        "C.A. de Santiago",
		Tribunal:     "3º Juzgado Civil de Santiago",
		CaseType:     "C",
		Roll:         1234,
		Year:         2024,
	}
	assert.Equal(t, "C 1234-2024 (3º Juzgado Civil de Santiago)", identity.Title())
}

func TestDetailRowHasDocument(t *testing.T) {
	assert.True(t, DetailRow{DocURL: "https://pjud.cl/doc.php", DocToken: "tok"}.HasDocument())
	assert.False(t, DetailRow{DocURL: "https://pjud.cl/doc.php"}.HasDocument())
	assert.False(t, DetailRow{DocToken: "tok"}.HasDocument())
	assert.False(t, DetailRow{}.HasDocument())
}
