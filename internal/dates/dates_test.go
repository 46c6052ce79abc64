package dates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReformat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"05-03-2023", "05-03-2023"},
		{"5/3/2023", "05-03-2023"},
		{"05.03.2023", "05-03-2023"},
		{"05-Mar-2023", "05-03-2023"},
		{"5th March 2023", "05-03-2023"},
		{"Monday, 06 March 2023", "06-03-2023"},
		{"2023-03-05", "05-03-2023"},
		{"  05 Mar  2023 ", "05-03-2023"},
		{"Next date not fixed", "Next date not fixed"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Reformat(tt.in))
		})
	}
}

func TestFromISO(t *testing.T) {
	// 20:00 UTC is already the next day in IST.
	assert.Equal(t, "06-03-2023", FromISO("2023-03-05T20:00:00Z"))
	assert.Equal(t, "05-03-2023", FromISO("2023-03-05T10:00:00.000+05:30"))
	assert.Equal(t, "pending", FromISO("pending"))
}

func TestParse(t *testing.T) {
	got, ok := Parse("01-02-2024")
	assert.True(t, ok)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, 2, int(got.Month()))

	_, ok = Parse("31-02-2024")
	assert.False(t, ok)
}
