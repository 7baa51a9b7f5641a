package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finanze/finanze-sub000/internal/model"
)

func TestFormatWait(t *testing.T) {
	tests := []struct {
		name    string
		seconds int
		want    string
	}{
		{"zero", 0, "0s"},
		{"negative", -5, "0s"},
		{"seconds only", 45, "45s"},
		{"exact minute", 60, "1m"},
		{"minutes and seconds", 125, "2m 5s"},
		{"exact hour", 3600, "1h"},
		{"hours and minutes", 3660, "1h 1m"},
		{"drops third unit", 3661, "1h 1m"},
		{"days and hours", 90000, "1d 1h"},
		{"exact day", 86400, "1d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatWait(tt.seconds))
		})
	}
}

func TestMessagesForCode(t *testing.T) {
	msgs := DefaultMessages()

	assert.Equal(t, "The code you entered is not valid", msgs.forCode(model.CodeInvalidCode, "fallback"))
	assert.Equal(t, "fallback", msgs.forCode(model.ResultCode("SOMETHING_NEW"), "fallback"))
}
