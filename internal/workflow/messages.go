package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/finanze/finanze-sub000/internal/model"
)

// Messages is the localized toast message table. Result-code lookups fall
// back to a generic message when no mapping exists.
type Messages struct {
	ByCode               map[model.ResultCode]string
	LoginSuccess         string
	LoginError           string
	FetchSuccess         string
	FetchError           string
	DisconnectSuccess    string
	DisconnectError      string
	Cooldown             string
	CooldownWithWait     string
	LoginRequiredScrape  string
	PartiallyCompleted   string
	ExternalLoginFailed  string
	IncompatiblePlatform string
	CryptoLabel          string
}

// DefaultMessages returns the built-in English message table.
func DefaultMessages() Messages {
	return Messages{
		ByCode: map[model.ResultCode]string{
			model.CodeInvalidCode:             "The code you entered is not valid",
			model.CodeInvalidCredentials:      "The credentials you entered are not valid",
			model.CodeNoCredentialsAvailable:  "No saved credentials for this entity",
			model.CodeNotLogged:               "The session with the entity was closed",
			model.CodeLoginRequired:           "A new login is required",
			model.CodeLinkExpired:             "The link with the entity expired, log in again",
			model.CodeRemoteFailed:            "The entity could not process the request",
			model.CodeFeatureNotSupported:     "This entity does not support the requested data",
			model.CodeUnexpectedError:         "Unexpected error while contacting the entity",
		},
		LoginSuccess:         "Login successful",
		LoginError:           "Login failed",
		FetchSuccess:         "Data updated",
		FetchError:           "Data update failed",
		DisconnectSuccess:    "Entity disconnected",
		DisconnectError:      "Could not disconnect the entity",
		Cooldown:             "The entity was updated recently, try again later",
		CooldownWithWait:     "The entity was updated recently, try again in %s",
		LoginRequiredScrape:  "The connection needs a new login before fetching",
		PartiallyCompleted:   "Some data could not be fetched from %s",
		ExternalLoginFailed:  "External login failed",
		IncompatiblePlatform: "This platform cannot open browser logins",
		CryptoLabel:          "Crypto",
	}
}

// forCode returns the localized message for a result code, or the given
// fallback when no mapping exists.
func (m Messages) forCode(code model.ResultCode, fallback string) string {
	if msg, ok := m.ByCode[code]; ok {
		return msg
	}
	return fallback
}

// FormatWait renders a wait duration as its two largest units of
// d/h/m/s, e.g. 125s becomes "2m 5s".
func FormatWait(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}

	units := []struct {
		label string
		value int
	}{
		{"d", int(24 * time.Hour / time.Second)},
		{"h", int(time.Hour / time.Second)},
		{"m", int(time.Minute / time.Second)},
		{"s", 1},
	}

	remaining := seconds
	parts := make([]string, 0, 2)

	for _, unit := range units {
		if remaining >= unit.value {
			amount := remaining / unit.value
			parts = append(parts, fmt.Sprintf("%d%s", amount, unit.label))
			remaining -= amount * unit.value
		}
		if len(parts) == 2 {
			break
		}
	}

	if len(parts) == 0 {
		return "0s"
	}

	return strings.Join(parts, " ")
}
