package relay

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/stemsi/examhub/internal/model"
)

var (
	// ErrFormat means the text is not "Surname Name Phone".
	ErrFormat = errors.New("expected: Surname Name Phone")
	// ErrPhone means the phone part is not a valid number.
	ErrPhone = errors.New("invalid phone number")
)

// ParseRegistration splits free text into surname, name and phone. The
// first two whitespace-separated tokens are the names; everything after
// them is the phone, so "+998 90 123 45 67" works too. The phone comes
// back in E.164.
func ParseRegistration(text, region string) (model.Registration, error) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return model.Registration{}, ErrFormat
	}

	phone, err := NormalizePhone(strings.Join(fields[2:], " "), region)
	if err != nil {
		return model.Registration{}, err
	}
	return model.Registration{
		Surname: fields[0],
		Name:    fields[1],
		Phone:   phone,
	}, nil
}

// NormalizePhone parses raw against region (used when raw has no country
// code) and returns it in E.164, e.g. +998901234567.
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", ErrPhone
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
