package domain

import (
	"strings"
	"unicode"
)

// HiddenRemoteUID is the sentinel remote party used for events whose sender
// identity is withheld by the network. It never resolves to a contact.
const HiddenRemoteUID = "<hidden>"

// phoneSuffixLength is the number of trailing digits compared when matching
// two phone numbers. Numbers that agree on this suffix are treated as the
// same recipient even when their prefixes (country code, trunk prefix,
// separators) differ.
const phoneSuffixLength = 7

// Recipient identifies a remote party on a specific local account.
type Recipient struct {
	Account string
	Remote  string
}

// NewRecipient creates a recipient for the given account and remote uid.
func NewRecipient(account, remote string) Recipient {
	return Recipient{Account: account, Remote: remote}
}

// IsHidden reports whether the remote party identity is withheld.
func (r Recipient) IsHidden() bool {
	return r.Remote == HiddenRemoteUID
}

// Matches compares two recipients with phone-number-normalized semantics:
// accounts must be equal, and remote uids are compared by trailing digits
// when both look like phone numbers, case-insensitively otherwise.
func (r Recipient) Matches(other Recipient) bool {
	if r.Account != other.Account {
		return false
	}
	return remoteUIDsMatch(r.Remote, other.Remote)
}

// MinimizedRemote returns the canonical form of the remote uid used for
// group-key derivation, so that differently formatted numbers for the same
// contact land in the same notification group.
func (r Recipient) MinimizedRemote() string {
	return minimizeRemoteUID(r.Remote)
}

// remoteUIDsMatch compares two remote uids for recipient identity.
func remoteUIDsMatch(a, b string) bool {
	if a == b {
		return true
	}
	da, aPhone := phoneDigits(a)
	db, bPhone := phoneDigits(b)
	if aPhone && bPhone {
		return phoneSuffix(da) == phoneSuffix(db)
	}
	return strings.EqualFold(a, b)
}

// minimizeRemoteUID normalizes a remote uid: phone numbers reduce to their
// matching suffix, everything else to lower case.
func minimizeRemoteUID(remote string) string {
	if digits, ok := phoneDigits(remote); ok {
		return phoneSuffix(digits)
	}
	return strings.ToLower(remote)
}

// phoneDigits extracts the digits of a remote uid and reports whether it
// looks like a dialable number. IM handles contain letters or separators
// outside the dialing character set and are not treated as numbers.
func phoneDigits(remote string) (string, bool) {
	var digits strings.Builder
	for _, r := range remote {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' || r == '.' || r == '#' || r == '*':
			// dialing formatting characters
		default:
			return "", false
		}
	}
	if digits.Len() == 0 {
		return "", false
	}
	return digits.String(), true
}

// phoneSuffix returns the trailing comparison window of a digit string.
func phoneSuffix(digits string) string {
	if len(digits) > phoneSuffixLength {
		return digits[len(digits)-phoneSuffixLength:]
	}
	return digits
}

// RecipientList is a set of recipients carried by contact-change signals.
type RecipientList []Recipient

// Contains reports whether any recipient in the list matches the given one.
func (l RecipientList) Contains(r Recipient) bool {
	for _, candidate := range l {
		if candidate.Matches(r) {
			return true
		}
	}
	return false
}
