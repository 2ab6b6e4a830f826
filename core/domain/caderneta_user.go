package domain

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

// User is a registered account. Several identities may point to one user.
type User struct {
	ID        string    `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Phone     string    `json:"phone" db:"phone"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizePhone reduces a channel address such as "whatsapp:+5511987654321"
// to bare digits and restores the mobile ninth digit on Brazilian numbers
// that arrive without it.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "55") && len(digits) == 12 {
		digits = digits[:4] + "9" + digits[4:]
	}
	return digits
}

var brazilianMobile = regexp.MustCompile(`^(55)?([1-9]{2})(9\d{8})$`)

// IsBrazilianMobile reports whether a normalized phone is a Brazilian mobile
// number, with or without the country code.
func IsBrazilianMobile(phone string) bool {
	return brazilianMobile.MatchString(phone)
}
