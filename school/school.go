// Package school holds the directory's record type, form validation and the
// record store that persists the whole collection under a single item key.
package school

import (
	"net/url"

	"github.com/stevemurr/school-directory/dataurl"
)

// School is one directory entry as persisted. Image is a base64 data URL.
type School struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Contact string `json:"contact"`
	Email   string `json:"email"`
	Image   string `json:"image"`
}

// MailtoURL is the target of the card's "contact" action.
func (s School) MailtoURL() string {
	u := url.URL{Scheme: "mailto", Opaque: s.Email}
	return u.String()
}

// FormData is a submitted add/edit form. A nil Image means no file was chosen.
type FormData struct {
	Name    string
	Address string
	City    string
	State   string
	Contact string
	Email   string
	Image   *dataurl.Blob
}

// apply overwrites the text fields of s with the form values.
func (f FormData) apply(s School) School {
	s.Name = f.Name
	s.Address = f.Address
	s.City = f.City
	s.State = f.State
	s.Contact = f.Contact
	s.Email = f.Email
	return s
}
